package v1

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/contexor/contexor/app/core"
	"github.com/contexor/contexor/pkg/ai"
	"github.com/contexor/contexor/pkg/errors"
	"github.com/contexor/contexor/pkg/i18n"
	"github.com/contexor/contexor/pkg/pii"
	"github.com/contexor/contexor/pkg/pricing"
	"github.com/contexor/contexor/pkg/types"
	"github.com/contexor/contexor/pkg/utils"
)

const (
	// 落库重试只重复写入，不会再次调用模型
	PERSIST_RETRY_ATTEMPTS = 3
	PERSIST_RETRY_DELAY    = 200 * time.Millisecond

	SEMAPHORE_POLL_INTERVAL = 100 * time.Millisecond
)

type GenerationLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewGenerationLogic(ctx context.Context, core *core.Core) *GenerationLogic {
	return &GenerationLogic{
		ctx:  ctx,
		core: core,
	}
}

func (l *GenerationLogic) getContent(ctx context.Context, contentID string) (*types.Content, error) {
	content, err := l.core.Store().ContentStore().Get(ctx, contentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("GenerationLogic.getContent.NotFound", i18n.ERROR_NOT_FOUND, err).Code(http.StatusNotFound)
		}
		return nil, errors.New("GenerationLogic.getContent.ContentStore.Get", i18n.ERROR_INTERNAL, err)
	}
	return content, nil
}

func (l *GenerationLogic) getJob(ctx context.Context, jobID string) (*types.GenerationJob, error) {
	job, err := l.core.Store().GenerationJobStore().Get(ctx, jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("GenerationLogic.getJob.NotFound", i18n.ERROR_NOT_FOUND, err).Code(http.StatusNotFound)
		}
		return nil, errors.New("GenerationLogic.getJob.GenerationJobStore.Get", i18n.ERROR_INTERNAL, err)
	}
	return job, nil
}

// changeContentStatus 修改内容状态并写审计日志，需在事务内调用
func (l *GenerationLogic) changeContentStatus(ctx context.Context, content *types.Content, userID string, to types.ContentStatus, changes types.JSONMap, notes string) error {
	if err := l.core.Store().ContentStore().UpdateStatus(ctx, content.ID, to); err != nil {
		return err
	}
	return l.core.Store().AuditLogStore().Create(ctx, types.AuditLog{
		ID:        utils.GenUniqIDStr(),
		ContentID: content.ID,
		UserID:    userID,
		Action:    types.AUDIT_ACTION_STATUS_CHANGED,
		OldStatus: content.Status,
		NewStatus: to,
		Changes:   changes,
		Notes:     notes,
		CreatedAt: time.Now().UnixMilli(),
	})
}

// SubmitGenerationJob 通过额度检查后创建 pending 任务并投递到队列，不等待模型
func (l *GenerationLogic) SubmitGenerationJob(userID, contentID string, params types.GenerationParams) (string, error) {
	if !params.Kind.Valid() {
		return "", errors.New("GenerationLogic.SubmitGenerationJob.InvalidKind", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	if params.Topic == "" {
		return "", errors.New("GenerationLogic.SubmitGenerationJob.EmptyTopic", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	if l.core.Queue() == nil {
		return "", errors.New("GenerationLogic.SubmitGenerationJob.QueueNotConfigured", i18n.ERROR_INTERNAL, nil)
	}

	content, err := l.getContent(l.ctx, contentID)
	if err != nil {
		return "", errors.Trace("GenerationLogic.SubmitGenerationJob", err)
	}

	jobID := utils.GenUniqIDStr()
	err = NewBudgetLogic(l.ctx, l.core).Admit(userID, content.WorkspaceID, func() error {
		return l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
			now := time.Now().UnixMilli()
			err := l.core.Store().GenerationJobStore().Create(ctx, types.GenerationJob{
				ID:             jobID,
				ContentID:      content.ID,
				UserID:         userID,
				WorkspaceID:    content.WorkspaceID,
				OrganizationID: content.OrganizationID,
				Kind:           params.Kind,
				Status:         types.JOB_STATUS_PENDING,
				Params:         params.ToMap(),
				CreatedAt:      now,
				UpdatedAt:      now,
			})
			if err != nil {
				return errors.New("GenerationLogic.SubmitGenerationJob.GenerationJobStore.Create", i18n.ERROR_INTERNAL, err)
			}

			err = l.changeContentStatus(ctx, content, userID, types.CONTENT_STATUS_IN_PROGRESS, types.JSONMap{
				"job_id": jobID,
				"kind":   params.Kind,
			}, "generation submitted")
			if err != nil {
				return errors.New("GenerationLogic.SubmitGenerationJob.changeContentStatus", i18n.ERROR_INTERNAL, err)
			}
			return nil
		})
	})
	if err != nil {
		return "", errors.Trace("GenerationLogic.SubmitGenerationJob", err)
	}

	// 投递失败时任务保持 pending，由定时任务补投
	if err = l.core.Queue().EnqueueGeneration(l.ctx, jobID); err != nil {
		slog.Warn("Failed to enqueue generation job, waiting for requeue",
			slog.String("job_id", jobID), slog.String("error", err.Error()))
	}
	l.core.Metrics().JobTransitionInc(string(types.JOB_STATUS_PENDING))
	return jobID, nil
}

// CancelJob pending / running 的任务可以取消，之后完成的 worker 不会覆盖结果
func (l *GenerationLogic) CancelJob(userID, jobID string) error {
	job, err := l.getJob(l.ctx, jobID)
	if err != nil {
		return errors.Trace("GenerationLogic.CancelJob", err)
	}

	return l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().GenerationJobStore().Cancel(ctx, job.ID); err != nil {
			if errors.Is(err, types.ErrInvalidTransition) {
				return errors.New("GenerationLogic.CancelJob.GenerationJobStore.Cancel", i18n.ERROR_JOB_INVALID_TRANSITION, err).Code(http.StatusConflict)
			}
			return errors.New("GenerationLogic.CancelJob.GenerationJobStore.Cancel", i18n.ERROR_INTERNAL, err)
		}
		l.core.Metrics().JobTransitionInc(string(types.JOB_STATUS_CANCELLED))

		content, err := l.getContent(ctx, job.ContentID)
		if err != nil {
			return errors.Trace("GenerationLogic.CancelJob", err)
		}
		if content.Status != types.CONTENT_STATUS_IN_PROGRESS {
			return nil
		}
		if err = l.changeContentStatus(ctx, content, userID, types.CONTENT_STATUS_DRAFT, types.JSONMap{"job_id": job.ID}, "generation cancelled"); err != nil {
			return errors.New("GenerationLogic.CancelJob.changeContentStatus", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
}

// resolveModel 任务参数 > 配置 > 默认模型
func (l *GenerationLogic) resolveModel(params types.GenerationParams) string {
	if params.Model != "" {
		return params.Model
	}
	if m := l.core.Cfg().AI.Model; m != "" {
		return m
	}
	return ai.DEFAULT_MODEL
}

// buildRequest 生成参数需先经过脱敏
func buildRequest(params types.GenerationParams, model string) ai.Request {
	vars := ai.PromptVars{
		Topic:                  params.Topic,
		Tone:                   params.Tone,
		Audience:               params.Audience,
		Keywords:               params.Keywords,
		MinWords:               params.MinWords,
		AdditionalInstructions: params.AdditionalInstructions,
	}

	req := ai.Request{
		System: ai.SystemPrompt(utils.WhatLang(params.Topic)),
		Model:  model,
	}
	if params.Kind == types.JOB_KIND_DRAFT {
		req.User = ai.BuildDraftPrompt(vars)
	} else {
		req.User = ai.BuildShortPrompt(vars)
	}
	return req
}

// RunAttempt 执行一次生成尝试，已终结或已被其他 worker 接手的任务直接跳过
func (l *GenerationLogic) RunAttempt(jobID string, attempt int) error {
	job, err := l.getJob(l.ctx, jobID)
	if err != nil {
		return errors.Trace("GenerationLogic.RunAttempt", err)
	}
	if job.IsTerminal() {
		slog.Info("Generation job already finished, skip", slog.String("job_id", job.ID), slog.String("status", string(job.Status)))
		return nil
	}

	if err = l.core.Store().GenerationJobStore().MarkRunning(l.ctx, job.ID); err != nil {
		if errors.Is(err, types.ErrInvalidTransition) {
			slog.Info("Generation job can not be started, skip", slog.String("job_id", job.ID), slog.String("status", string(job.Status)))
			return nil
		}
		return errors.New("GenerationLogic.RunAttempt.GenerationJobStore.MarkRunning", i18n.ERROR_INTERNAL, err)
	}
	l.core.Metrics().JobTransitionInc(string(types.JOB_STATUS_RUNNING))

	params, err := types.GenerationParamsFromMap(job.Params)
	if err != nil {
		return l.failAttempt(job, attempt, "", 0, err, false)
	}
	model := l.resolveModel(params)

	content, err := l.getContent(l.ctx, job.ContentID)
	if err != nil {
		return l.failAttempt(job, attempt, model, 0, err, false)
	}

	// 同一个脱敏会话贯穿 检测 -> 掩码 -> 还原
	redactor := pii.NewRedactor()
	_, warnings := redactor.Redact(params.Topic + "\n" + params.Keywords + "\n" + params.AdditionalInstructions)
	if len(warnings) > 0 {
		if err = l.core.Store().ContentStore().UpdatePII(l.ctx, content.ID, types.StringMap(warnings)); err != nil {
			slog.Error("Failed to update content pii warnings", slog.String("content_id", content.ID), slog.String("error", err.Error()))
		}
		params.Topic = redactor.Mask(params.Topic)
		params.Keywords = redactor.Mask(params.Keywords)
		params.AdditionalInstructions = redactor.Mask(params.AdditionalInstructions)
	}

	req := buildRequest(params, model)
	if !pricing.Known(model) {
		slog.Warn(l.core.Localizer().Get(i18n.DEFAULT_LANG, i18n.ERROR_AI_MODEL_NOT_PRICED), slog.String("model", model), slog.String("job_id", job.ID))
	}
	// 预估需要加载分词表，只在调试日志开启时计算
	if slog.Default().Enabled(l.ctx, slog.LevelDebug) {
		slog.Debug("Generation request prepared",
			slog.String("job_id", job.ID),
			slog.String("model", model),
			slog.String("estimated_cost", pricing.EstimateCost(model, req.System, req.User, ai.DEFAULT_MAX_TOKENS).String()))
	}

	provider := l.core.Srv().AI()
	if provider == nil {
		return l.failAttempt(job, attempt, model, 0, fmt.Errorf("ai provider not configured"), false)
	}

	sem := l.core.Semaphores().Generation()
	if err = core.Acquire(l.ctx, sem, SEMAPHORE_POLL_INTERVAL); err != nil {
		l.core.Metrics().SemaphoreRejectedInc("generation")
		return l.failAttempt(job, attempt, model, 0, err, false)
	}

	timer := l.core.Metrics().GenerationTimer(string(job.Kind), model)
	start := time.Now()
	res, err := provider.Complete(l.ctx, req)
	elapsed := time.Since(start)
	timer.ObserveDuration()
	sem.Release(l.ctx)

	if err != nil {
		l.core.Metrics().ProviderErrorInc(provider.Name())
		return l.failAttempt(job, attempt, model, elapsed, err, true)
	}

	if res.Model != "" {
		model = res.Model
	}
	res.Text = redactor.Restore(res.Text)
	return l.completeAttempt(job, attempt, content, model, res, elapsed)
}

func (l *GenerationLogic) persistRetry(fn func() error) error {
	return retry.Do(fn,
		retry.Context(l.ctx),
		retry.Attempts(PERSIST_RETRY_ATTEMPTS),
		retry.Delay(PERSIST_RETRY_DELAY),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, types.ErrInvalidTransition)
		}),
	)
}

func (l *GenerationLogic) completeAttempt(job *types.GenerationJob, attempt int, content *types.Content, model string, res ai.Result, elapsed time.Duration) error {
	cost := pricing.CostMoney(model, int64(res.PromptTokens), int64(res.CompletionTokens))

	// 账本写入失败只告警，不影响生成结果
	err := l.persistRetry(func() error {
		_, err := NewUsageLogic(l.ctx, l.core).Record(types.UsageAttempt{
			UserID:           job.UserID,
			WorkspaceID:      job.WorkspaceID,
			OrganizationID:   job.OrganizationID,
			ContentID:        job.ContentID,
			JobID:            job.ID,
			Model:            model,
			PromptTokens:     int64(res.PromptTokens),
			CompletionTokens: int64(res.CompletionTokens),
			EstimatedCost:    cost,
			Duration:         elapsed,
			Success:          true,
		})
		return err
	})
	if err != nil {
		slog.Error("Failed to record usage, ledger will under-report", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		l.core.Metrics().UsageLogFailedInc(true)
	}

	wordCount := utils.WordCount(res.Text)
	var version types.ContentVersion
	err = l.persistRetry(func() error {
		return l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
			count, err := l.core.Store().ContentVersionStore().Count(ctx, content.ID)
			if err != nil {
				return err
			}

			version = types.ContentVersion{
				ID:            utils.GenUniqIDStr(),
				ContentID:     content.ID,
				VersionNumber: count + 1,
				Title:         content.Title,
				Body:          res.Text,
				WordCount:     wordCount,
				Metadata: types.JSONMap{
					"model":             model,
					"kind":              job.Kind,
					"prompt_tokens":     res.PromptTokens,
					"completion_tokens": res.CompletionTokens,
					"cost":              cost.InexactFloat64(),
				},
				JobID:     job.ID,
				CreatedBy: job.UserID,
				CreatedAt: time.Now().UnixMilli(),
			}
			if err = l.core.Store().ContentVersionStore().Create(ctx, version); err != nil {
				return err
			}

			err = l.core.Store().ContentStore().UpdateGenerated(ctx, content.ID, types.ContentGenerated{
				Body:             res.Text,
				WordCount:        wordCount,
				CurrentVersionID: version.ID,
				Status:           types.CONTENT_STATUS_REVIEW,
			})
			if err != nil {
				return err
			}

			return l.core.Store().GenerationJobStore().MarkCompleted(ctx, job.ID, types.GenerationResult{
				VersionID:     version.ID,
				VersionNumber: version.VersionNumber,
				Tokens:        int64(res.TotalTokens()),
				Cost:          cost,
			}.ToMap())
		})
	})
	if err != nil {
		if errors.Is(err, types.ErrInvalidTransition) {
			// 任务已被取消，丢弃本次结果
			slog.Warn("Generation job finalized by another actor, discard result", slog.String("job_id", job.ID))
			return nil
		}
		// 模型已调用且已计费，结果无法落库，需要人工对账
		slog.Error("Generation result lost, reconciliation required",
			slog.String("job_id", job.ID),
			slog.String("content_id", content.ID),
			slog.Int("attempt", attempt),
			slog.Int("version_number", version.VersionNumber),
			slog.String("model", model),
			slog.Int("prompt_tokens", res.PromptTokens),
			slog.Int("completion_tokens", res.CompletionTokens),
			slog.String("cost", cost.USD()),
			slog.String("error", err.Error()))
		l.core.Metrics().PersistFailedInc()
		// 计量已记录为成功，这里不再写失败记录
		return l.failAttempt(job, attempt, model, elapsed, fmt.Errorf("persist generation result: %w", err), false)
	}
	l.core.Metrics().JobTransitionInc(string(types.JOB_STATUS_COMPLETED))

	l.archive(content.ID, version)
	slog.Info("Generation job completed",
		slog.String("job_id", job.ID),
		slog.String("version_id", version.ID),
		slog.Int("tokens", res.TotalTokens()),
		slog.String("cost", cost.USD()))
	return nil
}

// archive 归档失败不影响任务结果
func (l *GenerationLogic) archive(contentID string, version types.ContentVersion) {
	archiver := l.core.Archiver()
	if archiver == nil {
		return
	}
	key := path.Join(l.core.Cfg().ObjectStorage.Prefix, "contents", contentID, version.ID+".md")
	if err := archiver.PutObject(l.ctx, key, []byte(version.Body), "text/markdown; charset=utf-8"); err != nil {
		slog.Error("Failed to archive content version", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// failAttempt 先写失败的计量记录，再决定重试或终止
func (l *GenerationLogic) failAttempt(job *types.GenerationJob, attempt int, model string, elapsed time.Duration, cause error, record bool) error {
	msg := cause.Error()
	if record {
		_, err := NewUsageLogic(l.ctx, l.core).Record(types.UsageAttempt{
			UserID:         job.UserID,
			WorkspaceID:    job.WorkspaceID,
			OrganizationID: job.OrganizationID,
			ContentID:      job.ContentID,
			JobID:          job.ID,
			Model:          model,
			Duration:       elapsed,
			Success:        false,
			ErrorMessage:   msg,
		})
		if err != nil {
			slog.Error("Failed to record failed usage", slog.String("job_id", job.ID), slog.String("error", err.Error()))
			l.core.Metrics().UsageLogFailedInc(false)
		}
	}

	if err := l.core.Store().GenerationJobStore().MarkFailed(l.ctx, job.ID, msg); err != nil {
		if errors.Is(err, types.ErrInvalidTransition) {
			slog.Warn("Generation job finalized by another actor, skip failure", slog.String("job_id", job.ID))
			return nil
		}
		return errors.New("GenerationLogic.failAttempt.GenerationJobStore.MarkFailed", i18n.ERROR_INTERNAL, err)
	}
	l.core.Metrics().JobTransitionInc(string(types.JOB_STATUS_FAILED))

	retryCount := job.RetryCount + 1
	slog.Warn("Generation attempt failed",
		slog.String("job_id", job.ID),
		slog.Int("attempt", attempt),
		slog.Int("retry_count", retryCount),
		slog.String("error", msg))

	if retryCount < types.GENERATION_MAX_RETRIES {
		delay := l.core.Cfg().Generation.RetryDelayDuration() * time.Duration(retryCount)
		if queue := l.core.Queue(); queue != nil {
			if err := queue.EnqueueDelayedGeneration(l.ctx, job.ID, attempt+1, delay); err != nil {
				slog.Error("Failed to schedule generation retry", slog.String("job_id", job.ID), slog.String("error", err.Error()))
			}
		}
		return nil
	}

	// 重试耗尽，内容退回草稿
	return l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		content, err := l.getContent(ctx, job.ContentID)
		if err != nil {
			return errors.Trace("GenerationLogic.failAttempt", err)
		}
		if content.Status != types.CONTENT_STATUS_IN_PROGRESS {
			return nil
		}
		err = l.changeContentStatus(ctx, content, job.UserID, types.CONTENT_STATUS_DRAFT, types.JSONMap{
			"job_id":      job.ID,
			"retry_count": retryCount,
		}, "generation failed: "+utils.TruncateRunes(msg, 200))
		if err != nil {
			return errors.New("GenerationLogic.failAttempt.changeContentStatus", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
}

// JobStatus 查询任务当前状态与计量记录
func (l *GenerationLogic) JobStatus(jobID string) (*types.GenerationJob, []types.UsageRecord, error) {
	job, err := l.getJob(l.ctx, jobID)
	if err != nil {
		return nil, nil, errors.Trace("GenerationLogic.JobStatus", err)
	}
	records, err := l.core.Store().UsageRecordStore().ListByJob(l.ctx, jobID)
	if err != nil {
		return nil, nil, errors.New("GenerationLogic.JobStatus.UsageRecordStore.ListByJob", i18n.ERROR_INTERNAL, err)
	}
	return job, records, nil
}
