package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/contexor/contexor/pkg/register"
	"github.com/contexor/contexor/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.GenerationJobStore = NewGenerationJobStore(provider)
	})
}

type GenerationJobStore struct {
	CommonFields
}

// NewGenerationJobStore 创建新的 GenerationJobStore 实例
func NewGenerationJobStore(provider SqlProviderAchieve) *GenerationJobStore {
	repo := &GenerationJobStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_GENERATION_JOB)
	repo.SetAllColumns("id", "content_id", "user_id", "workspace_id", "organization_id", "kind", "status",
		"params", "result", "error_message", "retry_count", "started_at", "completed_at", "created_at", "updated_at")
	return repo
}

func (s *GenerationJobStore) Create(ctx context.Context, data types.GenerationJob) error {
	now := nowMilli()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	data.UpdatedAt = now
	if data.Status == "" {
		data.Status = types.JOB_STATUS_PENDING
	}

	query := s.Builder().Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.ContentID, data.UserID, data.WorkspaceID, data.OrganizationID, data.Kind, data.Status,
			data.Params, data.Result, data.ErrorMessage, data.RetryCount, data.StartedAt, data.CompletedAt, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *GenerationJobStore) Get(ctx context.Context, id string) (*types.GenerationJob, error) {
	query := s.Builder().Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.GenerationJob
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

// transition 条件更新，只有当前状态属于合法源状态时才会生效，多个消费者并发时先到者生效
func (s *GenerationJobStore) transition(ctx context.Context, id string, to types.JobStatus, set map[string]interface{}) error {
	query := s.Builder().Update(s.GetTable()).
		Set("status", to).
		Set("updated_at", nowMilli()).
		SetMap(set).
		Where(sq.Eq{"id": id, "status": types.TransitionSources(to)})

	affected, err := s.execAffected(ctx, query)
	if err != nil {
		return err
	}
	if affected == 0 {
		return types.ErrInvalidTransition
	}
	return nil
}

// MarkRunning pending 或可重试的 failed 进入 running，重试次数已用尽的任务不会被重新拉起
func (s *GenerationJobStore) MarkRunning(ctx context.Context, id string) error {
	query := s.Builder().Update(s.GetTable()).
		Set("status", types.JOB_STATUS_RUNNING).
		Set("started_at", nowMilli()).
		Set("updated_at", nowMilli()).
		Where(sq.Eq{"id": id}).
		Where(sq.Or{
			sq.Eq{"status": types.JOB_STATUS_PENDING},
			sq.And{
				sq.Eq{"status": types.JOB_STATUS_FAILED},
				sq.Lt{"retry_count": types.GENERATION_MAX_RETRIES},
			},
		})

	affected, err := s.execAffected(ctx, query)
	if err != nil {
		return err
	}
	if affected == 0 {
		return types.ErrInvalidTransition
	}
	return nil
}

func (s *GenerationJobStore) MarkCompleted(ctx context.Context, id string, result types.JSONMap) error {
	return s.transition(ctx, id, types.JOB_STATUS_COMPLETED, map[string]interface{}{
		"result":        result,
		"error_message": "",
		"completed_at":  nowMilli(),
	})
}

// MarkFailed 每次失败 retry_count 加一
func (s *GenerationJobStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	return s.transition(ctx, id, types.JOB_STATUS_FAILED, map[string]interface{}{
		"error_message": errMsg,
		"retry_count":   sq.Expr("retry_count + 1"),
		"completed_at":  nowMilli(),
	})
}

func (s *GenerationJobStore) Cancel(ctx context.Context, id string) error {
	return s.transition(ctx, id, types.JOB_STATUS_CANCELLED, map[string]interface{}{
		"completed_at": nowMilli(),
	})
}

// ListByStatus createdBefore 为 0 时不限制创建时间
func (s *GenerationJobStore) ListByStatus(ctx context.Context, status types.JobStatus, createdBefore int64, page, pageSize uint64) ([]types.GenerationJob, error) {
	query := s.Builder().Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"status": status}).OrderBy("created_at ASC")
	if createdBefore > 0 {
		query = query.Where(sq.Lt{"created_at": createdBefore})
	}
	if page != 0 && pageSize != 0 {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.GenerationJob
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// ListOverdueRetries 可重试的 failed 任务，按 updated_at + retry_count * baseDelay 计算的计划重试时间早于 dueBefore
func (s *GenerationJobStore) ListOverdueRetries(ctx context.Context, dueBefore int64, baseDelay time.Duration, page, pageSize uint64) ([]types.GenerationJob, error) {
	query := s.Builder().Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"status": types.JOB_STATUS_FAILED}).
		Where(sq.Lt{"retry_count": types.GENERATION_MAX_RETRIES}).
		Where(sq.Expr("updated_at + retry_count * ? < ?", baseDelay.Milliseconds(), dueBefore)).
		OrderBy("updated_at ASC")
	if page != 0 && pageSize != 0 {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.GenerationJob
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteFinishedBefore 清理已结束的任务，仍可重试的 failed 任务保留
func (s *GenerationJobStore) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := s.Builder().Delete(s.GetTable()).
		Where(sq.Lt{"updated_at": before.UnixMilli()}).
		Where(sq.Or{
			sq.Eq{"status": []types.JobStatus{types.JOB_STATUS_COMPLETED, types.JOB_STATUS_CANCELLED}},
			sq.And{
				sq.Eq{"status": types.JOB_STATUS_FAILED},
				sq.GtOrEq{"retry_count": types.GENERATION_MAX_RETRIES},
			},
		})
	return s.execAffected(ctx, query)
}
