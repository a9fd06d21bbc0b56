package process

import (
	"context"
	"log/slog"
	"time"

	"github.com/contexor/contexor/app/core"
	"github.com/contexor/contexor/pkg/register"
	"github.com/contexor/contexor/pkg/types"
)

const (
	// 超过该时长仍为 pending 的任务视为投递失败
	STALE_PENDING_AFTER = 2 * time.Minute
	REQUEUE_BATCH_SIZE  = 100
)

func init() {
	register.RegisterFunc[*Process](ProcessKey{}, func(p *Process) {
		if p.Core().Queue() == nil {
			return
		}
		p.AddCronJob("*/5 * * * *", "requeue-pending", func(ctx context.Context) {
			RequeueStalePending(ctx, p.Core())
		})
	})
}

// RequeueStalePending 重新投递长时间停留在 pending 的任务，以及重试投递丢失的 failed 任务，返回投递成功的数量
func RequeueStalePending(ctx context.Context, core *core.Core) int {
	queue := core.Queue()
	if queue == nil {
		return 0
	}

	now := time.Now()
	createdBefore := now.Add(-STALE_PENDING_AFTER).UnixMilli()
	enqueued := eachJobPage(func(page uint64) ([]types.GenerationJob, error) {
		return core.Store().GenerationJobStore().ListByStatus(ctx, types.JOB_STATUS_PENDING, createdBefore, page, REQUEUE_BATCH_SIZE)
	}, func(job types.GenerationJob) error {
		// 5 分钟内已投递过的任务会被队列去重
		return queue.EnqueueGeneration(ctx, job.ID)
	})

	// 计划重试时间再过 STALE_PENDING_AFTER 仍未被拉起，说明延迟任务没有投递成功
	baseDelay := core.Cfg().Generation.RetryDelayDuration()
	retried := eachJobPage(func(page uint64) ([]types.GenerationJob, error) {
		return core.Store().GenerationJobStore().ListOverdueRetries(ctx, createdBefore, baseDelay, page, REQUEUE_BATCH_SIZE)
	}, func(job types.GenerationJob) error {
		// 第 N 次失败后的下一次尝试编号为 N
		return queue.EnqueueDelayedGeneration(ctx, job.ID, job.RetryCount, 0)
	})

	if enqueued+retried > 0 {
		slog.Info("Requeued generation jobs", slog.Int("pending", enqueued), slog.Int("retries", retried))
	}
	return enqueued + retried
}

func eachJobPage(list func(page uint64) ([]types.GenerationJob, error), enqueue func(job types.GenerationJob) error) int {
	var (
		page     uint64 = 1
		enqueued int
	)
	for {
		jobs, err := list(page)
		if err != nil {
			slog.Error("Failed to list generation jobs for requeue", slog.String("error", err.Error()))
			return enqueued
		}

		for _, job := range jobs {
			if err = enqueue(job); err != nil {
				slog.Warn("Failed to requeue generation job", slog.String("job_id", job.ID), slog.String("error", err.Error()))
				continue
			}
			enqueued++
		}

		if len(jobs) < REQUEUE_BATCH_SIZE {
			return enqueued
		}
		page++
	}
}
