package process

import (
	"context"
	"log/slog"
	"time"

	"github.com/contexor/contexor/app/core"
	"github.com/contexor/contexor/pkg/register"
)

func init() {
	register.RegisterFunc[*Process](ProcessKey{}, func(p *Process) {
		// 每天凌晨 3 点清理过期的计量记录与已结束的任务
		p.AddCronJob("0 3 * * *", "retention", func(ctx context.Context) {
			NewRetentionTask(p.Core()).Run(ctx)
		})
	})
}

// RetentionTask 保留期清理，天数为 0 的数据永久保留
type RetentionTask struct {
	core *core.Core
	now  func() time.Time
}

func NewRetentionTask(core *core.Core) *RetentionTask {
	return &RetentionTask{
		core: core,
		now:  time.Now,
	}
}

// RetentionResult 各类数据的删除条数
type RetentionResult struct {
	UsageRecords int64
	Jobs         int64
}

func (t *RetentionTask) Run(ctx context.Context) RetentionResult {
	var (
		cfg = t.core.Cfg().Retention
		res RetentionResult
		err error
	)

	if cfg.UsageDays > 0 {
		before := t.now().AddDate(0, 0, -cfg.UsageDays)
		if res.UsageRecords, err = t.core.Store().UsageRecordStore().DeleteBefore(ctx, before); err != nil {
			slog.Error("Failed to delete expired usage records", slog.String("error", err.Error()))
		}
	}

	if cfg.JobDays > 0 {
		before := t.now().AddDate(0, 0, -cfg.JobDays)
		if res.Jobs, err = t.core.Store().GenerationJobStore().DeleteFinishedBefore(ctx, before); err != nil {
			slog.Error("Failed to delete finished generation jobs", slog.String("error", err.Error()))
		}
	}

	slog.Info("Retention task completed",
		slog.Int64("usage_records", res.UsageRecords),
		slog.Int64("jobs", res.Jobs))
	return res
}
