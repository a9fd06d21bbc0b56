package process

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/contexor/contexor/app/core"
	v1 "github.com/contexor/contexor/app/logic/v1"
	"github.com/contexor/contexor/pkg/queue"
	"github.com/contexor/contexor/pkg/register"
)

func init() {
	register.RegisterFunc[*Process](ProcessKey{}, func(p *Process) {
		mux := p.AsynqServerMux()
		if mux == nil {
			return
		}
		mux.HandleFunc(queue.TaskTypeGeneration, NewGenerationHandler(p.Core()))
		slog.Info("Generation task consumer registered")
	})
}

// NewGenerationHandler 任务级重试由 RunAttempt 显式调度，这里返回的错误只用于日志
func NewGenerationHandler(core *core.Core) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		payload, err := queue.ParseGenerationTask(task)
		if err != nil {
			slog.Error("Failed to parse generation task", slog.String("error", err.Error()))
			return err
		}

		slog.Info("Processing generation task",
			slog.String("job_id", payload.JobID),
			slog.Int("attempt", payload.Attempt))

		if err = v1.NewGenerationLogic(ctx, core).RunAttempt(payload.JobID, payload.Attempt); err != nil {
			slog.Error("Generation attempt error",
				slog.String("job_id", payload.JobID),
				slog.Int("attempt", payload.Attempt),
				slog.String("error", err.Error()))
			return err
		}
		return nil
	}
}
