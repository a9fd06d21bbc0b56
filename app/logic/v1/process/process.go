package process

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"github.com/contexor/contexor/app/core"
	"github.com/contexor/contexor/pkg/queue"
	"github.com/contexor/contexor/pkg/register"
	"github.com/contexor/contexor/pkg/safe"
)

type Process struct {
	cron        *cron.Cron
	core        *core.Core
	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux
}

type ProcessKey struct{}

// NewProcess 没有配置 Redis 时只运行定时任务
func NewProcess(core *core.Core) *Process {
	p := &Process{
		cron: cron.New(),
		core: core,
	}

	cfg := core.Cfg().Redis
	if cfg.Enabled() {
		p.asynqServer = asynq.NewServer(cfg.AsynqOpt(), asynq.Config{
			Concurrency: core.Cfg().Generation.Workers(),
			Queues: map[string]int{
				queue.GenerationQueueName: 1,
			},
			Logger:   queue.NewAsynqLogger(),
			LogLevel: asynq.WarnLevel,
		})
		p.asynqMux = asynq.NewServeMux()
	} else {
		slog.Warn("Redis is not configured, generation consumer disabled")
	}

	register.Apply(ProcessKey{}, p)

	return p
}

func (p *Process) Cron() *cron.Cron {
	return p.cron
}

func (p *Process) Core() *core.Core {
	return p.core
}

// AsynqServerMux 未配置 Redis 时为 nil
func (p *Process) AsynqServerMux() *asynq.ServeMux {
	return p.asynqMux
}

// AddCronJob 定时任务内部的 panic 不会终止进程
func (p *Process) AddCronJob(spec, name string, fn func(ctx context.Context)) {
	_, err := p.cron.AddFunc(spec, func() {
		safe.RunWithLog(func() {
			fn(context.Background())
		}, name)
	})
	if err != nil {
		panic(err)
	}
}

func (p *Process) Start() {
	p.cron.Start()
	if p.asynqServer != nil {
		safe.Go("asynq-server", func() {
			if err := p.asynqServer.Run(p.asynqMux); err != nil {
				slog.Error("Asynq server stopped", slog.String("error", err.Error()))
			}
		})
	}
}

func (p *Process) Stop() {
	// 停止 cron 调度器
	if p.cron != nil {
		ctx := p.cron.Stop()
		<-ctx.Done()
	}

	if p.asynqServer != nil {
		p.asynqServer.Shutdown()
	}
}
