package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// 生成任务类型
	TaskTypeGeneration = "content:generation"

	// 生成队列名称
	GenerationQueueName = "generation"

	// 单次尝试的超时，包含模型调用与落库
	GenerationTaskTimeout = 5 * time.Minute
)

// GenerationTask 队列里只携带任务 ID，其余状态以数据库为准
type GenerationTask struct {
	JobID   string `json:"job_id"`
	Attempt int    `json:"attempt"`
}

func ParseGenerationTask(task *asynq.Task) (GenerationTask, error) {
	var payload GenerationTask
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal generation task: %w", err)
	}
	if payload.JobID == "" {
		return payload, fmt.Errorf("generation task without job id")
	}
	return payload, nil
}

// GenerationQueue 生成任务队列
// 任务级重试由业务层显式调度，asynq 自身不重试
type GenerationQueue struct {
	client *asynq.Client
}

// NewGenerationQueueWithClient 使用已存在的 Client 创建队列
// 适用于多个队列共享同一个 asynq 连接的场景
func NewGenerationQueueWithClient(client *asynq.Client) *GenerationQueue {
	return &GenerationQueue{
		client: client,
	}
}

func (q *GenerationQueue) enqueue(ctx context.Context, payload GenerationTask, opts ...asynq.Option) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	opts = append([]asynq.Option{
		asynq.MaxRetry(0),
		asynq.Timeout(GenerationTaskTimeout),
		asynq.Queue(GenerationQueueName),
	}, opts...)

	_, err = q.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeGeneration, raw, opts...))
	return err
}

// EnqueueGeneration 首次入队，5 分钟内同一任务不重复入队
func (q *GenerationQueue) EnqueueGeneration(ctx context.Context, jobID string) error {
	err := q.enqueue(ctx, GenerationTask{JobID: jobID}, asynq.Unique(5*time.Minute))
	if err != nil {
		return fmt.Errorf("failed to enqueue generation task: %w", err)
	}

	slog.Info("Generation task enqueued", slog.String("job_id", jobID))
	return nil
}

// DelayedTaskID 每个任务的每次尝试在队列中只存在一份
func DelayedTaskID(jobID string, attempt int) string {
	return fmt.Sprintf("%s:%s:%d", TaskTypeGeneration, jobID, attempt)
}

// EnqueueDelayedGeneration 将失败的任务加入延迟队列（用于重试）
func (q *GenerationQueue) EnqueueDelayedGeneration(ctx context.Context, jobID string, attempt int, delay time.Duration) error {
	err := q.enqueue(ctx, GenerationTask{JobID: jobID, Attempt: attempt},
		asynq.ProcessIn(delay),
		asynq.TaskID(DelayedTaskID(jobID, attempt)))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// 同一次尝试已在队列中
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue delayed generation task: %w", err)
	}

	slog.Info("Generation task scheduled for delayed execution",
		slog.String("job_id", jobID),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))
	return nil
}

// Shutdown 优雅关闭队列资源
func (q *GenerationQueue) Shutdown() {
	if q.client == nil {
		return
	}
	if err := q.client.Close(); err != nil {
		slog.Error("Failed to close generation queue client", slog.String("error", err.Error()))
		return
	}
	slog.Info("Generation queue client closed")
}

// asynqLogger 适配器，将 asynq 日志输出到项目的 slog
type asynqLogger struct{}

func NewAsynqLogger() *asynqLogger {
	return &asynqLogger{}
}

func (l *asynqLogger) Debug(args ...any) {
	slog.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...any) {
	slog.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...any) {
	slog.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...any) {
	slog.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...any) {
	slog.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}
