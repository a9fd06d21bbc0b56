package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexor/contexor/pkg/testutils"
)

// newTestRedisClient 未配置 CONTEXOR_TEST_REDIS_ADDR 时跳过
func newTestRedisClient(t *testing.T) *redis.Client {
	addr := testutils.RequireEnv(t, "CONTEXOR_TEST_REDIS_ADDR")
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("CONTEXOR_TEST_REDIS_PASSWORD"),
		DB:       1, // 测试使用 DB 1
	})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.FlushDB(context.Background()).Err())
	return client
}

func redisOpt(client *redis.Client) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     client.Options().Addr,
		Password: client.Options().Password,
		DB:       client.Options().DB,
	}
}

func TestParseGenerationTask(t *testing.T) {
	task, err := ParseGenerationTask(asynq.NewTask(TaskTypeGeneration, []byte(`{"job_id":"1","attempt":2}`)))
	require.NoError(t, err)
	assert.Equal(t, "1", task.JobID)
	assert.Equal(t, 2, task.Attempt)

	_, err = ParseGenerationTask(asynq.NewTask(TaskTypeGeneration, []byte(`{}`)))
	assert.Error(t, err)

	_, err = ParseGenerationTask(asynq.NewTask(TaskTypeGeneration, []byte(`not json`)))
	assert.Error(t, err)
}

func TestGenerationQueue_Enqueue(t *testing.T) {
	redisClient := newTestRedisClient(t)
	client := asynq.NewClient(redisOpt(redisClient))
	q := NewGenerationQueueWithClient(client)
	defer q.Shutdown()

	ctx := context.Background()
	require.NoError(t, q.EnqueueGeneration(ctx, "job-1"))
	// 唯一性窗口内重复入队会被拒绝
	assert.ErrorIs(t, q.EnqueueGeneration(ctx, "job-1"), asynq.ErrDuplicateTask)

	require.NoError(t, q.EnqueueDelayedGeneration(ctx, "job-1", 1, time.Minute))
	// 同一次尝试重复调度不会产生第二个任务
	require.NoError(t, q.EnqueueDelayedGeneration(ctx, "job-1", 1, 0))

	inspector := asynq.NewInspector(redisOpt(redisClient))
	defer inspector.Close()

	info, err := inspector.GetQueueInfo(GenerationQueueName)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pending)
	assert.Equal(t, 1, info.Scheduled)
}

func TestGenerationQueue_Dequeue(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	redisClient := newTestRedisClient(t)
	client := asynq.NewClient(redisOpt(redisClient))
	q := NewGenerationQueueWithClient(client)
	defer q.Shutdown()

	server := asynq.NewServer(redisOpt(redisClient), asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{GenerationQueueName: 1},
		Logger:      NewAsynqLogger(),
	})

	received := make(chan GenerationTask, 1)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeGeneration, func(ctx context.Context, task *asynq.Task) error {
		payload, err := ParseGenerationTask(task)
		if err != nil {
			return err
		}
		received <- payload
		return nil
	})
	require.NoError(t, server.Start(mux))
	defer server.Shutdown()

	require.NoError(t, q.EnqueueGeneration(context.Background(), "job-2"))

	select {
	case got := <-received:
		assert.Equal(t, "job-2", got.JobID)
	case <-time.After(10 * time.Second):
		t.Fatal("task was not processed")
	}
}
