package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Semaphore 限制同时进行的模型调用数
type Semaphore interface {
	TryAcquire(ctx context.Context) bool
	Release(ctx context.Context)
}

// DistributedSemaphore 分布式信号量，基于 Redis 实现
type DistributedSemaphore struct {
	redis      redis.UniversalClient
	key        string
	maxPermits int
	timeout    time.Duration
}

// NewDistributedSemaphore 创建分布式信号量
func NewDistributedSemaphore(redis redis.UniversalClient, key string, maxPermits int, timeout time.Duration) *DistributedSemaphore {
	return &DistributedSemaphore{
		redis:      redis,
		key:        key,
		maxPermits: maxPermits,
		timeout:    timeout,
	}
}

var acquireScript = redis.NewScript(`
	local key = KEYS[1]
	local max_permits = tonumber(ARGV[1])
	local timeout = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')

	if current < max_permits then
		redis.call('INCR', key)
		redis.call('EXPIRE', key, timeout)
		return 1
	else
		return 0
	end
`)

// 避免减到负数
var releaseScript = redis.NewScript(`
	local key = KEYS[1]
	local current = tonumber(redis.call('GET', key) or '0')

	if current > 0 then
		redis.call('DECR', key)
		return 1
	else
		return 0
	end
`)

// TryAcquire 尝试获取信号量许可
func (s *DistributedSemaphore) TryAcquire(ctx context.Context) bool {
	result, err := acquireScript.Run(ctx, s.redis, []string{s.key}, s.maxPermits, int(s.timeout.Seconds())).Int()
	if err != nil {
		return false
	}
	return result == 1
}

// Release 释放信号量许可
func (s *DistributedSemaphore) Release(ctx context.Context) {
	releaseScript.Run(ctx, s.redis, []string{s.key})
}

// GetCurrent 获取当前已使用的许可数
func (s *DistributedSemaphore) GetCurrent(ctx context.Context) int {
	result, err := s.redis.Get(ctx, s.key).Int()
	if err != nil {
		return 0
	}
	return result
}

// LocalSemaphore 未配置 Redis 时的进程内实现
type LocalSemaphore struct {
	permits chan struct{}
}

func NewLocalSemaphore(maxPermits int) *LocalSemaphore {
	return &LocalSemaphore{permits: make(chan struct{}, maxPermits)}
}

func (s *LocalSemaphore) TryAcquire(ctx context.Context) bool {
	select {
	case s.permits <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *LocalSemaphore) Release(ctx context.Context) {
	select {
	case <-s.permits:
	default:
	}
}

// Acquire 轮询直到拿到许可或 ctx 结束
func Acquire(ctx context.Context, sem Semaphore, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if sem.TryAcquire(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SemaphoreManager 信号量管理器，统一管理所有分布式信号量
type SemaphoreManager struct {
	core           *Core
	generation     Semaphore
	generationOnce sync.Once
}

// NewSemaphoreManager 创建信号量管理器
func NewSemaphoreManager(core *Core) *SemaphoreManager {
	return &SemaphoreManager{
		core: core,
	}
}

// Generation 获取生成任务信号量（懒加载）
// 许可 5 分钟过期，防止 worker 崩溃后许可泄漏
func (m *SemaphoreManager) Generation() Semaphore {
	m.generationOnce.Do(func() {
		maxConcurrency := m.core.cfg.Generation.Concurrency()
		if m.core.Redis() == nil {
			m.generation = NewLocalSemaphore(maxConcurrency)
			return
		}

		m.generation = NewDistributedSemaphore(
			m.core.Redis(),
			fmt.Sprintf("%s:semaphore:generation", m.core.cfg.Redis.Prefix()),
			maxConcurrency,
			time.Minute*5,
		)
	})
	return m.generation
}
