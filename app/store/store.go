package store

import (
	"context"
	"time"

	"github.com/contexor/contexor/pkg/sqlstore"
	"github.com/contexor/contexor/pkg/types"
)

// UsageRecordStore 计量账本，只追加
type UsageRecordStore interface {
	sqlstore.SqlCommons
	// Create 写入一条计量记录
	Create(ctx context.Context, data types.UsageRecord) error
	Get(ctx context.Context, id string) (*types.UsageRecord, error)
	// ListByJob 按时间顺序返回某个任务的所有尝试
	ListByJob(ctx context.Context, jobID string) ([]types.UsageRecord, error)
	// SummarizeByModel 只统计 success = true 的记录
	SummarizeByModel(ctx context.Context, filter types.UsageFilter) ([]types.ModelUsageRow, error)
	// DeleteBefore 保留期清理
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type UsageLimitStore interface {
	sqlstore.SqlCommons
	// Get 不存在时返回 nil, nil
	Get(ctx context.Context, scope types.ScopeKind, scopeID string) (*types.UsageLimit, error)
	Upsert(ctx context.Context, data types.UsageLimit) error
	Delete(ctx context.Context, scope types.ScopeKind, scopeID string) error
	List(ctx context.Context, scope types.ScopeKind, page, pageSize uint64) ([]types.UsageLimit, error)
}

// GenerationJobStore 状态迁移均为条件更新，源状态不合法时返回 types.ErrInvalidTransition
type GenerationJobStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.GenerationJob) error
	Get(ctx context.Context, id string) (*types.GenerationJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, result types.JSONMap) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	Cancel(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status types.JobStatus, createdBefore int64, page, pageSize uint64) ([]types.GenerationJob, error)
	// ListOverdueRetries 重试投递丢失、计划时间已过的 failed 任务
	ListOverdueRetries(ctx context.Context, dueBefore int64, baseDelay time.Duration, page, pageSize uint64) ([]types.GenerationJob, error)
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

type ContentStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.Content) error
	Get(ctx context.Context, id string) (*types.Content, error)
	UpdateStatus(ctx context.Context, id string, status types.ContentStatus) error
	UpdatePII(ctx context.Context, id string, warnings types.StringMap) error
	UpdateGenerated(ctx context.Context, id string, data types.ContentGenerated) error
	// GetOwnership 按项目或工作区查询所属组织
	GetOwnership(ctx context.Context, level types.ScopeLevel, id string) (*types.Ownership, error)
}

type ContentVersionStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.ContentVersion) error
	Get(ctx context.Context, id string) (*types.ContentVersion, error)
	Count(ctx context.Context, contentID string) (int, error)
	List(ctx context.Context, contentID string) ([]types.ContentVersion, error)
}

type AuditLogStore interface {
	sqlstore.SqlCommons
	Create(ctx context.Context, data types.AuditLog) error
	List(ctx context.Context, contentID string) ([]types.AuditLog, error)
}
