package sqlstore

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/contexor/contexor/pkg/register"
	"github.com/contexor/contexor/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.UsageRecordStore = NewUsageRecordStore(provider)
	})
}

type UsageRecordStore struct {
	CommonFields
}

// NewUsageRecordStore 创建新的 UsageRecordStore 实例
func NewUsageRecordStore(provider SqlProviderAchieve) *UsageRecordStore {
	repo := &UsageRecordStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_USAGE_RECORD)
	repo.SetAllColumns("id", "user_id", "workspace_id", "organization_id", "content_id", "job_id", "model",
		"prompt_tokens", "completion_tokens", "total_tokens", "estimated_cost", "request_duration",
		"success", "error_message", "created_at")
	return repo
}

// Create 新增一条计量记录，total_tokens 由 prompt 与 completion 计算
func (s *UsageRecordStore) Create(ctx context.Context, data types.UsageRecord) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = nowMilli()
	}
	data.TotalTokens = data.PromptTokens + data.CompletionTokens

	query := s.Builder().Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.UserID, data.WorkspaceID, data.OrganizationID, data.ContentID, data.JobID, data.Model,
			data.PromptTokens, data.CompletionTokens, data.TotalTokens, data.EstimatedCost, data.RequestDuration,
			data.Success, data.ErrorMessage, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *UsageRecordStore) Get(ctx context.Context, id string) (*types.UsageRecord, error) {
	query := s.Builder().Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.UsageRecord
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListByJob 按尝试顺序返回
func (s *UsageRecordStore) ListByJob(ctx context.Context, jobID string) ([]types.UsageRecord, error) {
	query := s.Builder().Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"job_id": jobID}).OrderBy("created_at ASC", "id ASC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.UsageRecord
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func applyUsageFilter(query sq.SelectBuilder, filter types.UsageFilter) sq.SelectBuilder {
	if filter.UserID != "" {
		query = query.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.WorkspaceID != "" {
		query = query.Where(sq.Eq{"workspace_id": filter.WorkspaceID})
	}
	if filter.OrganizationID != "" {
		query = query.Where(sq.Eq{"organization_id": filter.OrganizationID})
	}
	if !filter.Since.IsZero() {
		query = query.Where(sq.GtOrEq{"created_at": filter.Since.UnixMilli()})
	}
	if !filter.Until.IsZero() {
		query = query.Where(sq.LtOrEq{"created_at": filter.Until.UnixMilli()})
	}
	return query
}

// SummarizeByModel 失败的调用只做审计，不计入用量
func (s *UsageRecordStore) SummarizeByModel(ctx context.Context, filter types.UsageFilter) ([]types.ModelUsageRow, error) {
	query := s.Builder().Select(
		"model",
		"COUNT(*) AS requests",
		"COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens",
		"COALESCE(SUM(completion_tokens), 0) AS completion_tokens",
		"COALESCE(SUM(total_tokens), 0) AS total_tokens",
		"COALESCE(SUM(estimated_cost), 0) AS cost",
	).From(s.GetTable()).Where(sq.Eq{"success": true})

	queryString, args, err := applyUsageFilter(query, filter).GroupBy("model").OrderBy("model").ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.ModelUsageRow
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return res, nil
}

// DeleteBefore 删除 before 之前的记录
func (s *UsageRecordStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return s.execAffected(ctx, s.Builder().Delete(s.GetTable()).Where(sq.Lt{"created_at": before.UnixMilli()}))
}
