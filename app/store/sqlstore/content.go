package sqlstore

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/contexor/contexor/pkg/register"
	"github.com/contexor/contexor/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.ContentStore = NewContentStore(provider)
	})
}

type ContentStore struct {
	CommonFields
}

// NewContentStore 创建新的 ContentStore 实例
func NewContentStore(provider SqlProviderAchieve) *ContentStore {
	repo := &ContentStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_CONTENT)
	repo.SetAllColumns("id", "project_id", "workspace_id", "organization_id", "title", "body", "status", "word_count",
		"current_version_id", "has_pii", "pii_warnings", "created_by", "created_at", "updated_at")
	return repo
}

func (s *ContentStore) Create(ctx context.Context, data types.Content) error {
	now := nowMilli()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	data.UpdatedAt = now
	if data.Status == "" {
		data.Status = types.CONTENT_STATUS_DRAFT
	}

	query := s.Builder().Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.ProjectID, data.WorkspaceID, data.OrganizationID, data.Title, data.Body, data.Status, data.WordCount,
			data.CurrentVersionID, data.HasPII, data.PIIWarnings, data.CreatedBy, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ContentStore) Get(ctx context.Context, id string) (*types.Content, error) {
	query := s.Builder().Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Content
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ContentStore) update(ctx context.Context, id string, set map[string]interface{}) error {
	query := s.Builder().Update(s.GetTable()).
		SetMap(set).
		Set("updated_at", nowMilli()).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ContentStore) UpdateStatus(ctx context.Context, id string, status types.ContentStatus) error {
	return s.update(ctx, id, map[string]interface{}{
		"status": status,
	})
}

// UpdatePII 写入检测结果，空告警视为无 PII
func (s *ContentStore) UpdatePII(ctx context.Context, id string, warnings types.StringMap) error {
	return s.update(ctx, id, map[string]interface{}{
		"has_pii":      len(warnings) > 0,
		"pii_warnings": warnings,
	})
}

func (s *ContentStore) UpdateGenerated(ctx context.Context, id string, data types.ContentGenerated) error {
	return s.update(ctx, id, map[string]interface{}{
		"body":               data.Body,
		"word_count":         data.WordCount,
		"current_version_id": data.CurrentVersionID,
		"status":             data.Status,
	})
}

// GetOwnership 内容表上的 project/workspace -> organization 归属
func (s *ContentStore) GetOwnership(ctx context.Context, level types.ScopeLevel, id string) (*types.Ownership, error) {
	var column string
	switch level {
	case types.SCOPE_LEVEL_PROJECT:
		column = "project_id"
	case types.SCOPE_LEVEL_WORKSPACE:
		column = "workspace_id"
	case types.SCOPE_LEVEL_ORGANIZATION:
		column = "organization_id"
	default:
		return nil, fmt.Errorf("unknown scope level %q", level)
	}

	query := s.Builder().Select("project_id", "workspace_id", "organization_id").From(s.GetTable()).
		Where(sq.Eq{column: id}).
		Where(sq.NotEq{"organization_id": ""}).
		OrderBy("created_at ASC").
		Limit(1)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Ownership
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}
