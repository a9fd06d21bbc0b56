package sqlstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/contexor/contexor/pkg/register"
	"github.com/contexor/contexor/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.AuditLogStore = NewAuditLogStore(provider)
	})
}

type AuditLogStore struct {
	CommonFields
}

// NewAuditLogStore 创建新的 AuditLogStore 实例
func NewAuditLogStore(provider SqlProviderAchieve) *AuditLogStore {
	repo := &AuditLogStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_AUDIT_LOG)
	repo.SetAllColumns("id", "content_id", "user_id", "action", "old_status", "new_status", "changes", "notes", "created_at")
	return repo
}

func (s *AuditLogStore) Create(ctx context.Context, data types.AuditLog) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = nowMilli()
	}

	query := s.Builder().Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.ContentID, data.UserID, data.Action, data.OldStatus, data.NewStatus, data.Changes, data.Notes, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *AuditLogStore) List(ctx context.Context, contentID string) ([]types.AuditLog, error) {
	query := s.Builder().Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"content_id": contentID}).OrderBy("created_at ASC", "id ASC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.AuditLog
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
