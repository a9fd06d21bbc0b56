package sqlstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/contexor/contexor/pkg/register"
	"github.com/contexor/contexor/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.ContentVersionStore = NewContentVersionStore(provider)
	})
}

type ContentVersionStore struct {
	CommonFields
}

// NewContentVersionStore 创建新的 ContentVersionStore 实例
func NewContentVersionStore(provider SqlProviderAchieve) *ContentVersionStore {
	repo := &ContentVersionStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_CONTENT_VERSION)
	repo.SetAllColumns("id", "content_id", "version_number", "title", "body", "word_count", "metadata", "job_id", "created_by", "created_at")
	return repo
}

// Create (content_id, version_number) 唯一，重复写入会返回约束错误
func (s *ContentVersionStore) Create(ctx context.Context, data types.ContentVersion) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = nowMilli()
	}

	query := s.Builder().Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.ContentID, data.VersionNumber, data.Title, data.Body, data.WordCount, data.Metadata, data.JobID, data.CreatedBy, data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ContentVersionStore) Get(ctx context.Context, id string) (*types.ContentVersion, error) {
	query := s.Builder().Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.ContentVersion
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ContentVersionStore) Count(ctx context.Context, contentID string) (int, error) {
	query := s.Builder().Select("COUNT(*)").From(s.GetTable()).Where(sq.Eq{"content_id": contentID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	var res int
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return 0, err
	}
	return res, nil
}

func (s *ContentVersionStore) List(ctx context.Context, contentID string) ([]types.ContentVersion, error) {
	query := s.Builder().Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"content_id": contentID}).OrderBy("version_number ASC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.ContentVersion
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
