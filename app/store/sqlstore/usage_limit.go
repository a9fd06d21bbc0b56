package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/contexor/contexor/pkg/register"
	"github.com/contexor/contexor/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.UsageLimitStore = NewUsageLimitStore(provider)
	})
}

type UsageLimitStore struct {
	CommonFields
}

// NewUsageLimitStore 创建新的 UsageLimitStore 实例
func NewUsageLimitStore(provider SqlProviderAchieve) *UsageLimitStore {
	repo := &UsageLimitStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_USAGE_LIMIT)
	repo.SetAllColumns("id", "scope", "scope_id", "requests_limit", "tokens_limit", "cost_limit", "period", "created_at", "updated_at")
	return repo
}

// Get 没有配置时返回 nil, nil，由上层使用默认额度
func (s *UsageLimitStore) Get(ctx context.Context, scope types.ScopeKind, scopeID string) (*types.UsageLimit, error) {
	query := s.Builder().Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"scope": scope, "scope_id": scopeID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.UsageLimit
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// Upsert (scope, scope_id) 已存在时覆盖额度与周期
func (s *UsageLimitStore) Upsert(ctx context.Context, data types.UsageLimit) error {
	now := nowMilli()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	data.UpdatedAt = now
	if data.Period == "" {
		data.Period = types.PERIOD_MONTHLY
	}

	query := s.Builder().Insert(s.GetTable()).
		Columns(s.GetAllColumns()...).
		Values(data.ID, data.Scope, data.ScopeID, data.RequestsLimit, data.TokensLimit, data.CostLimit, data.Period, data.CreatedAt, data.UpdatedAt).
		Suffix("ON CONFLICT (scope, scope_id) DO UPDATE SET " +
			"requests_limit = EXCLUDED.requests_limit, tokens_limit = EXCLUDED.tokens_limit, " +
			"cost_limit = EXCLUDED.cost_limit, period = EXCLUDED.period, updated_at = EXCLUDED.updated_at")

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *UsageLimitStore) Delete(ctx context.Context, scope types.ScopeKind, scopeID string) error {
	query := s.Builder().Delete(s.GetTable()).Where(sq.Eq{"scope": scope, "scope_id": scopeID})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *UsageLimitStore) List(ctx context.Context, scope types.ScopeKind, page, pageSize uint64) ([]types.UsageLimit, error) {
	query := s.Builder().Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("scope", "scope_id")
	if scope != "" {
		query = query.Where(sq.Eq{"scope": scope})
	}
	if page != 0 && pageSize != 0 {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.UsageLimit
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}
