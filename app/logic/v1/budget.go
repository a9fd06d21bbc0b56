package v1

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/samber/lo"

	"github.com/contexor/contexor/app/core"
	"github.com/contexor/contexor/pkg/errors"
	"github.com/contexor/contexor/pkg/i18n"
	"github.com/contexor/contexor/pkg/types"
	"github.com/contexor/contexor/pkg/utils"
)

// scopeLocks 同一进程内串行化同一额度主体的 检查+准入，跨进程仍可能超额
// 没有持有者的条目在解锁时移除
var scopeLocks = cmap.New[*scopeLock]()

type scopeLock struct {
	mu   sync.Mutex
	refs int // 受 cmap 分片锁保护
}

func lockScope(kind types.ScopeKind, scopeID string) func() {
	key := string(kind) + ":" + scopeID
	l := scopeLocks.Upsert(key, nil, func(exist bool, valueInMap, _ *scopeLock) *scopeLock {
		if !exist {
			valueInMap = &scopeLock{}
		}
		valueInMap.refs++
		return valueInMap
	})
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		scopeLocks.RemoveCb(key, func(_ string, v *scopeLock, exists bool) bool {
			if !exists {
				return false
			}
			v.refs--
			return v.refs == 0
		})
	}
}

type BudgetLogic struct {
	ctx  context.Context
	core *core.Core
	lang string
}

func NewBudgetLogic(ctx context.Context, core *core.Core) *BudgetLogic {
	return &BudgetLogic{
		ctx:  ctx,
		core: core,
		lang: InjectLanguage(ctx, core.Cfg().Budget.Lang),
	}
}

// effectiveLimit 没有配置时使用按主体类型的默认月度成本上限
func (l *BudgetLogic) effectiveLimit(kind types.ScopeKind, scopeID string) (types.UsageLimit, bool, error) {
	limit, err := l.core.Store().UsageLimitStore().Get(l.ctx, kind, scopeID)
	if err != nil {
		return types.UsageLimit{}, false, err
	}
	if limit != nil {
		if limit.Period == "" {
			limit.Period = types.PERIOD_MONTHLY
		}
		return *limit, false, nil
	}
	return types.UsageLimit{
		Scope:   kind,
		ScopeID: scopeID,
		CostLimit: types.NullMoney{
			Money: l.core.Cfg().Budget.DefaultLimit(kind),
			Valid: true,
		},
		Period: types.PERIOD_MONTHLY,
	}, true, nil
}

// CheckBudget 依次检查请求数、token 数、成本，首个 current >= limit 即拒绝
func (l *BudgetLogic) CheckBudget(kind types.ScopeKind, scopeID string) (types.BudgetDecision, error) {
	decision := types.BudgetDecision{Scope: kind, ScopeID: scopeID}
	if !kind.Valid() || scopeID == "" {
		return decision, errors.New("BudgetLogic.CheckBudget.InvalidScope", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}

	limit, isDefault, err := l.effectiveLimit(kind, scopeID)
	if err != nil {
		return decision, errors.New("BudgetLogic.CheckBudget.UsageLimitStore.Get", i18n.ERROR_INTERNAL, err)
	}

	summary, err := NewUsageLogic(l.ctx, l.core).GetUsageSummary(ScopeFilter(kind, scopeID), limit.Period)
	if err != nil {
		return decision, errors.Trace("BudgetLogic.CheckBudget", err)
	}

	userScope := kind == types.SCOPE_USER
	deny := func(ceiling, msgID, current, max string) types.BudgetDecision {
		decision.Exceeded = ceiling
		decision.Current = current
		decision.Limit = max
		decision.Reason = l.core.Localizer().GetWithData(l.lang, msgID, map[string]interface{}{
			"Current": current,
			"Limit":   max,
		})
		l.core.Metrics().BudgetDeniedInc(string(kind), ceiling)
		return decision
	}

	if limit.RequestsLimit.Valid && summary.TotalRequests >= limit.RequestsLimit.Int64 {
		return deny(types.CEILING_REQUESTS, lo.Ternary(userScope, i18n.BUDGET_USER_REQUESTS_EXCEEDED, i18n.BUDGET_REQUESTS_EXCEEDED),
			strconv.FormatInt(summary.TotalRequests, 10), strconv.FormatInt(limit.RequestsLimit.Int64, 10)), nil
	}

	if limit.TokensLimit.Valid && summary.TotalTokens >= limit.TokensLimit.Int64 {
		return deny(types.CEILING_TOKENS, lo.Ternary(userScope, i18n.BUDGET_USER_TOKENS_EXCEEDED, i18n.BUDGET_TOKENS_EXCEEDED),
			strconv.FormatInt(summary.TotalTokens, 10), strconv.FormatInt(limit.TokensLimit.Int64, 10)), nil
	}

	if limit.CostLimit.Valid && summary.TotalCost.GTE(limit.CostLimit.Money) {
		msgID := lo.Ternary(userScope, i18n.BUDGET_USER_COST_EXCEEDED, i18n.BUDGET_COST_EXCEEDED) + "." + string(limit.Period)
		decision = deny(types.CEILING_COST, msgID, summary.TotalCost.USD(), limit.CostLimit.Money.USD())
		if isDefault && kind == types.SCOPE_WORKSPACE {
			decision.Reason += " " + l.core.Localizer().Get(l.lang, i18n.BUDGET_UPGRADE_HINT)
		}
		return decision, nil
	}

	decision.Allowed = true
	decision.Reason = l.core.Localizer().Get(l.lang, i18n.BUDGET_WITHIN_LIMITS)
	return decision, nil
}

// CheckAdmission 先检查工作区，再检查用户，任一拒绝即拒绝
func (l *BudgetLogic) CheckAdmission(userID, workspaceID string) (types.BudgetDecision, error) {
	var last types.BudgetDecision
	for _, s := range admissionScopes(userID, workspaceID) {
		decision, err := l.CheckBudget(s.kind, s.id)
		if err != nil {
			return decision, err
		}
		if !decision.Allowed {
			return decision, nil
		}
		last = decision
	}
	return last, nil
}

type admissionScope struct {
	kind types.ScopeKind
	id   string
}

func admissionScopes(userID, workspaceID string) []admissionScope {
	var res []admissionScope
	if workspaceID != "" {
		res = append(res, admissionScope{types.SCOPE_WORKSPACE, workspaceID})
	}
	if userID != "" {
		res = append(res, admissionScope{types.SCOPE_USER, userID})
	}
	return res
}

// Admit 在持有额度主体锁的情况下完成检查与准入，被拒绝时返回 402
func (l *BudgetLogic) Admit(userID, workspaceID string, admit func() error) error {
	scopes := admissionScopes(userID, workspaceID)
	if len(scopes) == 0 {
		return errors.New("BudgetLogic.Admit.EmptyScope", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	// 加锁顺序固定为 工作区 -> 用户
	for _, s := range scopes {
		unlock := lockScope(s.kind, s.id)
		defer unlock()
	}

	decision, err := l.CheckAdmission(userID, workspaceID)
	if err != nil {
		return errors.Trace("BudgetLogic.Admit", err)
	}
	if !decision.Allowed {
		return errors.New("BudgetLogic.Admit.Denied", i18n.ERROR_PAYMENT_REQUIRED, nil).
			Code(http.StatusPaymentRequired).
			WithData(map[string]interface{}{
				"reason":   decision.Reason,
				"scope":    decision.Scope,
				"scope_id": decision.ScopeID,
				"exceeded": decision.Exceeded,
			})
	}
	return admit()
}

// SetUsageLimit 新建或覆盖某个主体的额度
func (l *BudgetLogic) SetUsageLimit(limit types.UsageLimit) error {
	if !limit.Scope.Valid() || limit.ScopeID == "" {
		return errors.New("BudgetLogic.SetUsageLimit.InvalidScope", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	if (limit.RequestsLimit.Valid && limit.RequestsLimit.Int64 < 0) ||
		(limit.TokensLimit.Valid && limit.TokensLimit.Int64 < 0) ||
		(limit.CostLimit.Valid && limit.CostLimit.Money.IsNegative()) {
		return errors.New("BudgetLogic.SetUsageLimit.NegativeLimit", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	switch limit.Period {
	case "":
		limit.Period = types.PERIOD_MONTHLY
	case types.PERIOD_MONTHLY, types.PERIOD_DAILY, types.PERIOD_WEEKLY, types.PERIOD_ALL:
	default:
		return errors.New("BudgetLogic.SetUsageLimit.InvalidPeriod", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	if limit.ID == "" {
		limit.ID = utils.GenUniqIDStr()
	}

	if err := l.core.Store().UsageLimitStore().Upsert(l.ctx, limit); err != nil {
		return errors.New("BudgetLogic.SetUsageLimit.UsageLimitStore.Upsert", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

func (l *BudgetLogic) GetUsageLimit(kind types.ScopeKind, scopeID string) (types.UsageLimit, error) {
	limit, _, err := l.effectiveLimit(kind, scopeID)
	if err != nil {
		return limit, errors.New("BudgetLogic.GetUsageLimit.UsageLimitStore.Get", i18n.ERROR_INTERNAL, err)
	}
	return limit, nil
}

// DeleteUsageLimit 删除后该主体回到默认额度
func (l *BudgetLogic) DeleteUsageLimit(kind types.ScopeKind, scopeID string) error {
	if !kind.Valid() || scopeID == "" {
		return errors.New("BudgetLogic.DeleteUsageLimit.InvalidScope", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	if err := l.core.Store().UsageLimitStore().Delete(l.ctx, kind, scopeID); err != nil {
		return errors.New("BudgetLogic.DeleteUsageLimit.UsageLimitStore.Delete", i18n.ERROR_INTERNAL, err)
	}
	return nil
}

// ListUsageLimits kind 为空时列出全部主体
func (l *BudgetLogic) ListUsageLimits(kind types.ScopeKind, page, pageSize uint64) ([]types.UsageLimit, error) {
	if kind != "" && !kind.Valid() {
		return nil, errors.New("BudgetLogic.ListUsageLimits.InvalidScope", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	}
	list, err := l.core.Store().UsageLimitStore().List(l.ctx, kind, page, pageSize)
	if err != nil {
		return nil, errors.New("BudgetLogic.ListUsageLimits.UsageLimitStore.List", i18n.ERROR_INTERNAL, err)
	}
	return list, nil
}
