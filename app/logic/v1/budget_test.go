package v1_test

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexor/contexor/app/core"
	v1 "github.com/contexor/contexor/app/logic/v1"
	"github.com/contexor/contexor/pkg/errors"
	"github.com/contexor/contexor/pkg/types"
)

func workspaceUsage(id, cost string, success bool) types.UsageRecord {
	return types.UsageRecord{
		WorkspaceID:   sql.NullString{String: id, Valid: true},
		PromptTokens:  100,
		EstimatedCost: types.MustParseMoney(cost),
		Success:       success,
		ErrorMessage:  "",
	}
}

func setLimit(t *testing.T, c *core.Core, limit types.UsageLimit) {
	t.Helper()
	require.NoError(t, v1.NewBudgetLogic(context.Background(), c).SetUsageLimit(limit))
}

func TestCheckBudgetCostExceeded(t *testing.T) {
	c := newTestCore(t, nil, nil)
	setLimit(t, c, types.UsageLimit{
		Scope:     types.SCOPE_WORKSPACE,
		ScopeID:   "w1",
		CostLimit: types.NullMoney{Money: types.MustParseMoney("1.00"), Valid: true},
	})
	insertUsage(t, c, workspaceUsage("w1", "1.50", true))

	decision, err := v1.NewBudgetLogic(context.Background(), c).CheckBudget(types.SCOPE_WORKSPACE, "w1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, types.CEILING_COST, decision.Exceeded)
	assert.Equal(t, "Monthly budget exceeded: $1.50/$1.00", decision.Reason)
}

func TestCheckBudgetWithinLimits(t *testing.T) {
	c := newTestCore(t, nil, nil)
	setLimit(t, c, types.UsageLimit{
		Scope:     types.SCOPE_WORKSPACE,
		ScopeID:   "w1",
		CostLimit: types.NullMoney{Money: types.MustParseMoney("100"), Valid: true},
	})
	insertUsage(t, c, workspaceUsage("w1", "0.50", true))

	decision, err := v1.NewBudgetLogic(context.Background(), c).CheckBudget(types.SCOPE_WORKSPACE, "w1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "Within limits", decision.Reason)
}

func TestCheckBudgetIgnoresPreviousMonth(t *testing.T) {
	c := newTestCore(t, nil, nil)
	setLimit(t, c, types.UsageLimit{
		Scope:     types.SCOPE_WORKSPACE,
		ScopeID:   "w1",
		CostLimit: types.NullMoney{Money: types.MustParseMoney("10"), Valid: true},
	})
	old := workspaceUsage("w1", "15", true)
	old.CreatedAt = time.Now().AddDate(0, 0, -35).UnixMilli()
	insertUsage(t, c, old)

	decision, err := v1.NewBudgetLogic(context.Background(), c).CheckBudget(types.SCOPE_WORKSPACE, "w1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckBudgetFailuresNeverDeny(t *testing.T) {
	c := newTestCore(t, nil, nil)
	setLimit(t, c, types.UsageLimit{
		Scope:         types.SCOPE_WORKSPACE,
		ScopeID:       "w1",
		RequestsLimit: sql.NullInt64{Int64: 1, Valid: true},
		TokensLimit:   sql.NullInt64{Int64: 1, Valid: true},
	})
	for i := 0; i < 3; i++ {
		r := workspaceUsage("w1", "0", false)
		r.ErrorMessage = "rate limited"
		insertUsage(t, c, r)
	}

	decision, err := v1.NewBudgetLogic(context.Background(), c).CheckBudget(types.SCOPE_WORKSPACE, "w1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckBudgetOrderAndReasons(t *testing.T) {
	c := newTestCore(t, nil, nil)
	logic := v1.NewBudgetLogic(context.Background(), c)

	// 请求数优先于 token 与成本
	setLimit(t, c, types.UsageLimit{
		Scope:         types.SCOPE_WORKSPACE,
		ScopeID:       "w1",
		RequestsLimit: sql.NullInt64{Int64: 10, Valid: true},
		TokensLimit:   sql.NullInt64{Int64: 10, Valid: true},
		CostLimit:     types.NullMoney{Money: types.MustParseMoney("0.01"), Valid: true},
	})
	for i := 0; i < 12; i++ {
		insertUsage(t, c, workspaceUsage("w1", "1", true))
	}
	decision, err := logic.CheckBudget(types.SCOPE_WORKSPACE, "w1")
	require.NoError(t, err)
	assert.Equal(t, types.CEILING_REQUESTS, decision.Exceeded)
	assert.Equal(t, "Request limit exceeded: 12/10", decision.Reason)

	setLimit(t, c, types.UsageLimit{
		Scope:       types.SCOPE_USER,
		ScopeID:     "u1",
		TokensLimit: sql.NullInt64{Int64: 800, Valid: true},
	})
	insertUsage(t, c, types.UsageRecord{
		UserID:           sql.NullString{String: "u1", Valid: true},
		PromptTokens:     600,
		CompletionTokens: 300,
		Success:          true,
	})
	decision, err = logic.CheckBudget(types.SCOPE_USER, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.CEILING_TOKENS, decision.Exceeded)
	assert.Equal(t, "User token limit exceeded: 900/800", decision.Reason)

	setLimit(t, c, types.UsageLimit{
		Scope:     types.SCOPE_USER,
		ScopeID:   "u2",
		CostLimit: types.NullMoney{Money: types.MustParseMoney("1"), Valid: true},
		Period:    types.PERIOD_DAILY,
	})
	insertUsage(t, c, types.UsageRecord{
		UserID:        sql.NullString{String: "u2", Valid: true},
		EstimatedCost: types.MustParseMoney("1"),
		Success:       true,
	})
	decision, err = logic.CheckBudget(types.SCOPE_USER, "u2")
	require.NoError(t, err)
	assert.Equal(t, "User daily budget exceeded: $1.00/$1.00", decision.Reason)
}

func TestCheckBudgetDefaultWorkspaceLimit(t *testing.T) {
	c := newTestCore(t, nil, nil)
	insertUsage(t, c, workspaceUsage("w1", "100", true))

	decision, err := v1.NewBudgetLogic(context.Background(), c).CheckBudget(types.SCOPE_WORKSPACE, "w1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Monthly budget exceeded: $100.00/$100.00 Please upgrade your plan or wait until next month.", decision.Reason)

	decision, err = v1.NewBudgetLogic(context.Background(), c).CheckBudget(types.SCOPE_USER, "nobody")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckAdmissionWorkspaceFirst(t *testing.T) {
	c := newTestCore(t, nil, nil)
	logic := v1.NewBudgetLogic(context.Background(), c)

	zero := types.NullMoney{Money: types.MustParseMoney("0"), Valid: true}
	setLimit(t, c, types.UsageLimit{Scope: types.SCOPE_WORKSPACE, ScopeID: "w1", CostLimit: zero})
	setLimit(t, c, types.UsageLimit{Scope: types.SCOPE_USER, ScopeID: "u1", CostLimit: zero})

	decision, err := logic.CheckAdmission("u1", "w1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, types.SCOPE_WORKSPACE, decision.Scope)

	decision, err = logic.CheckAdmission("u1", "w2")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, types.SCOPE_USER, decision.Scope)

	admitted := false
	err = logic.Admit("u1", "w2", func() error {
		admitted = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, admitted)
	assert.Equal(t, http.StatusPaymentRequired, errors.CodeOf(err))

	decision, err = logic.CheckAdmission("u3", "w3")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestSetUsageLimitValidation(t *testing.T) {
	c := newTestCore(t, nil, nil)
	logic := v1.NewBudgetLogic(context.Background(), c)

	err := logic.SetUsageLimit(types.UsageLimit{Scope: "team", ScopeID: "x"})
	assert.Equal(t, http.StatusBadRequest, errors.CodeOf(err))

	err = logic.SetUsageLimit(types.UsageLimit{
		Scope:         types.SCOPE_USER,
		ScopeID:       "u1",
		RequestsLimit: sql.NullInt64{Int64: -1, Valid: true},
	})
	assert.Equal(t, http.StatusBadRequest, errors.CodeOf(err))

	require.NoError(t, logic.SetUsageLimit(types.UsageLimit{
		Scope:       types.SCOPE_USER,
		ScopeID:     "u1",
		TokensLimit: sql.NullInt64{Int64: 5000, Valid: true},
	}))
	limit, err := logic.GetUsageLimit(types.SCOPE_USER, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.PERIOD_MONTHLY, limit.Period)
	assert.Equal(t, int64(5000), limit.TokensLimit.Int64)
	assert.False(t, limit.CostLimit.Valid)
}

func TestDeleteAndListUsageLimits(t *testing.T) {
	c := newTestCore(t, nil, nil)
	logic := v1.NewBudgetLogic(context.Background(), c)

	setLimit(t, c, types.UsageLimit{Scope: types.SCOPE_WORKSPACE, ScopeID: "w1", TokensLimit: sql.NullInt64{Int64: 10, Valid: true}})
	setLimit(t, c, types.UsageLimit{Scope: types.SCOPE_USER, ScopeID: "u1", TokensLimit: sql.NullInt64{Int64: 20, Valid: true}})
	setLimit(t, c, types.UsageLimit{Scope: types.SCOPE_USER, ScopeID: "u2", TokensLimit: sql.NullInt64{Int64: 30, Valid: true}})

	all, err := logic.ListUsageLimits("", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	users, err := logic.ListUsageLimits(types.SCOPE_USER, 1, 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].ScopeID)

	_, err = logic.ListUsageLimits("team", 0, 0)
	assert.Equal(t, http.StatusBadRequest, errors.CodeOf(err))

	err = logic.DeleteUsageLimit(types.SCOPE_WORKSPACE, "")
	assert.Equal(t, http.StatusBadRequest, errors.CodeOf(err))

	require.NoError(t, logic.DeleteUsageLimit(types.SCOPE_WORKSPACE, "w1"))
	// 删除不存在的主体不报错
	require.NoError(t, logic.DeleteUsageLimit(types.SCOPE_WORKSPACE, "w1"))

	// 工作区回到默认额度
	limit, err := logic.GetUsageLimit(types.SCOPE_WORKSPACE, "w1")
	require.NoError(t, err)
	assert.False(t, limit.TokensLimit.Valid)
	assert.Equal(t, "$100.00", limit.CostLimit.Money.USD())

	all, err = logic.ListUsageLimits("", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCheckBudgetLocalizedReason(t *testing.T) {
	c := newTestCore(t, nil, nil)
	ctx := context.WithValue(context.Background(), v1.LANGUAGE_KEY, "fa")

	decision, err := v1.NewBudgetLogic(ctx, c).CheckBudget(types.SCOPE_USER, "u1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.NotEqual(t, "Within limits", decision.Reason)
	assert.NotEmpty(t, decision.Reason)
}
