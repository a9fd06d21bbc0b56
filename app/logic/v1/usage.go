package v1

import (
	"context"
	"database/sql"
	"time"

	"github.com/samber/lo"

	"github.com/contexor/contexor/app/core"
	"github.com/contexor/contexor/pkg/errors"
	"github.com/contexor/contexor/pkg/i18n"
	"github.com/contexor/contexor/pkg/types"
	"github.com/contexor/contexor/pkg/utils"
)

const DEFAULT_USAGE_ERROR_MESSAGE = "unknown error"

type UsageLogic struct {
	ctx  context.Context
	core *core.Core
}

func NewUsageLogic(ctx context.Context, core *core.Core) *UsageLogic {
	return &UsageLogic{
		ctx:  ctx,
		core: core,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Record 追加一条计量记录，返回记录 id
func (l *UsageLogic) Record(attempt types.UsageAttempt) (string, error) {
	if attempt.PromptTokens < 0 {
		attempt.PromptTokens = 0
	}
	if attempt.CompletionTokens < 0 {
		attempt.CompletionTokens = 0
	}
	if attempt.EstimatedCost.IsNegative() {
		attempt.EstimatedCost = types.Money{}
	}
	if !attempt.Success && attempt.ErrorMessage == "" {
		attempt.ErrorMessage = DEFAULT_USAGE_ERROR_MESSAGE
	}

	record := types.UsageRecord{
		ID:               utils.GenUniqIDStr(),
		UserID:           nullString(attempt.UserID),
		WorkspaceID:      nullString(attempt.WorkspaceID),
		OrganizationID:   nullString(attempt.OrganizationID),
		ContentID:        nullString(attempt.ContentID),
		JobID:            nullString(attempt.JobID),
		Model:            attempt.Model,
		PromptTokens:     attempt.PromptTokens,
		CompletionTokens: attempt.CompletionTokens,
		TotalTokens:      attempt.PromptTokens + attempt.CompletionTokens,
		EstimatedCost:    attempt.EstimatedCost,
		Success:          attempt.Success,
		ErrorMessage:     attempt.ErrorMessage,
		CreatedAt:        time.Now().UnixMilli(),
	}
	if attempt.Duration > 0 {
		record.RequestDuration = sql.NullFloat64{Float64: attempt.Duration.Seconds(), Valid: true}
	}

	if err := l.core.Store().UsageRecordStore().Create(l.ctx, record); err != nil {
		return "", errors.New("UsageLogic.Record.UsageRecordStore.Create", i18n.ERROR_INTERNAL, err)
	}
	return record.ID, nil
}

// Summarize 只统计成功的调用
func (l *UsageLogic) Summarize(filter types.UsageFilter) (*types.UsageSummary, error) {
	rows, err := l.core.Store().UsageRecordStore().SummarizeByModel(l.ctx, filter)
	if err != nil {
		return nil, errors.New("UsageLogic.Summarize.UsageRecordStore.SummarizeByModel", i18n.ERROR_INTERNAL, err)
	}

	summary := &types.UsageSummary{
		TotalRequests:         lo.SumBy(rows, func(r types.ModelUsageRow) int64 { return r.Requests }),
		TotalPromptTokens:     lo.SumBy(rows, func(r types.ModelUsageRow) int64 { return r.PromptTokens }),
		TotalCompletionTokens: lo.SumBy(rows, func(r types.ModelUsageRow) int64 { return r.CompletionTokens }),
		TotalTokens:           lo.SumBy(rows, func(r types.ModelUsageRow) int64 { return r.TotalTokens }),
		ModelBreakdown: lo.SliceToMap(rows, func(r types.ModelUsageRow) (string, types.ModelUsage) {
			return r.Model, types.ModelUsage{
				Requests: r.Requests,
				Tokens:   r.TotalTokens,
				Cost:     r.Cost,
			}
		}),
	}
	for _, r := range rows {
		summary.TotalCost = summary.TotalCost.Add(r.Cost)
	}
	return summary, nil
}

// GetUsageSummary 统计 period 窗口起点到当前时刻的用量
func (l *UsageLogic) GetUsageSummary(filter types.UsageFilter, period types.Period) (*types.UsageSummary, error) {
	now := time.Now()
	filter.Since = types.PeriodStart(period, now, l.core.Location())
	filter.Until = now
	return l.Summarize(filter)
}

// ScopeFilter 按额度主体构造过滤条件
func ScopeFilter(kind types.ScopeKind, scopeID string) types.UsageFilter {
	switch kind {
	case types.SCOPE_USER:
		return types.UsageFilter{UserID: scopeID}
	case types.SCOPE_WORKSPACE:
		return types.UsageFilter{WorkspaceID: scopeID}
	default:
		return types.UsageFilter{OrganizationID: scopeID}
	}
}
