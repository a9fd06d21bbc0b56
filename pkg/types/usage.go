package types

import (
	"database/sql"
	"fmt"
	"time"
)

type ScopeKind string

const (
	SCOPE_USER         ScopeKind = "user"
	SCOPE_WORKSPACE    ScopeKind = "workspace"
	SCOPE_ORGANIZATION ScopeKind = "organization"
)

func (k ScopeKind) Valid() bool {
	switch k {
	case SCOPE_USER, SCOPE_WORKSPACE, SCOPE_ORGANIZATION:
		return true
	}
	return false
}

type Period string

const (
	PERIOD_MONTHLY Period = "monthly"
	PERIOD_DAILY   Period = "daily"
	PERIOD_WEEKLY  Period = "weekly"
	PERIOD_ALL     Period = "all"
)

// PeriodStart 统计窗口起点，窗口终点恒为 now
func PeriodStart(p Period, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	switch p {
	case PERIOD_DAILY:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	case PERIOD_WEEKLY:
		return now.AddDate(0, 0, -7)
	case PERIOD_ALL:
		return time.Time{}
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	}
}

// UsageRecord 每一次外部模型调用（含失败）的计量记录，只追加
type UsageRecord struct {
	ID               string          `json:"id" db:"id"`
	UserID           sql.NullString  `json:"user_id" db:"user_id"`
	WorkspaceID      sql.NullString  `json:"workspace_id" db:"workspace_id"`
	OrganizationID   sql.NullString  `json:"organization_id" db:"organization_id"`
	ContentID        sql.NullString  `json:"content_id" db:"content_id"`
	JobID            sql.NullString  `json:"job_id" db:"job_id"`
	Model            string          `json:"model" db:"model"`
	PromptTokens     int64           `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int64           `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int64           `json:"total_tokens" db:"total_tokens"`
	EstimatedCost    Money           `json:"estimated_cost" db:"estimated_cost"`
	RequestDuration  sql.NullFloat64 `json:"request_duration" db:"request_duration"` // 秒
	Success          bool            `json:"success" db:"success"`
	ErrorMessage     string          `json:"error_message" db:"error_message"`
	CreatedAt        int64           `json:"created_at" db:"created_at"` // 毫秒
}

// UsageAttempt 写入账本的入参
type UsageAttempt struct {
	UserID           string
	WorkspaceID      string
	OrganizationID   string
	ContentID        string
	JobID            string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
	EstimatedCost    Money
	Duration         time.Duration
	Success          bool
	ErrorMessage     string
}

type UsageFilter struct {
	UserID         string
	WorkspaceID    string
	OrganizationID string
	Since          time.Time
	Until          time.Time
}

type ModelUsage struct {
	Requests int64 `json:"requests"`
	Tokens   int64 `json:"tokens"`
	Cost     Money `json:"cost"`
}

type UsageSummary struct {
	TotalRequests         int64                 `json:"total_requests"`
	TotalPromptTokens     int64                 `json:"total_prompt_tokens"`
	TotalCompletionTokens int64                 `json:"total_completion_tokens"`
	TotalTokens           int64                 `json:"total_tokens"`
	TotalCost             Money                 `json:"total_cost"`
	ModelBreakdown        map[string]ModelUsage `json:"model_breakdown"`
}

// ModelUsageRow 按模型分组的聚合行
type ModelUsageRow struct {
	Model            string `db:"model"`
	Requests         int64  `db:"requests"`
	PromptTokens     int64  `db:"prompt_tokens"`
	CompletionTokens int64  `db:"completion_tokens"`
	TotalTokens      int64  `db:"total_tokens"`
	Cost             Money  `db:"cost"`
}

// UsageLimit 额度策略，(scope, scope_id) 唯一
type UsageLimit struct {
	ID            string        `json:"id" db:"id"`
	Scope         ScopeKind     `json:"scope" db:"scope"`
	ScopeID       string        `json:"scope_id" db:"scope_id"`
	RequestsLimit sql.NullInt64 `json:"requests_limit" db:"requests_limit"`
	TokensLimit   sql.NullInt64 `json:"tokens_limit" db:"tokens_limit"`
	CostLimit     NullMoney     `json:"cost_limit" db:"cost_limit"`
	Period        Period        `json:"period" db:"period"`
	CreatedAt     int64         `json:"created_at" db:"created_at"`
	UpdatedAt     int64         `json:"updated_at" db:"updated_at"`
}

const (
	CEILING_REQUESTS = "requests"
	CEILING_TOKENS   = "tokens"
	CEILING_COST     = "cost"
)

// BudgetDecision CheckBudget 的结果
type BudgetDecision struct {
	Allowed  bool      `json:"allowed"`
	Reason   string    `json:"reason"`
	Scope    ScopeKind `json:"scope"`
	ScopeID  string    `json:"scope_id"`
	Exceeded string    `json:"exceeded,omitempty"`
	Current  string    `json:"current,omitempty"`
	Limit    string    `json:"limit,omitempty"`
}

func (d BudgetDecision) String() string {
	return fmt.Sprintf("%s:%s allowed=%t %s", d.Scope, d.ScopeID, d.Allowed, d.Reason)
}
