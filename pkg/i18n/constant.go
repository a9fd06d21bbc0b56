package i18n

var ALLOW_LANG = map[string]bool{
	"en": true,
	"fa": true,
}

const DEFAULT_LANG = "en"

const (
	ERROR_INTERNAL          = "error.internal"
	ERROR_UNAUTHORIZED      = "error.unauthorized"
	ERROR_NOT_FOUND         = "error.notfound"
	ERROR_INVALIDARGUMENT   = "error.invalidargument"
	ERROR_PAYMENT_REQUIRED  = "error.payment_required"
	ERROR_CONFLICT          = "error.conflict"
	ERROR_TOO_MANY_REQUESTS = "error.tooManyRequests"

	ERROR_AI_PROVIDER            = "error.ai.provider"
	ERROR_AI_MODEL_NOT_PRICED    = "error.ai.model_not_priced"
	ERROR_JOB_INVALID_TRANSITION = "error.job.invalid_transition"
)

const (
	BUDGET_WITHIN_LIMITS          = "budget.within_limits"
	BUDGET_REQUESTS_EXCEEDED      = "budget.requests_exceeded"
	BUDGET_TOKENS_EXCEEDED        = "budget.tokens_exceeded"
	BUDGET_COST_EXCEEDED          = "budget.cost_exceeded"
	BUDGET_USER_REQUESTS_EXCEEDED = "budget.user.requests_exceeded"
	BUDGET_USER_TOKENS_EXCEEDED   = "budget.user.tokens_exceeded"
	BUDGET_USER_COST_EXCEEDED     = "budget.user.cost_exceeded"
	BUDGET_UPGRADE_HINT           = "budget.upgrade_hint"
)
