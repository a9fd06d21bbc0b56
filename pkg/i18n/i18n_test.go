package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudgetMessages(t *testing.T) {
	l := NewLocalizer("en", "fa")

	assert.Equal(t, "Within limits", l.Get("en", BUDGET_WITHIN_LIMITS))
	assert.Equal(t, "Request limit exceeded: 12/10", l.GetWithData("en", BUDGET_REQUESTS_EXCEEDED, map[string]interface{}{
		"Current": 12,
		"Limit":   10,
	}))
	assert.Equal(t, "User monthly budget exceeded: $1.50/$1.00", l.GetWithData("en", BUDGET_USER_COST_EXCEEDED+".monthly", map[string]interface{}{
		"Current": "$1.50",
		"Limit":   "$1.00",
	}))
	assert.Contains(t, l.GetWithData("fa", BUDGET_COST_EXCEEDED+".daily", map[string]interface{}{
		"Current": "$2.00",
		"Limit":   "$1.00",
	}), "$2.00/$1.00")
}

func TestUnknownLanguageFallsBack(t *testing.T) {
	l := Default()
	assert.Equal(t, "Within limits", l.Get("de", BUDGET_WITHIN_LIMITS))
	assert.Equal(t, "missing.id", l.Get("en", "missing.id"))
}
