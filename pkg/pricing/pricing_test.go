package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCostGPT4oMini(t *testing.T) {
	assert.True(t, Cost("gpt-4o-mini", 1_000_000, 0).Equal(decimal.RequireFromString("0.150")))
	assert.True(t, Cost("gpt-4o-mini", 0, 1_000_000).Equal(decimal.RequireFromString("0.600")))
	assert.True(t, Cost("gpt-4o-mini", 1_000_000, 1_000_000).Equal(decimal.RequireFromString("0.75")))
}

func TestCostSmallCounts(t *testing.T) {
	// 1200 * 5 / 1e6 + 800 * 15 / 1e6 = 0.006 + 0.012
	assert.Equal(t, "0.018", Cost("gpt-4o", 1200, 800).String())
	assert.Equal(t, int64(18000), CostMoney("gpt-4o", 1200, 800).Micros())
}

func TestCostUnknownModel(t *testing.T) {
	assert.True(t, Cost("my-local-llama", 123456, 654321).IsZero())
	assert.True(t, Cost("", 0, 0).IsZero())
	assert.False(t, Known("my-local-llama"))
	assert.True(t, Known("gpt-4"))
}

func TestEstimatePromptTokens(t *testing.T) {
	n := EstimatePromptTokens("gpt-4o-mini", "you are a writer", "write about go")
	assert.Greater(t, n, 0)
}
