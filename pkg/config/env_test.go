package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CONTEXOR_AI_TIMEOUT", "45")
	t.Setenv("CONTEXOR_AI_RATE", "2.5")
	t.Setenv("CONTEXOR_DEBUG", "true")
	t.Setenv("CONTEXOR_RETRY_DELAY", "90s")
	t.Setenv("CONTEXOR_BAD_INT", "x")

	assert.Equal(t, "CONTEXOR_AI_MODEL", Key("ai_model"))
	assert.Equal(t, 45*time.Second, Duration("ai_timeout", time.Second))
	assert.Equal(t, 90*time.Second, Duration("retry_delay", time.Second))
	assert.Equal(t, 2.5, Float("ai_rate", 0))
	assert.True(t, Bool("debug", false))
	assert.Equal(t, 7, Int("bad_int", 7))
	assert.Equal(t, "fallback", String("missing", "fallback"))
}
