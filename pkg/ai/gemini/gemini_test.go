package gemini_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexor/contexor/pkg/ai"
	"github.com/contexor/contexor/pkg/ai/gemini"
	"github.com/contexor/contexor/pkg/testutils"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
}

func newDriver(t *testing.T) *gemini.Driver {
	testutils.LoadEnvOrPanic()
	token := os.Getenv("CONTEXOR_TEST_GEMINI_TOKEN")
	if token == "" {
		t.Skip("CONTEXOR_TEST_GEMINI_TOKEN not set")
	}
	return gemini.New(token, "")
}

func Test_Complete(t *testing.T) {
	d := newDriver(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := d.Complete(ctx, ai.Request{
		System:    ai.SYSTEM_PROMPT_EN,
		User:      "Write one sentence about the Go gopher.",
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Text)
	assert.Greater(t, res.PromptTokens, 0)
	t.Log(res.Text, res.PromptTokens, res.CompletionTokens)
}
