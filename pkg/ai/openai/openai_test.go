package openai_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexor/contexor/pkg/ai"
	"github.com/contexor/contexor/pkg/ai/openai"
	"github.com/contexor/contexor/pkg/testutils"
)

func newDriver(t *testing.T) *openai.Driver {
	testutils.LoadEnvOrPanic()
	token := os.Getenv("CONTEXOR_TEST_OPENAI_TOKEN")
	if token == "" {
		t.Skip("CONTEXOR_TEST_OPENAI_TOKEN not set")
	}
	return openai.New(token, os.Getenv("CONTEXOR_TEST_OPENAI_ENDPOINT"), "")
}

func Test_Complete(t *testing.T) {
	d := newDriver(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := d.Complete(ctx, ai.Request{
		System:    ai.SYSTEM_PROMPT_FA,
		User:      "یک جمله درباره زبان Go بنویس.",
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Text)
	assert.Equal(t, res.PromptTokens+res.CompletionTokens, res.TotalTokens())
}

func Test_CompleteInvalidToken(t *testing.T) {
	d := openai.New("invalid-token", "http://127.0.0.1:1", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := d.Complete(ctx, ai.Request{User: "hi"})
	require.Error(t, err)
	assert.True(t, ai.IsProviderError(err))
}
