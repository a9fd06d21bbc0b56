package ai_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/contexor/contexor/pkg/ai"
)

type flakyProvider struct {
	failures int
	calls    int
	lastReq  ai.Request
}

func (p *flakyProvider) Name() string { return "flaky" }

func (p *flakyProvider) Complete(ctx context.Context, req ai.Request) (ai.Result, error) {
	p.calls++
	p.lastReq = req
	if p.calls <= p.failures {
		return ai.Result{}, errors.New("connection reset")
	}
	return ai.Result{Text: "ok", Model: req.Model, PromptTokens: 10, CompletionTokens: 5}, nil
}

func TestGuardRetriesConnectionErrors(t *testing.T) {
	p := &flakyProvider{failures: 2}
	g := ai.NewGuard(p, ai.GuardOptions{MaxRetries: 2, RetryDelay: time.Millisecond})

	res, err := g.Complete(context.Background(), ai.Request{User: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, 15, res.TotalTokens())
}

func TestGuardGivesUp(t *testing.T) {
	p := &flakyProvider{failures: 10}
	g := ai.NewGuard(p, ai.GuardOptions{MaxRetries: 1, RetryDelay: time.Millisecond})

	_, err := g.Complete(context.Background(), ai.Request{User: "hello"})
	require.Error(t, err)
	assert.Equal(t, 2, p.calls)
	assert.True(t, ai.IsProviderError(err))

	var pe *ai.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "flaky", pe.Provider)
	assert.Contains(t, pe.Message, "connection reset")
}

func TestGuardAppliesDefaults(t *testing.T) {
	p := &flakyProvider{}
	g := ai.NewGuard(p, ai.GuardOptions{Model: "gpt-4o"})

	_, err := g.Complete(context.Background(), ai.Request{User: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.lastReq.Model)
	assert.Equal(t, float32(ai.DEFAULT_TEMPERATURE), p.lastReq.Temperature)
	assert.Equal(t, float32(ai.DEFAULT_TOP_P), p.lastReq.TopP)
	assert.Equal(t, ai.DEFAULT_MAX_TOKENS, p.lastReq.MaxTokens)
}

func TestBuildDraftPrompt(t *testing.T) {
	prompt := ai.BuildDraftPrompt(ai.PromptVars{
		Topic:                  "[PHONE_ab12cd34] خدمات",
		Keywords:               "سئو",
		AdditionalInstructions: "کوتاه باشد",
	})
	assert.Contains(t, prompt, "[PHONE_ab12cd34] خدمات")
	assert.Contains(t, prompt, ai.DEFAULT_TONE)
	assert.Contains(t, prompt, "500")
	assert.Contains(t, prompt, "کوتاه باشد")
	assert.NotContains(t, prompt, "{topic}")
}

type statusProvider struct {
	err   error
	calls int
}

func (p *statusProvider) Name() string { return "status" }

func (p *statusProvider) Complete(ctx context.Context, req ai.Request) (ai.Result, error) {
	p.calls++
	return ai.Result{}, ai.NewProviderError("status", p.err)
}

func TestGuardSkipsRetryOnClientErrors(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		calls int
	}{
		{"unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "invalid api key"}, 1},
		{"bad request", &openai.RequestError{HTTPStatusCode: http.StatusBadRequest, Err: errors.New("bad request")}, 1},
		{"gemini forbidden", &googleapi.Error{Code: http.StatusForbidden}, 1},
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}, 3},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusBadGateway, Message: "bad gateway"}, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := &statusProvider{err: c.err}
			g := ai.NewGuard(p, ai.GuardOptions{MaxRetries: 2, RetryDelay: time.Millisecond})

			_, err := g.Complete(context.Background(), ai.Request{User: "hello"})
			require.Error(t, err)
			assert.True(t, ai.IsProviderError(err))
			assert.Equal(t, c.calls, p.calls)
		})
	}
}
