package v1_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/contexor/contexor/app/core"
	"github.com/contexor/contexor/pkg/ai"
	"github.com/contexor/contexor/pkg/testutils"
	"github.com/contexor/contexor/pkg/types"
	"github.com/contexor/contexor/pkg/utils"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []ai.Request
	reply    func(ctx context.Context, req ai.Request) (ai.Result, error)
}

func (p *fakeProvider) Name() string {
	return "fake"
}

func (p *fakeProvider) Complete(ctx context.Context, req ai.Request) (ai.Result, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	return p.reply(ctx, req)
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakeProvider) LastRequest() ai.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

var placeholderRegexp = regexp.MustCompile(`\[[A-Z_]+_[0-9a-f]{8}\]`)

// echoPlaceholders 把 prompt 里的占位符原样带回到输出中
func echoPlaceholders(ctx context.Context, req ai.Request) (ai.Result, error) {
	text := "# Draft\n\nReach us at"
	for _, p := range placeholderRegexp.FindAllString(req.User, -1) {
		text += " " + p
	}
	return ai.Result{
		Text:             text,
		Model:            req.Model,
		PromptTokens:     1000,
		CompletionTokens: 500,
	}, nil
}

func alwaysFail(ctx context.Context, req ai.Request) (ai.Result, error) {
	return ai.Result{}, ai.NewProviderError("fake", errors.New("service unavailable"))
}

type delayedTask struct {
	JobID   string
	Attempt int
	Delay   time.Duration
}

type fakeQueue struct {
	mu      sync.Mutex
	enqueue []string
	delayed []delayedTask
}

func (q *fakeQueue) EnqueueGeneration(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueue = append(q.enqueue, jobID)
	return nil
}

func (q *fakeQueue) EnqueueDelayedGeneration(ctx context.Context, jobID string, attempt int, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, delayedTask{JobID: jobID, Attempt: attempt, Delay: delay})
	return nil
}

func (q *fakeQueue) Delayed() []delayedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]delayedTask(nil), q.delayed...)
}

func newTestCore(t *testing.T, provider ai.Provider, queue core.GenerationQueue) *core.Core {
	t.Helper()
	cfg := core.CoreConfig{
		Database: core.DatabaseConfig{Driver: "sqlite", DSN: testutils.SQLiteConfig(t).DSN},
		Log:      core.Log{Level: "error"},
	}
	opts := []core.Option{core.WithoutAI()}
	if provider != nil {
		opts = append(opts, core.WithAIProvider(provider))
	}
	if queue != nil {
		opts = append(opts, core.WithQueue(queue))
	}
	c := core.MustSetupCore(cfg, opts...)
	t.Cleanup(c.Shutdown)
	return c
}

func createContent(t *testing.T, c *core.Core, workspaceID string) *types.Content {
	t.Helper()
	content := types.Content{
		ID:             utils.GenUniqIDStr(),
		ProjectID:      "p-" + workspaceID,
		WorkspaceID:    workspaceID,
		OrganizationID: "org-1",
		Title:          "Persian coffee culture",
		Status:         types.CONTENT_STATUS_DRAFT,
		CreatedBy:      "u1",
	}
	require.NoError(t, c.Store().ContentStore().Create(context.Background(), content))
	return &content
}

func insertUsage(t *testing.T, c *core.Core, r types.UsageRecord) {
	t.Helper()
	if r.ID == "" {
		r.ID = utils.GenUniqIDStr()
	}
	if r.Model == "" {
		r.Model = "gpt-4o-mini"
	}
	require.NoError(t, c.Store().UsageRecordStore().Create(context.Background(), r))
}
