package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexor/contexor/app/core"
	"github.com/contexor/contexor/cmd/service/handler"
	"github.com/contexor/contexor/pkg/testutils"
	"github.com/contexor/contexor/pkg/types"
	"github.com/contexor/contexor/pkg/utils"
)

type memoryQueue struct {
	mu   sync.Mutex
	jobs []string
}

func (q *memoryQueue) EnqueueGeneration(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, jobID)
	return nil
}

func (q *memoryQueue) EnqueueDelayedGeneration(ctx context.Context, jobID string, attempt int, delay time.Duration) error {
	return q.EnqueueGeneration(ctx, jobID)
}

type apiResponse struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

func setupTestServer(t *testing.T) (*core.Core, *gin.Engine, *memoryQueue) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	q := &memoryQueue{}
	app := core.MustSetupCore(core.CoreConfig{
		Database: core.DatabaseConfig{Driver: "sqlite", DSN: testutils.SQLiteConfig(t).DSN},
		Log:      core.Log{Level: "error"},
	}, core.WithoutAI(), core.WithQueue(q))
	t.Cleanup(app.Shutdown)

	setupHttpRouter(&handler.HttpSrv{Core: app, Engine: app.HttpEngine()})
	return app, app.HttpEngine(), q
}

func doRequest(t *testing.T, engine *gin.Engine, method, path, user string, body any) (int, apiResponse) {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var res apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	return w.Code, res
}

func newContent(t *testing.T, app *core.Core, workspaceID string) string {
	t.Helper()
	content := types.Content{
		ID:             utils.GenUniqIDStr(),
		ProjectID:      "p-" + workspaceID,
		WorkspaceID:    workspaceID,
		OrganizationID: "org-1",
		Title:          "Weekly newsletter",
		Status:         types.CONTENT_STATUS_DRAFT,
		CreatedBy:      "u1",
	}
	require.NoError(t, app.Store().ContentStore().Create(context.Background(), content))
	return content.ID
}

func TestHealthz(t *testing.T) {
	_, engine, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}

func TestRequireUser(t *testing.T) {
	_, engine, _ := setupTestServer(t)

	code, res := doRequest(t, engine, http.MethodGet, "/api/v1/usage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, http.StatusUnauthorized, res.Meta.Code)
	assert.Equal(t, "Unauthorized", res.Meta.Message)
}

func TestSubmitAndCancelGeneration(t *testing.T) {
	app, engine, q := setupTestServer(t)
	contentID := newContent(t, app, "ws-1")

	code, res := doRequest(t, engine, http.MethodPost, "/api/v1/contents/"+contentID+"/generations", "u1", handler.SubmitGenerationRequest{
		Kind:  types.JOB_KIND_DRAFT,
		Topic: "Spring launch",
	})
	require.Equal(t, http.StatusOK, code, res.Meta.Message)

	var submitted handler.SubmitGenerationResponse
	require.NoError(t, json.Unmarshal(res.Data, &submitted))
	require.NotEmpty(t, submitted.JobID)
	assert.Equal(t, []string{submitted.JobID}, q.jobs)

	code, res = doRequest(t, engine, http.MethodGet, "/api/v1/jobs/"+submitted.JobID, "u1", nil)
	require.Equal(t, http.StatusOK, code)
	var status handler.GetJobResponse
	require.NoError(t, json.Unmarshal(res.Data, &status))
	assert.Equal(t, types.JOB_STATUS_PENDING, status.Job.Status)

	code, _ = doRequest(t, engine, http.MethodDelete, "/api/v1/jobs/"+submitted.JobID, "u1", nil)
	require.Equal(t, http.StatusOK, code)

	job, err := app.Store().GenerationJobStore().Get(context.Background(), submitted.JobID)
	require.NoError(t, err)
	assert.Equal(t, types.JOB_STATUS_CANCELLED, job.Status)

	// 已取消的任务不能再次取消
	code, _ = doRequest(t, engine, http.MethodDelete, "/api/v1/jobs/"+submitted.JobID, "u1", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestSubmitGenerationOverBudget(t *testing.T) {
	app, engine, q := setupTestServer(t)
	contentID := newContent(t, app, "ws-2")

	require.NoError(t, app.Store().UsageRecordStore().Create(context.Background(), types.UsageRecord{
		ID:            utils.GenUniqIDStr(),
		WorkspaceID:   sql.NullString{String: "ws-2", Valid: true},
		Model:         "gpt-4o-mini",
		EstimatedCost: types.MustParseMoney("100"),
		Success:       true,
	}))

	code, res := doRequest(t, engine, http.MethodPost, "/api/v1/contents/"+contentID+"/generations", "u1", handler.SubmitGenerationRequest{
		Kind:  types.JOB_KIND_DRAFT,
		Topic: "Spring launch",
	})
	assert.Equal(t, http.StatusPaymentRequired, code)

	var data map[string]string
	require.NoError(t, json.Unmarshal(res.Data, &data))
	assert.Contains(t, data["reason"], "$100.00/$100.00")
	assert.Equal(t, "workspace", data["scope"])
	assert.Empty(t, q.jobs)
}

func TestUsageAndBudgetEndpoints(t *testing.T) {
	app, engine, _ := setupTestServer(t)

	for _, cost := range []string{"0.25", "0.50"} {
		require.NoError(t, app.Store().UsageRecordStore().Create(context.Background(), types.UsageRecord{
			ID:               utils.GenUniqIDStr(),
			UserID:           sql.NullString{String: "u9", Valid: true},
			Model:            "gpt-4o-mini",
			PromptTokens:     100,
			CompletionTokens: 50,
			EstimatedCost:    types.MustParseMoney(cost),
			Success:          true,
		}))
	}

	code, res := doRequest(t, engine, http.MethodGet, "/api/v1/usage?user_id=u9&period=monthly", "u9", nil)
	require.Equal(t, http.StatusOK, code)
	var summary types.UsageSummary
	require.NoError(t, json.Unmarshal(res.Data, &summary))
	assert.EqualValues(t, 2, summary.TotalRequests)
	assert.EqualValues(t, 300, summary.TotalTokens)
	assert.Equal(t, "$0.75", summary.TotalCost.USD())

	code, res = doRequest(t, engine, http.MethodGet, "/api/v1/budget/user/u9", "u9", nil)
	require.Equal(t, http.StatusOK, code)
	var decision types.BudgetDecision
	require.NoError(t, json.Unmarshal(res.Data, &decision))
	assert.True(t, decision.Allowed)

	code, _ = doRequest(t, engine, http.MethodGet, "/api/v1/budget/team/u9", "u9", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doRequest(t, engine, http.MethodGet, "/api/v1/usage?project_id=missing", "u9", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
