package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIsolated(t *testing.T) {
	// 两个注册表注册同名指标互不影响
	for i := 0; i < 2; i++ {
		r := NewRegistry("contexor", "core")
		vec := r.NewCounterVec("job.transition", []string{"status"})
		vec.WithLabelValues("failed").Inc()

		families, err := r.Gatherer().Gather()
		require.NoError(t, err)

		var found bool
		for _, f := range families {
			if f.GetName() == "contexor_core_job_transition" {
				found = true
				assert.Len(t, f.GetMetric(), 2)
			}
		}
		assert.True(t, found)
	}
}

func TestExportHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRegistry("contexor", "core")
	r.NewHistogramVec("generation_time", []string{"kind"}, nil).WithLabelValues("draft").Observe(1.5)

	engine := gin.New()
	engine.GET("/metrics", r.ExportHandler())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `contexor_core_generation_time_count{kind="draft"} 1`)
}
