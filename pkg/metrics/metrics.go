package metrics

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry 每个 Core 持有独立的指标注册表，测试中重复初始化不会冲突
type Registry struct {
	namespace string
	system    string
	registry  *prometheus.Registry
}

func NewRegistry(ns, system string) *Registry {
	r := &Registry{
		namespace: FmtFixer(ns),
		system:    FmtFixer(system),
		registry:  prometheus.NewRegistry(),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer 用于测试读取当前指标
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func emptyLabelValues(labels []string) []string {
	return make([]string, len(labels))
}

func (r *Registry) NewCounterVec(name string, labels []string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: r.namespace,
			Subsystem: r.system,
			Name:      FmtFixer(name),
			Help:      fmt.Sprintf("%s count of /%s/%s", name, r.namespace, r.system),
		},
		labels,
	)
	vec.WithLabelValues(emptyLabelValues(labels)...).Add(0)

	r.registry.MustRegister(vec)
	return vec
}

func (r *Registry) NewHistogramVec(name string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: r.namespace,
			Subsystem: r.system,
			Name:      FmtFixer(name),
			Help:      fmt.Sprintf("%s duration of /%s/%s", name, r.namespace, r.system),
			Buckets:   buckets,
		},
		labels,
	)

	r.registry.MustRegister(vec)
	return vec
}

func (r *Registry) ExportHandler() gin.HandlerFunc {
	h := promhttp.InstrumentMetricHandler(
		r.registry, promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}),
	)
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func FmtFixer(in string) string {
	return strings.Replace(strings.Replace(in, ".", "_", -1), "-", "_", -1)
}
