package core

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/contexor/contexor/pkg/metrics"
)

type Metrics struct {
	registry *metrics.Registry

	generationTime      *prometheus.HistogramVec
	providerError       *prometheus.CounterVec
	budgetDenied        *prometheus.CounterVec
	usageLogFailed      *prometheus.CounterVec
	jobTransition       *prometheus.CounterVec
	semaphoreRejections *prometheus.CounterVec
	persistFailed       *prometheus.CounterVec
}

func NewMetrics(ns, system string) *Metrics {
	r := metrics.NewRegistry(ns, system)

	return &Metrics{
		registry:            r,
		generationTime:      r.NewHistogramVec("generation_time", []string{"kind", "model"}, GENERATION_TIME_BUCKETS),
		providerError:       r.NewCounterVec("provider_error", []string{"provider"}),
		budgetDenied:        r.NewCounterVec("budget_denied", []string{"scope", "ceiling"}),
		usageLogFailed:      r.NewCounterVec("usage_log_failed", []string{"success"}),
		jobTransition:       r.NewCounterVec("job_transition", []string{"status"}),
		semaphoreRejections: r.NewCounterVec("semaphore_rejected", []string{"name"}),
		persistFailed:       r.NewCounterVec("persist_failed", []string{"stage"}),
	}
}

// 模型调用耗时，单位秒
var GENERATION_TIME_BUCKETS = []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}

func (m *Metrics) Registry() *metrics.Registry {
	return m.registry
}

func (m *Metrics) GenerationTimer(kind, model string) *prometheus.Timer {
	return prometheus.NewTimer(m.generationTime.WithLabelValues(kind, model))
}

func (m *Metrics) ProviderErrorInc(provider string) {
	m.providerError.WithLabelValues(provider).Inc()
}

func (m *Metrics) BudgetDeniedInc(scope, ceiling string) {
	m.budgetDenied.WithLabelValues(scope, ceiling).Inc()
}

// UsageLogFailedInc 计量记录写入失败，账本会少记
func (m *Metrics) UsageLogFailedInc(success bool) {
	label := "false"
	if success {
		label = "true"
	}
	m.usageLogFailed.WithLabelValues(label).Inc()
}

func (m *Metrics) JobTransitionInc(status string) {
	m.jobTransition.WithLabelValues(status).Inc()
}

func (m *Metrics) SemaphoreRejectedInc(name string) {
	m.semaphoreRejections.WithLabelValues(name).Inc()
}

// PersistFailedInc 模型结果写库失败，需要人工对账
func (m *Metrics) PersistFailedInc() {
	m.persistFailed.WithLabelValues("generation_result").Inc()
}
