package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/chainlens/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chainlens"

// Metrics holds the collectors fed by app hooks.
type Metrics struct {
	calls          *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	records        *prometheus.CounterVec
	recordDuration *prometheus.HistogramVec
	gatherer       prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// gets a fresh registry, which keeps tests isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Total number of recorded calls",
			},
			[]string{"method", "status"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_duration_seconds",
				Help:      "Duration of recorded calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Total number of completed root invocations",
			},
			[]string{"app_id", "status"},
		),
		recordDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "record_duration_seconds",
				Help:      "Duration of root invocations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"app_id"},
		),
	}
	reg.MustRegister(m.calls, m.callDuration, m.records, m.recordDuration)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// Hooks returns the hooks that feed the collectors.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnCall: func(ctx context.Context, c *domain.CallRecord) {
			method := c.Top().Method.String()
			m.calls.WithLabelValues(method, status(c.Failed())).Inc()
			m.callDuration.WithLabelValues(method).Observe(c.Perf.Duration().Seconds())
		},
		OnRecord: func(ctx context.Context, r *domain.Record) {
			m.records.WithLabelValues(r.AppID, status(r.MainError != "")).Inc()
			m.recordDuration.WithLabelValues(r.AppID).Observe(r.Perf.Duration().Seconds())
		},
	}
}

// Handler serves the registry the metrics were registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func status(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}
