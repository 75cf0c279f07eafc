// Package metrics holds the Prometheus collectors of the auth service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	AuthTotal    *prometheus.CounterVec
	AuthDuration *prometheus.HistogramVec
	SweptTotal   *prometheus.CounterVec
}

// New registers the service collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tictactoe_auth_operations_total",
				Help: "Total number of auth operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		AuthDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tictactoe_auth_operation_duration_seconds",
				Help:    "Duration of auth operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		SweptTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tictactoe_auth_swept_records_total",
				Help: "Total number of expired token records removed by table",
			},
			[]string{"table"},
		),
	}

	reg.MustRegister(m.AuthTotal, m.AuthDuration, m.SweptTotal)
	return m
}

// NewRegistry returns a private registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveAuth is safe on a nil receiver.
func (m *Metrics) ObserveAuth(operation, result string, started time.Time) {
	if m == nil {
		return
	}
	m.AuthTotal.WithLabelValues(operation, result).Inc()
	m.AuthDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveSweep(table string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SweptTotal.WithLabelValues(table).Add(float64(n))
}
