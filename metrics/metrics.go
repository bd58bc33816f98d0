// Package metrics exposes Prometheus instrumentation for a benchmark run.
// The harness is a short-lived process, so the registry is served on an
// optional listener for the duration of the run rather than pushed.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the run-scoped collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	trialsTotal   *prometheus.CounterVec
	opsTotal      *prometheus.CounterVec
	opErrorsTotal *prometheus.CounterVec
	restoresTotal prometheus.Counter
	trialSeconds  *prometheus.HistogramVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		trialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphoor_trials_total",
			Help: "Batch-size trials executed, by task type.",
		}, []string{"task_type"}),
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphoor_ops_total",
			Help: "Valid operations executed, by task type.",
		}, []string{"task_type"}),
		opErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphoor_op_errors_total",
			Help: "Operation-level errors absorbed into trial counters.",
		}, []string{"task_type"}),
		restoresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphoor_restores_total",
			Help: "Snapshot restores performed.",
		}),
		trialSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graphoor_trial_duration_seconds",
			Help:    "Wall-clock duration of one batch-size trial.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"task_type"}),
	}

	reg.MustRegister(
		m.trialsTotal, m.opsTotal, m.opErrorsTotal,
		m.restoresTotal, m.trialSeconds,
	)

	return m
}

// ObserveTrial records one completed trial.
func (m *Metrics) ObserveTrial(taskType string, ops, errs int, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.trialsTotal.WithLabelValues(taskType).Inc()
	m.opsTotal.WithLabelValues(taskType).Add(float64(ops))
	m.opErrorsTotal.WithLabelValues(taskType).Add(float64(errs))
	m.trialSeconds.WithLabelValues(taskType).Observe(elapsed.Seconds())
}

// IncRestore records one snapshot restore.
func (m *Metrics) IncRestore() {
	if m == nil {
		return
	}

	m.restoresTotal.Inc()
}

// Serve exposes /metrics on addr until ctx is canceled. Listener errors are
// logged and never affect the run.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) {
	if m == nil || addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		m.registry, promhttp.HandlerOpts{},
	))

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), time.Second,
		)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics listener up", slog.String("addr", addr))

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Warn("metrics listener failed",
				slog.String("error", err.Error()),
			)
		}
	}()
}
