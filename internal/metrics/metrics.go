package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1broseidon/tessel/internal/tiling"
)

// Metrics holds the daemon's Prometheus metrics. It implements
// tiling.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	ReflowsTotal    *prometheus.CounterVec
	ReflowDuration  *prometheus.HistogramVec
	ReflowWindows   *prometheus.GaugeVec
	ReflowsCanceled *prometheus.CounterVec
	ReflowsSkipped  *prometheus.CounterVec
	CommandsTotal   *prometheus.CounterVec
	ConfigReloads   *prometheus.CounterVec
}

var _ tiling.Recorder = (*Metrics)(nil)

// New creates the metrics on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ReflowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tessel_reflows_total",
				Help: "Total number of completed reflows",
			},
			[]string{"screen", "layout"},
		),
		ReflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tessel_reflow_duration_seconds",
				Help:    "Time from reflow start until every frame was applied",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"layout"},
		),
		ReflowWindows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tessel_reflow_windows",
				Help: "Windows placed by the last reflow of each screen",
			},
			[]string{"screen"},
		),
		ReflowsCanceled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tessel_reflows_canceled_total",
				Help: "Reflows abandoned because a newer one started",
			},
			[]string{"screen"},
		),
		ReflowsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tessel_reflows_skipped_total",
				Help: "Reflow requests that did not run",
			},
			[]string{"screen", "reason"},
		),
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tessel_commands_total",
				Help: "Commands executed from hotkeys, IPC and MCP",
			},
			[]string{"command", "status"},
		),
		ConfigReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tessel_config_reloads_total",
				Help: "Configuration reload attempts",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) ReflowCompleted(screenID, layoutKey string, windows int, d time.Duration) {
	m.ReflowsTotal.WithLabelValues(screenID, layoutKey).Inc()
	m.ReflowDuration.WithLabelValues(layoutKey).Observe(d.Seconds())
	m.ReflowWindows.WithLabelValues(screenID).Set(float64(windows))
}

func (m *Metrics) ReflowCanceled(screenID string) {
	m.ReflowsCanceled.WithLabelValues(screenID).Inc()
}

func (m *Metrics) ReflowSkipped(screenID, reason string) {
	m.ReflowsSkipped.WithLabelValues(screenID, reason).Inc()
}

func (m *Metrics) CommandExecuted(command string, err error) {
	m.CommandsTotal.WithLabelValues(command, status(err)).Inc()
}

// ConfigReloaded counts a reload attempt.
func (m *Metrics) ConfigReloaded(err error) {
	m.ConfigReloads.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Info("metrics listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
