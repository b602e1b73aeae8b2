// Package observability — metrics.go
//
// Prometheus metrics for the daemon.
//
// Endpoint: GET /metrics, served by ServeMetrics on the address its caller
// passes (the daemon uses a dedicated loopback address).
// Format: Prometheus text exposition format (OpenMetrics compatible).
//
// Metric naming convention: reactor_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global registry) to avoid collisions with other instrumented
// libraries in the same process.

package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for the daemon.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Ingester ────────────────────────────────────────────────────────────

	// EventLinesProcessedTotal counts event lines successfully applied to
	// the model. Labels: object_type.
	EventLinesProcessedTotal *prometheus.CounterVec

	// EventLinesDroppedTotal counts malformed or rejected event lines.
	// Labels: reason (event_malformed, unknown_entity).
	EventLinesDroppedTotal *prometheus.CounterVec

	// EventSourceRespawnsTotal counts event-source child process respawns.
	EventSourceRespawnsTotal prometheus.Counter

	// CounterResetsTotal counts statistics-reset heuristic activations.
	// Labels: counter (device_read_bytes, device_written_bytes, ...).
	CounterResetsTotal *prometheus.CounterVec

	// ─── Change-derivation engine ────────────────────────────────────────────

	// PluginUpdatesEmittedTotal counts PluginUpdate records emitted.
	// Labels: dimension (resource_role, device, peer_device, connection).
	PluginUpdatesEmittedTotal *prometheus.CounterVec

	// ─── Plugin host ─────────────────────────────────────────────────────────

	// PluginsRunning is the current count of running plugin workers.
	// Labels: kind.
	PluginsRunning *prometheus.GaugeVec

	// PluginRestartsTotal counts plugin restarts driven by a config reload.
	// Labels: kind.
	PluginRestartsTotal *prometheus.CounterVec

	// PluginCrashesTotal counts plugin workers that exited unexpectedly.
	// Labels: kind.
	PluginCrashesTotal *prometheus.CounterVec

	// ─── Promoter ─────────────────────────────────────────────────────────────

	// PromoterState is a 0/1 indicator gauge, one series per (resource, state).
	PromoterState *prometheus.GaugeVec

	// PromotionsTotal counts successful promotions. Labels: resource.
	PromotionsTotal *prometheus.CounterVec

	// DemotionFailuresTotal counts failed demotions. Labels: resource.
	DemotionFailuresTotal *prometheus.CounterVec

	// ─── Service manager ──────────────────────────────────────────────────────

	// ServiceManagerCallLatency records drop-in write + reload latency.
	ServiceManagerCallLatency prometheus.Histogram

	// ServiceManagerFailuresTotal counts failed service-manager operations.
	ServiceManagerFailuresTotal prometheus.Counter

	startTime time.Time
}

// NewMetrics creates and registers all daemon Prometheus metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		EventLinesProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactor",
			Subsystem: "ingest",
			Name:      "event_lines_processed_total",
			Help:      "Total event lines successfully applied to the model, by object type.",
		}, []string{"object_type"}),

		EventLinesDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactor",
			Subsystem: "ingest",
			Name:      "event_lines_dropped_total",
			Help:      "Total event lines dropped, by reason.",
		}, []string{"reason"}),

		EventSourceRespawnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor",
			Subsystem: "ingest",
			Name:      "event_source_respawns_total",
			Help:      "Total respawns of the event-source child process.",
		}),

		CounterResetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactor",
			Subsystem: "ingest",
			Name:      "counter_resets_total",
			Help:      "Total statistics-reset heuristic activations, by counter family.",
		}, []string{"counter"}),

		PluginUpdatesEmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactor",
			Subsystem: "diff",
			Name:      "updates_emitted_total",
			Help:      "Total PluginUpdate records emitted, by dimension.",
		}, []string{"dimension"}),

		PluginsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "reactor",
			Subsystem: "pluginhost",
			Name:      "plugins_running",
			Help:      "Current count of running plugin workers, by kind.",
		}, []string{"kind"}),

		PluginRestartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactor",
			Subsystem: "pluginhost",
			Name:      "plugin_restarts_total",
			Help:      "Total plugin restarts driven by a configuration reload, by kind.",
		}, []string{"kind"}),

		PluginCrashesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactor",
			Subsystem: "pluginhost",
			Name:      "plugin_crashes_total",
			Help:      "Total plugin workers that exited unexpectedly, by kind.",
		}, []string{"kind"}),

		PromoterState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "reactor",
			Subsystem: "promoter",
			Name:      "state",
			Help:      "1 for the current state of a resource's promoter state machine, 0 otherwise.",
		}, []string{"resource", "state"}),

		PromotionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactor",
			Subsystem: "promoter",
			Name:      "promotions_total",
			Help:      "Total successful promotions, by resource.",
		}, []string{"resource"}),

		DemotionFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactor",
			Subsystem: "promoter",
			Name:      "demotion_failures_total",
			Help:      "Total failed demotions, by resource.",
		}, []string{"resource"}),

		ServiceManagerCallLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reactor",
			Subsystem: "svcmgr",
			Name:      "call_latency_seconds",
			Help:      "Latency of service-manager drop-in writes and reload calls.",
			Buckets:   prometheus.DefBuckets,
		}),

		ServiceManagerFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor",
			Subsystem: "svcmgr",
			Name:      "failures_total",
			Help:      "Total failed service-manager operations.",
		}),
	}

	reg.MustRegister(
		m.EventLinesProcessedTotal,
		m.EventLinesDroppedTotal,
		m.EventSourceRespawnsTotal,
		m.CounterResetsTotal,
		m.PluginUpdatesEmittedTotal,
		m.PluginsRunning,
		m.PluginRestartsTotal,
		m.PluginCrashesTotal,
		m.PromoterState,
		m.PromotionsTotal,
		m.DemotionFailuresTotal,
		m.ServiceManagerCallLatency,
		m.ServiceManagerFailuresTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on addr. Blocks
// until ctx is canceled or the server fails.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}
