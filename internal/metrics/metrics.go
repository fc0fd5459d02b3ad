package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the viewer.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP API metrics
	HTTPRequestsTotal *prometheus.CounterVec

	// TestRail client metrics
	RemoteRequestsTotal *prometheus.CounterVec
	RemoteRetriesTotal  prometheus.Counter

	// Sync cycle metrics
	SyncCyclesTotal  *prometheus.CounterVec
	SyncedRowsTotal  *prometheus.GaugeVec
	SyncSkippedNodes prometheus.Counter

	// Monthly report metrics
	ReportRunsTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testrailviewer_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	remoteRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testrailviewer_remote_requests_total",
			Help: "Total number of TestRail API requests by outcome",
		},
		[]string{"status"},
	)

	remoteRetriesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "testrailviewer_remote_retries_total",
			Help: "Total number of TestRail request retries",
		},
	)

	syncCyclesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testrailviewer_sync_cycles_total",
			Help: "Total number of sync cycles by outcome",
		},
		[]string{"status"},
	)

	syncedRowsTotal := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "testrailviewer_synced_rows",
			Help: "Rows upserted by the last sync cycle per entity",
		},
		[]string{"entity"},
	)

	syncSkippedNodes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "testrailviewer_sync_skipped_nodes_total",
			Help: "Total number of hierarchy nodes skipped after exhausted retries",
		},
	)

	reportRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testrailviewer_report_runs_total",
			Help: "Total number of monthly report runs by outcome",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		httpRequestsTotal,
		remoteRequestsTotal,
		remoteRetriesTotal,
		syncCyclesTotal,
		syncedRowsTotal,
		syncSkippedNodes,
		reportRunsTotal,
	)

	return &Metrics{
		registry:            registry,
		HTTPRequestsTotal:   httpRequestsTotal,
		RemoteRequestsTotal: remoteRequestsTotal,
		RemoteRetriesTotal:  remoteRetriesTotal,
		SyncCyclesTotal:     syncCyclesTotal,
		SyncedRowsTotal:     syncedRowsTotal,
		SyncSkippedNodes:    syncSkippedNodes,
		ReportRunsTotal:     reportRunsTotal,
	}
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
