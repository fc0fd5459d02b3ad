package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/janainarocha/testrailviewer/internal/bus"
	"github.com/janainarocha/testrailviewer/internal/config"
	"github.com/janainarocha/testrailviewer/internal/metrics"
	"github.com/janainarocha/testrailviewer/internal/report"
	"github.com/janainarocha/testrailviewer/internal/store"
	"github.com/janainarocha/testrailviewer/internal/testrail"
)

// Server serves the browser/dashboard read API, the live TestRail proxy
// endpoints, and the WebSocket event stream.
type Server struct {
	cache     *store.Cache
	dashboard *store.Dashboard
	remote    *testrail.Client
	reporter  *report.Reporter
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	router    *mux.Router
	wsHub     *WSHub

	// One aggregation job at a time; outcome is discoverable only via the
	// execution log, keyed by job id.
	reportRunning atomic.Bool
	jobMu         sync.Mutex
	lastJobID     string
}

// New assembles the server. remote may be nil when TestRail credentials are
// absent; the live proxy endpoints then answer 503.
func New(cache *store.Cache, dashboard *store.Dashboard, remote *testrail.Client, reporter *report.Reporter, cfg *config.Config, eb *bus.EventBus, logger *slog.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		cache:     cache,
		dashboard: dashboard,
		remote:    remote,
		reporter:  reporter,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		router:    mux.NewRouter(),
		wsHub:     NewWSHub(eb, logger),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router
	if s.metrics != nil {
		r.Use(s.instrument)
	}

	// Browser routes for the local cache
	r.HandleFunc("/api/browser/projects", s.handleBrowserProjects).Methods(http.MethodGet)
	r.HandleFunc("/api/browser/suites/{projectId:[0-9]+}", s.handleBrowserSuites).Methods(http.MethodGet)
	r.HandleFunc("/api/browser/sections/{suiteId:[0-9]+}", s.handleBrowserSections).Methods(http.MethodGet)
	r.HandleFunc("/api/browser/cases/{suiteId:[0-9]+}", s.handleBrowserCases).Methods(http.MethodGet)

	// Dashboard routes
	r.HandleFunc("/api/dashboard/automation-history", s.handleAutomationHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard/epic-history", s.handleEpicHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard/execution-logs", s.handleExecutionLogs).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard/current-automation-stats", s.handleCurrentStats).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard/automation-coverage/{projectId:[0-9]+}", s.handleAutomationCoverage).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard/trigger-monthly-report", s.handleTriggerReport).Methods(http.MethodPost)
	r.HandleFunc("/api/dashboard/jobs/{jobId}", s.handleJobStatus).Methods(http.MethodGet)

	// Live TestRail proxy routes
	r.HandleFunc("/api/case/{id:[0-9]+}", s.handleLiveCase).Methods(http.MethodGet)
	r.HandleFunc("/api/suites/{projectId:[0-9]+}", s.handleLiveSuites).Methods(http.MethodGet)
	r.HandleFunc("/api/cases/{projectId:[0-9]+}/{suiteId:[0-9]+}", s.handleLiveCases).Methods(http.MethodGet)
	r.HandleFunc("/api/reports/{projectId:[0-9]+}", s.handleLiveReports).Methods(http.MethodGet)
	r.HandleFunc("/api/report/run/{reportId:[0-9]+}", s.handleLiveRunReport).Methods(http.MethodGet)
	r.HandleFunc("/api/fixed-reports", s.handleFixedReports).Methods(http.MethodGet)

	// WebSocket event stream
	r.HandleFunc("/ws/events", s.wsHub.HandleWebSocket)

	// Operational endpoints
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Start begins serving HTTP and blocks until the listener fails.
func (s *Server) Start() error {
	go s.wsHub.Run()

	addr := ":" + strconv.Itoa(s.cfg.Port)
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsMiddleware(s.router),
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	return srv.ListenAndServe()
}

// Handler exposes the routed handler stack, mainly for tests.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.router)
}

// instrument counts requests per route template and status.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, fmt.Sprintf("%d", rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// corsMiddleware adds CORS headers for the browser UI.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
