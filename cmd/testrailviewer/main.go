package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/janainarocha/testrailviewer/internal/bus"
	"github.com/janainarocha/testrailviewer/internal/config"
	"github.com/janainarocha/testrailviewer/internal/jira"
	"github.com/janainarocha/testrailviewer/internal/metrics"
	"github.com/janainarocha/testrailviewer/internal/mirror"
	"github.com/janainarocha/testrailviewer/internal/report"
	"github.com/janainarocha/testrailviewer/internal/server"
	"github.com/janainarocha/testrailviewer/internal/store"
	"github.com/janainarocha/testrailviewer/internal/testrail"
)

func main() {
	app := &cli.App{
		Name:  "testrailviewer",
		Usage: "TestRail mirror, monthly automation reports, and dashboard API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to YAML config file (env vars override)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the browser/dashboard API",
				Action: runServe,
			},
			{
				Name:   "sync",
				Usage:  "run one full sync cycle against TestRail",
				Action: runSync,
			},
			{
				Name:   "report",
				Usage:  "run the monthly aggregation once",
				Action: runReport,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String("config"))
}

// signalContext cancels on SIGINT/SIGTERM so in-flight remote calls stop and
// the sync transaction rolls back cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe(c *cli.Context) error {
	logger := newLogger()
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	cache, err := store.OpenCache(cfg.CacheDBPath)
	if err != nil {
		return fmt.Errorf("open cache db: %w", err)
	}
	defer cache.Close()

	dashboard, err := store.OpenDashboard(cfg.DashboardDBPath)
	if err != nil {
		return fmt.Errorf("open dashboard db: %w", err)
	}
	defer dashboard.Close()

	m := metrics.New()
	eb := bus.New()

	// The live proxy works only when TestRail credentials are present; the
	// cache-backed endpoints serve regardless.
	var remote *testrail.Client
	if err := cfg.ValidateTestRail(); err != nil {
		logger.Warn("live proxy disabled", "error", err)
	} else {
		remote, err = testrail.New(cfg.TestRailURL, cfg.TestRailUser, cfg.TestRailKey,
			logger.With("component", "testrail"), testrail.WithMetrics(m))
		if err != nil {
			return err
		}
	}

	reporter := buildReporter(cfg, cache, dashboard, eb, logger, m)

	srv := server.New(cache, dashboard, remote, reporter, cfg, eb, logger, m)
	return srv.Start()
}

func runSync(c *cli.Context) error {
	logger := newLogger()
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ValidateTestRail(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	cache, err := store.OpenCache(cfg.CacheDBPath)
	if err != nil {
		return fmt.Errorf("open cache db: %w", err)
	}
	defer cache.Close()

	dashboard, err := store.OpenDashboard(cfg.DashboardDBPath)
	if err != nil {
		return fmt.Errorf("open dashboard db: %w", err)
	}
	defer dashboard.Close()

	m := metrics.New()
	remote, err := testrail.New(cfg.TestRailURL, cfg.TestRailUser, cfg.TestRailKey,
		logger.With("component", "testrail"),
		testrail.WithMetrics(m),
		testrail.WithRateLimit(cfg.SyncRateRPS))
	if err != nil {
		return err
	}

	engine := mirror.New(remote, cache, dashboard, nil, logger.With("component", "sync"), m, cfg.SyncPageSize)
	summary, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync cycle failed: %w", err)
	}
	logger.Info("sync finished",
		"projects", summary.Projects, "suites", summary.Suites,
		"sections", summary.Sections, "cases", summary.Cases,
		"skipped", summary.Skipped)
	return nil
}

func runReport(c *cli.Context) error {
	logger := newLogger()
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	cache, err := store.OpenCache(cfg.CacheDBPath)
	if err != nil {
		return fmt.Errorf("open cache db: %w", err)
	}
	defer cache.Close()

	dashboard, err := store.OpenDashboard(cfg.DashboardDBPath)
	if err != nil {
		return fmt.Errorf("open dashboard db: %w", err)
	}
	defer dashboard.Close()

	reporter := buildReporter(cfg, cache, dashboard, nil, logger, nil)
	result, err := reporter.Run(ctx, "")
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	return nil
}

func buildReporter(cfg *config.Config, cache *store.Cache, dashboard *store.Dashboard, eb *bus.EventBus, logger *slog.Logger, m *metrics.Metrics) *report.Reporter {
	var epicSrc report.EpicSource
	if jc, err := jira.New(cfg.JiraURL, cfg.JiraEmail, cfg.JiraAPIToken); err == nil {
		epicSrc = jc
	}
	return report.New(
		cache, epicSrc, dashboard,
		cfg.ValidateReport,
		int64(cfg.DashboardProjectID), cfg.JiraEpicKey,
		eb, logger.With("component", "report"), m,
	)
}
