package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/epicast/casecast/internal/api"
	"github.com/epicast/casecast/internal/cache"
	"github.com/epicast/casecast/internal/config"
	"github.com/epicast/casecast/internal/engine"
	"github.com/epicast/casecast/internal/metrics"
	"github.com/epicast/casecast/internal/models"
	"github.com/epicast/casecast/internal/report"
	"github.com/epicast/casecast/internal/repo"
	"github.com/epicast/casecast/internal/scheduler"
	"github.com/epicast/casecast/internal/services"
	"github.com/epicast/casecast/internal/utils"
)

func main() {
	var (
		configPath string
		once       bool
		startDate  string
		days       int
		format     string
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&once, "once", false, "Run a single forecast, print the report and exit")
	flag.StringVar(&startDate, "start", "", "Forecast start date (YYYY-MM-DD) for -once")
	flag.IntVar(&days, "days", 0, "Days to predict for -once (defaults to forecast.defaultDays)")
	flag.StringVar(&format, "format", "text", "Report format for -once: text or json")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	cacheProvider := newCache(cfg.Cache, logger)
	defer cacheProvider.Close()

	source := newSource(cfg, cacheProvider, logger)
	anchor, err := cfg.Anchor()
	if err != nil {
		logger.Error("invalid anchor date", slog.Any("error", err))
		os.Exit(1)
	}

	if once {
		if err := runOnce(logger, source, anchor, startDate, days, cfg.Forecast.DefaultDays, format, os.Stdout); err != nil {
			logger.Error("forecast failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	logger.Info("starting casecast", slog.String("address", cfg.Server.Address), slog.String("source", cfg.Source.Kind))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	forecaster := engine.NewForecaster(logger, source, engine.NewPredictor(nil, nil), anchor)
	forecastService := services.NewForecastService(logger, forecaster, cfg.Forecast.DefaultDays)

	server, err := api.NewServer(cfg.Server, forecastService)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched, closeOutput, err := newScheduler(cfg.Schedule, forecaster, logger)
	if err != nil {
		logger.Error("failed to configure schedule", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeOutput()
	if sched != nil {
		sched.Start()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
	defer cancel()
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("casecast stopped")
}

func newCache(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled {
		return cache.NewMemoryProvider()
	}
	provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		TLS:          cfg.TLS,
	})
	if err != nil {
		logger.Warn("valkey cache unavailable, using in-process cache", slog.Any("error", err))
		return cache.NewMemoryProvider()
	}
	return provider
}

func newSource(cfg *config.Config, cacheProvider cache.Provider, logger *slog.Logger) engine.DataSource {
	if cfg.Source.Kind == config.SourceHTTP {
		h := cfg.Source.HTTP
		return repo.NewRemoteSource(h.BaseURL, repo.RemotePaths{
			Vaccinations: h.VaccinationsPath,
			Tests:        h.TestsPath,
			CaseGrowth:   h.CaseGrowthPath,
			Correlations: h.CorrelationsPath,
		}, h.Timeout, cacheProvider, cfg.Cache.SourceTTL, cfg.Cache.CorrelationTTL, logger)
	}
	c := cfg.Source.CSV
	return repo.NewCSVSource(repo.CSVPaths{
		Vaccinations: c.Vaccinations,
		Tests:        c.Tests,
		CaseGrowth:   c.CaseGrowth,
		Correlations: c.Correlations,
	}, cacheProvider, cfg.Cache.CorrelationTTL, logger)
}

func newScheduler(cfg config.ScheduleConfig, forecaster *engine.Forecaster, logger *slog.Logger) (*scheduler.Scheduler, func(), error) {
	noop := func() {}
	if cfg.Cron == "" {
		return nil, noop, nil
	}
	start, err := utils.ParseDate(cfg.StartDate)
	if err != nil {
		return nil, noop, err
	}
	loc, err := time.LoadLocation(cfg.Location)
	if err != nil {
		return nil, noop, err
	}

	var out io.Writer = os.Stdout
	closeOutput := noop
	if cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, noop, fmt.Errorf("open schedule output: %w", err)
		}
		out = f
		closeOutput = func() { _ = f.Close() }
	}

	sched, err := scheduler.New(logger, forecaster, report.NewTextSink(out), scheduler.Job{
		Spec:     cfg.Cron,
		Request:  models.ForecastRequest{StartDate: start, DaysToPredict: cfg.Days},
		Timeout:  5 * time.Minute,
		Location: loc,
	})
	if err != nil {
		closeOutput()
		return nil, noop, err
	}
	return sched, closeOutput, nil
}

func runOnce(logger *slog.Logger, source engine.DataSource, anchor time.Time, startDate string, days, defaultDays int, format string, out io.Writer) error {
	start, err := utils.ParseDate(startDate)
	if err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	if days == 0 {
		days = defaultDays
	}

	var sink engine.Sink
	switch format {
	case "text":
		sink = report.NewTextSink(out)
	case "json":
		sink = report.NewJSONSink(out)
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	forecaster := engine.NewForecaster(logger, source, engine.NewPredictor(nil, nil), anchor, sink)
	_, err = forecaster.Forecast(context.Background(), models.ForecastRequest{StartDate: start, DaysToPredict: days})
	return err
}
