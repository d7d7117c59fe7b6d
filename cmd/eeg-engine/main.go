package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-eeg/internal/api"
	"github.com/miradorstack/mirador-eeg/internal/cache"
	"github.com/miradorstack/mirador-eeg/internal/config"
	"github.com/miradorstack/mirador-eeg/internal/edfio"
	"github.com/miradorstack/mirador-eeg/internal/engine"
	"github.com/miradorstack/mirador-eeg/internal/metrics"
	"github.com/miradorstack/mirador-eeg/internal/services"
	"github.com/miradorstack/mirador-eeg/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", slog.Any("error", err))
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", *configPath), slog.Any("error", err))
		os.Exit(1)
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("mirador-eeg exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// serve wires the analysis stack and blocks until ctx is cancelled or the
// gRPC server fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting mirador-eeg",
		slog.String("address", cfg.Server.Address),
		slog.String("data_dir", cfg.Data.Dir),
		slog.String("cache_backend", cacheBackend(cfg.Cache)))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	results, err := cache.FromConfig(cfg.Cache)
	if err != nil {
		logger.Warn("result cache unavailable, analysing without it", slog.Any("error", err))
		results = cache.NoopProvider{}
	}
	defer results.Close()

	pipeline := engine.NewPipeline(logger, edfio.NewFileLoader(), engine.ConfigOptions(cfg)...)
	svc := services.NewAnalysisService(logger, pipeline, results, cfg.Cache.ResultTTL, cfg.Analysis.Timeout)

	server, err := api.NewServer(cfg.Server, logger, svc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopMetrics := startMetricsServer(cfg.Server.MetricsAddress, logger, cancel)
	defer stopMetrics()

	err = server.Run(ctx)
	logger.Info("mirador-eeg stopped", slog.Duration("analysis_p95", svc.LatencyP95()))
	return err
}

// startMetricsServer serves /metrics on addr and returns its shutdown func.
// A listener failure cancels the whole process through onFail.
func startMetricsServer(addr string, logger *slog.Logger, onFail context.CancelFunc) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server exited", slog.Any("error", err))
			onFail()
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}
}

func cacheBackend(cfg config.CacheConfig) string {
	if !cfg.Enabled {
		return "disabled"
	}
	return cfg.Backend
}
