package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quarrylabs/inquest/internal/config"
	"github.com/quarrylabs/inquest/internal/health"
	"github.com/quarrylabs/inquest/internal/httpapi"
	"github.com/quarrylabs/inquest/internal/llm"
	_ "github.com/quarrylabs/inquest/internal/metrics" // Import for side effects
	"github.com/quarrylabs/inquest/internal/pipeline"
	"github.com/quarrylabs/inquest/internal/registry"
	"github.com/quarrylabs/inquest/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if parsed, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
		level.SetLevel(parsed)
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if stop, err := config.WatchLogLevel(config.Path(), level, logger); err == nil {
		defer stop()
	} else {
		logger.Debug("Config watcher not started", zap.Error(err))
	}

	if err := tracing.Initialize(cfg.Tracing, logger); err != nil {
		logger.Warn("Tracing init failed", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(ctx)
	}()

	// Admin mux: health and metrics, served on a separate port.
	hm := health.NewManager(logger)
	hm.Register(health.NewGenerationChecker(cfg.Generation.BaseURL))
	adminMux := http.NewServeMux()
	health.NewHTTPHandler(hm, logger).RegisterRoutes(adminMux)
	adminMux.Handle("/metrics", promhttp.Handler())
	adminServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.AdminPort),
		Handler:      adminMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("Admin HTTP server listening", zap.Int("port", cfg.Server.AdminPort))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin HTTP server failed", zap.Error(err))
		}
	}()

	// API mux: websocket and REST endpoints.
	gen := llm.NewClient(cfg.Generation, logger)
	pipe := pipeline.New(gen, logger)
	reg := registry.New(logger)
	apiMux := http.NewServeMux()
	httpapi.NewHandler(pipe, reg, logger).RegisterRoutes(apiMux)

	apiServer := &http.Server{
		Addr:        ":" + strconv.Itoa(cfg.Server.Port),
		Handler:     apiMux,
		ReadTimeout: 0, // websocket connections are long-lived
		IdleTimeout: 120 * time.Second,
	}
	go func() {
		logger.Info("API server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("model", cfg.Generation.Model),
		)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Warn("API server shutdown", zap.Error(err))
	}
	if err := adminServer.Shutdown(ctx); err != nil {
		logger.Warn("Admin server shutdown", zap.Error(err))
	}
}
