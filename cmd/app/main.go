package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"sketchlab/internal/artifact"
	"sketchlab/internal/config"
	"sketchlab/internal/db"
	"sketchlab/internal/handler"
	"sketchlab/internal/janitor"
	"sketchlab/internal/logging"
	"sketchlab/internal/metrics"
	"sketchlab/internal/middleware"
	"sketchlab/internal/storage"
)

const (
	requestTimeout  = 2 * time.Minute
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sketchlab: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	trustedProxies, err := middleware.ParseProxyCIDRs(cfg.TrustedProxyCIDRs)
	if err != nil {
		return fmt.Errorf("TRUSTED_PROXY_CIDRS: %w", err)
	}

	for _, dir := range []string{cfg.DataDir, filepath.Dir(cfg.DatabasePath)} {
		if err := storage.EnsureDir(dir); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := storage.New(cfg.DataDir)
	recorder := metrics.New(database, log)
	artifacts := artifact.New(artifact.Config{
		DB:      database,
		Storage: store,
		Metrics: recorder,
		Logger:  log,
	})

	var writeLimit func(http.Handler) http.Handler
	if cfg.WriteRateLimit > 0 {
		limiter := middleware.NewRateLimiter(ctx, middleware.RateLimitConfig{
			RequestsPerMinute: cfg.WriteRateLimit,
			LockoutDuration:   5 * time.Minute,
			TrustedProxies:    trustedProxies,
			Logger:            log,
		})
		writeLimit = limiter.Middleware
	}

	h := handler.New(handler.Config{
		DB:             database,
		Artifacts:      artifacts,
		Metrics:        recorder,
		Logger:         log,
		MaxUploadBytes: cfg.MaxUploadBytes,
		WriteLimit:     writeLimit,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLog(log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	h.RegisterRoutes(r)

	j := janitor.New(janitor.Config{
		DB:          database,
		StoragePath: cfg.DataDir,
		Interval:    cfg.JanitorInterval,
		Logger:      log,
	})
	j.Start(ctx)
	defer j.Stop()

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", cfg.ServerAddr),
			zap.String("data_dir", cfg.DataDir),
			zap.String("database", cfg.DatabasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
