package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"inkwell/internal/config"
	"inkwell/internal/events"
	"inkwell/internal/fetch"
	"inkwell/internal/filestore"
	"inkwell/internal/host/blockstore"
	"inkwell/internal/logging"
	"inkwell/internal/observability"
	"inkwell/internal/server"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("INKWELL_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.SetDefault(os.Stderr, cfg.LogLevel())
	logger := logging.NewComponentLogger("main")
	logger.Info("starting inkwell server on %s", cfg.Addr())

	metrics, err := observability.NewMetricsCollector(observability.MetricsConfig{
		Enabled:        cfg.Metrics.Enabled,
		PrometheusPort: cfg.Metrics.PrometheusPort,
	})
	if err != nil {
		log.Fatalf("init metrics: %v", err)
	}

	store, err := blockstore.Open(cfg.Storage.DatabasePath)
	if err != nil {
		log.Fatalf("open block store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close block store: %v", err)
		}
	}()

	files, err := filestore.New(cfg.Storage.FilesDir)
	if err != nil {
		log.Fatalf("open file store: %v", err)
	}

	fetcher := fetch.New(fetch.Config{
		MaxBytes: cfg.Upload.MaxBytes,
		Timeout:  cfg.Upload.FetchTimeout,
	}, fetch.WithLogger(logging.NewComponentLogger("fetch")))

	sink := events.Fanout(
		events.LoggerSink(logging.NewComponentLogger("events")),
		observability.NewMetricsSink(metrics),
	)

	srv, err := server.New(server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Debug:          cfg.Server.Debug,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AcceptTypes:    cfg.Upload.AcceptTypes,
	}, server.Deps{
		Store:   store,
		Files:   files,
		Fetcher: fetcher,
		Metrics: metrics,
		Sink:    sink,
		Logger:  logging.NewComponentLogger("server"),
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening on %s", srv.Addr())
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return metrics.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("server stopped")
}
