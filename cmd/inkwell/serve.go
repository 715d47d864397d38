package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
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

func newServeCommand() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development backend",
		Long:  "Starts the upload backend with block persistence, file storage and a websocket event feed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPathFromFlags(cmd))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Server.Debug = true
				cfg.Log.Level = "debug"
			}

			logging.SetDefault(os.Stderr, cfg.LogLevel())
			return runServer(cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "Bind host")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Bind port")
	return cmd
}

func runServer(cfg config.Config) error {
	logger := logging.NewComponentLogger("serve")

	metrics, err := observability.NewMetricsCollector(observability.MetricsConfig{
		Enabled:        cfg.Metrics.Enabled,
		PrometheusPort: cfg.Metrics.PrometheusPort,
	})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	store, err := blockstore.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("open block store: %w", err)
	}
	defer func() { _ = store.Close() }()

	files, err := filestore.New(cfg.Storage.FilesDir)
	if err != nil {
		return fmt.Errorf("open file store: %w", err)
	}

	fetcher := fetch.New(fetch.Config{
		MaxBytes: cfg.Upload.MaxBytes,
		Timeout:  cfg.Upload.FetchTimeout,
	}, fetch.WithLogger(logging.NewComponentLogger("fetch")))

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
		Sink: events.Fanout(
			events.LoggerSink(logging.NewComponentLogger("events")),
			observability.NewMetricsSink(metrics),
		),
		Logger: logging.NewComponentLogger("server"),
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	fmt.Printf("%s listening on %s\n", green("▶ inkwell"), bold("http://"+srv.Addr()))
	fmt.Printf("%s\n", gray("  uploads:  POST /api/upload/file, /api/upload/url"))
	fmt.Printf("%s\n", gray("  blocks:   /api/blocks"))
	fmt.Printf("%s\n", gray("  events:   ws://"+srv.Addr()+"/api/events"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return metrics.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Println(gray("stopped"))
	return nil
}
