// Package observability exports block lifecycle metrics through OpenTelemetry
// with a Prometheus exporter.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"inkwell/internal/logging"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port"`
}

// MetricsCollector manages all metrics. The zero value (and a disabled
// config) is a safe no-op, so callers never gate their Record calls.
type MetricsCollector struct {
	meter metric.Meter

	uploadsTotal   metric.Int64Counter
	uploadDuration metric.Float64Histogram
	uploadBytes    metric.Int64Counter
	uploadsActive  metric.Int64UpDownCounter

	pasteClassified metric.Int64Counter
	tuneToggles     metric.Int64Counter
	blocksSaved     metric.Int64Counter
	deferFailures   metric.Int64Counter

	logger logging.Logger

	// Server for Prometheus scraping
	prometheusServer *http.Server
}

// NewMetricsCollector creates a metrics collector. When disabled it returns
// an inert collector.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{logger: logging.Nop()}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter("inkwell")

	uploadsTotal, err := meter.Int64Counter(
		"inkwell.uploads.total",
		metric.WithDescription("Total number of image uploads"),
		metric.WithUnit("{upload}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create uploads counter: %w", err)
	}

	uploadDuration, err := meter.Float64Histogram(
		"inkwell.upload.duration",
		metric.WithDescription("Image upload duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create upload duration histogram: %w", err)
	}

	uploadBytes, err := meter.Int64Counter(
		"inkwell.upload.bytes",
		metric.WithDescription("Total bytes accepted by the upload backend"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create upload bytes counter: %w", err)
	}

	uploadsActive, err := meter.Int64UpDownCounter(
		"inkwell.uploads.active",
		metric.WithDescription("Number of uploads currently in flight"),
		metric.WithUnit("{upload}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create active uploads gauge: %w", err)
	}

	pasteClassified, err := meter.Int64Counter(
		"inkwell.paste.classified.total",
		metric.WithDescription("Paste events by kind and chosen route"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create paste counter: %w", err)
	}

	tuneToggles, err := meter.Int64Counter(
		"inkwell.tunes.toggled.total",
		metric.WithDescription("Tune toggles by tune name"),
		metric.WithUnit("{toggle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tune counter: %w", err)
	}

	blocksSaved, err := meter.Int64Counter(
		"inkwell.blocks.saved.total",
		metric.WithDescription("Block save operations"),
		metric.WithUnit("{save}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create blocks saved counter: %w", err)
	}

	deferFailures, err := meter.Int64Counter(
		"inkwell.deferred.failures.total",
		metric.WithDescription("Deferred host notifications that failed"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create deferred failures counter: %w", err)
	}

	collector := &MetricsCollector{
		meter:           meter,
		uploadsTotal:    uploadsTotal,
		uploadDuration:  uploadDuration,
		uploadBytes:     uploadBytes,
		uploadsActive:   uploadsActive,
		pasteClassified: pasteClassified,
		tuneToggles:     tuneToggles,
		blocksSaved:     blocksSaved,
		deferFailures:   deferFailures,
		logger:          logging.NewComponentLogger("metrics"),
	}

	if config.PrometheusPort > 0 {
		if err := collector.StartPrometheusServer(config.PrometheusPort); err != nil {
			return nil, fmt.Errorf("start prometheus server: %w", err)
		}
	}

	return collector, nil
}

// Handler returns the Prometheus scrape handler for mounting on an existing
// HTTP server.
func (m *MetricsCollector) Handler() http.Handler {
	return promclient.Handler()
}

// StartPrometheusServer starts a standalone Prometheus metrics server.
func (m *MetricsCollector) StartPrometheusServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promclient.Handler())

	m.prometheusServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		m.logger.Info("prometheus metrics listening on :%d", port)
		if err := m.prometheusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("prometheus server: %v", err)
		}
	}()

	return nil
}

// Shutdown stops the standalone metrics server if one was started.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m.prometheusServer != nil {
		return m.prometheusServer.Shutdown(ctx)
	}
	return nil
}

// RecordUpload records one finished upload.
func (m *MetricsCollector) RecordUpload(ctx context.Context, source, status string, duration time.Duration) {
	if m == nil || m.uploadsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("source", source),
		attribute.String("status", status),
	}

	m.uploadsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if duration > 0 {
		m.uploadDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
}

// RecordUploadBytes counts payload bytes accepted by the upload backend.
func (m *MetricsCollector) RecordUploadBytes(ctx context.Context, source string, n int64) {
	if m == nil || m.uploadBytes == nil || n <= 0 {
		return
	}
	m.uploadBytes.Add(ctx, n, metric.WithAttributes(attribute.String("source", source)))
}

// IncActiveUploads marks an upload in flight.
func (m *MetricsCollector) IncActiveUploads(ctx context.Context) {
	if m == nil || m.uploadsActive == nil {
		return
	}
	m.uploadsActive.Add(ctx, 1)
}

// DecActiveUploads marks an upload settled.
func (m *MetricsCollector) DecActiveUploads(ctx context.Context) {
	if m == nil || m.uploadsActive == nil {
		return
	}
	m.uploadsActive.Add(ctx, -1)
}

// RecordPaste records a classified paste event.
func (m *MetricsCollector) RecordPaste(ctx context.Context, kind, route string) {
	if m == nil || m.pasteClassified == nil {
		return
	}
	m.pasteClassified.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("route", route),
	))
}

// RecordTuneToggle records one tune toggle.
func (m *MetricsCollector) RecordTuneToggle(ctx context.Context, tune string) {
	if m == nil || m.tuneToggles == nil {
		return
	}
	m.tuneToggles.Add(ctx, 1, metric.WithAttributes(attribute.String("tune", tune)))
}

// RecordBlockSaved records one block save.
func (m *MetricsCollector) RecordBlockSaved(ctx context.Context, valid bool) {
	if m == nil || m.blocksSaved == nil {
		return
	}
	m.blocksSaved.Add(ctx, 1, metric.WithAttributes(attribute.Bool("valid", valid)))
}

// RecordDeferredFailure records one failed deferred host notification.
func (m *MetricsCollector) RecordDeferredFailure(ctx context.Context, task string) {
	if m == nil || m.deferFailures == nil {
		return
	}
	m.deferFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("task", task)))
}
