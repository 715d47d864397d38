package observability

import (
	"context"
	"sync"
	"time"

	"inkwell/internal/events"
)

// MetricsSink translates block lifecycle events into metrics, so a tool wired
// with this sink needs no knowledge of the metrics pipeline.
type MetricsSink struct {
	metrics *MetricsCollector

	mu      sync.Mutex
	started map[string]time.Time
}

// NewMetricsSink wraps a collector as an events.Sink.
func NewMetricsSink(metrics *MetricsCollector) *MetricsSink {
	return &MetricsSink{
		metrics: metrics,
		started: make(map[string]time.Time),
	}
}

// Emit implements events.Sink.
func (s *MetricsSink) Emit(ev events.Event) {
	ctx := context.Background()

	switch ev.Type {
	case events.TypeUploadStarted:
		s.metrics.IncActiveUploads(ctx)
		s.mu.Lock()
		s.started[ev.Block] = ev.Time
		s.mu.Unlock()

	case events.TypeUploadSucceeded:
		s.settle(ctx, ev, "success")

	case events.TypeUploadFailed:
		s.settle(ctx, ev, "error")

	case events.TypePasteClassified:
		s.metrics.RecordPaste(ctx, stringField(ev, "kind"), stringField(ev, "route"))

	case events.TypeTuneToggled:
		s.metrics.RecordTuneToggle(ctx, stringField(ev, "tune"))

	case events.TypeBlockSaved:
		valid, _ := ev.Fields["valid"].(bool)
		s.metrics.RecordBlockSaved(ctx, valid)

	case events.TypeDeferFailed:
		s.metrics.RecordDeferredFailure(ctx, stringField(ev, "task"))
	}
}

// settle closes out an in-flight upload. Uploads that finish without a
// recorded start still count, just without a duration sample.
func (s *MetricsSink) settle(ctx context.Context, ev events.Event, status string) {
	s.metrics.DecActiveUploads(ctx)

	var duration time.Duration
	s.mu.Lock()
	if startedAt, ok := s.started[ev.Block]; ok {
		duration = ev.Time.Sub(startedAt)
		delete(s.started, ev.Block)
	}
	s.mu.Unlock()

	s.metrics.RecordUpload(ctx, stringField(ev, "source"), status, duration)
}

func stringField(ev events.Event, key string) string {
	value, _ := ev.Fields[key].(string)
	return value
}

var _ events.Sink = (*MetricsSink)(nil)
