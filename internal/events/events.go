// Package events carries structured observability events out of block tools.
// Tools never log directly about their own lifecycle; they emit events into
// an injected Sink and the host decides where those go.
package events

import (
	"sync"
	"time"

	"inkwell/internal/logging"
)

// Event types emitted by the image block tool.
const (
	TypeUploadStarted   = "upload.started"
	TypeUploadSucceeded = "upload.succeeded"
	TypeUploadFailed    = "upload.failed"
	TypePasteClassified = "paste.classified"
	TypeTuneToggled     = "tune.toggled"
	TypeBlockSaved      = "block.saved"
	TypeDeferFailed     = "defer.failed"
)

// Fields holds free-form event payload.
type Fields map[string]any

// Event is a single structured observation.
type Event struct {
	Type   string    `json:"type"`
	Block  string    `json:"block,omitempty"`
	Fields Fields    `json:"fields,omitempty"`
	Time   time.Time `json:"time"`
}

// New builds a timestamped event.
func New(eventType, block string, fields Fields) Event {
	return Event{Type: eventType, Block: block, Fields: fields, Time: time.Now()}
}

// Sink receives events. Implementations must be safe for concurrent use;
// tools emit from background goroutines.
type Sink interface {
	Emit(Event)
}

type nopSink struct{}

func (nopSink) Emit(Event) {}

// Nop returns a sink that drops everything.
func Nop() Sink {
	return nopSink{}
}

// OrNop returns sink when non-nil, otherwise a no-op sink.
func OrNop(sink Sink) Sink {
	if sink == nil {
		return Nop()
	}
	return sink
}

// Memory retains every emitted event, for tests and debugging surfaces.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Emit implements Sink.
func (m *Memory) Emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of everything emitted so far, in order.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// OfType returns emitted events matching eventType, in order.
func (m *Memory) OfType(eventType string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// Reset discards retained events.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

type fanout struct {
	sinks []Sink
}

// Fanout returns a sink that forwards each event to every non-nil sink in
// order.
func Fanout(sinks ...Sink) Sink {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if f, ok := s.(*fanout); ok {
			kept = append(kept, f.sinks...)
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return Nop()
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return &fanout{sinks: kept}
}

func (f *fanout) Emit(ev Event) {
	for _, s := range f.sinks {
		s.Emit(ev)
	}
}

type loggerSink struct {
	logger logging.Logger
}

// LoggerSink writes events to a logger at debug level.
func LoggerSink(logger logging.Logger) Sink {
	return loggerSink{logger: logging.OrNop(logger)}
}

func (s loggerSink) Emit(ev Event) {
	if ev.Block != "" {
		s.logger.Debug("event %s block=%s fields=%v", ev.Type, ev.Block, ev.Fields)
		return
	}
	s.logger.Debug("event %s fields=%v", ev.Type, ev.Fields)
}
