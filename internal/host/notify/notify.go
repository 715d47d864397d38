// Package notify provides host-side notifier implementations: a logger-backed
// notifier for headless runs and a collector for assertions and digests.
package notify

import (
	"sync"

	"inkwell/internal/editor/ports"
	"inkwell/internal/logging"
)

// LoggerNotifier writes notifications to a logger, mapping styles to levels.
type LoggerNotifier struct {
	logger logging.Logger
}

// NewLoggerNotifier wraps logger as a ports.Notifier.
func NewLoggerNotifier(logger logging.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logging.OrNop(logger)}
}

func (n *LoggerNotifier) Notify(style ports.NotificationStyle, message string) {
	switch style {
	case ports.NotifyError:
		n.logger.Error("%s", message)
	case ports.NotifySuccess:
		n.logger.Info("%s", message)
	default:
		n.logger.Info("%s", message)
	}
}

// Notification is one captured Notify call.
type Notification struct {
	Style   ports.NotificationStyle
	Message string
}

// Collector records notifications for later inspection.
type Collector struct {
	mu    sync.Mutex
	items []Notification
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Notify(style ports.NotificationStyle, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, Notification{Style: style, Message: message})
}

// Notifications returns a copy of everything captured so far.
func (c *Collector) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Reset discards captured notifications.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

type fanout []ports.Notifier

// Fanout returns a notifier that forwards to every given notifier. Nil
// entries are skipped; a single survivor is returned directly.
func Fanout(notifiers ...ports.Notifier) ports.Notifier {
	filtered := make(fanout, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			filtered = append(filtered, n)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return filtered
	}
}

func (f fanout) Notify(style ports.NotificationStyle, message string) {
	for _, n := range f {
		n.Notify(style, message)
	}
}
