package ports

import "context"

// NotificationStyle selects how the host presents a notification.
type NotificationStyle string

const (
	NotifyInfo    NotificationStyle = "info"
	NotifySuccess NotificationStyle = "success"
	NotifyError   NotificationStyle = "error"
)

// Translator resolves a message to the host locale. Unknown messages come
// back unchanged.
type Translator interface {
	Translate(message string) string
}

// Notifier surfaces user-facing notifications.
type Notifier interface {
	Notify(style NotificationStyle, message string)
}

// BlockSettings exposes per-block metadata owned by the host editor.
type BlockSettings interface {
	// SetStretched records whether the block spans the full editor width
	SetStretched(ctx context.Context, blockID string, stretched bool) error
}

// Host bundles the editor-side services a tool may call. Any field may be
// nil; the helper methods below degrade gracefully so tools never have to
// nil-check individual services.
type Host struct {
	I18n     Translator
	Notifier Notifier
	Blocks   BlockSettings
}

// Translate resolves message through I18n when present.
func (h Host) Translate(message string) string {
	if h.I18n == nil {
		return message
	}
	return h.I18n.Translate(message)
}

// Notify forwards to Notifier when present.
func (h Host) Notify(style NotificationStyle, message string) {
	if h.Notifier != nil {
		h.Notifier.Notify(style, message)
	}
}

// SetStretched forwards to Blocks when present.
func (h Host) SetStretched(ctx context.Context, blockID string, stretched bool) error {
	if h.Blocks == nil {
		return nil
	}
	return h.Blocks.SetStretched(ctx, blockID, stretched)
}
