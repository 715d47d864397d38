// Package blocks defines the persisted data model shared by inkwell block tools.
package blocks

import "encoding/json"

// FileRef points at uploaded image content. Width and Height are optional
// because not every upload backend reports intrinsic dimensions.
type FileRef struct {
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// Empty reports whether the ref carries no usable URL.
func (f FileRef) Empty() bool {
	return f.URL == ""
}

// ImageData is the saved payload of an image block.
type ImageData struct {
	Caption        string  `json:"caption"`
	Link           string  `json:"link"`
	WithBorder     bool    `json:"withBorder"`
	WithBackground bool    `json:"withBackground"`
	Stretched      bool    `json:"stretched"`
	File           FileRef `json:"file"`
}

// imageDataWire mirrors ImageData but keeps the toggle fields untyped so that
// documents saved by older clients, which stored the literal string "true",
// still load. Coercion happens exactly once, here.
type imageDataWire struct {
	Caption        string          `json:"caption"`
	Link           string          `json:"link"`
	WithBorder     json.RawMessage `json:"withBorder"`
	WithBackground json.RawMessage `json:"withBackground"`
	Stretched      json.RawMessage `json:"stretched"`
	File           FileRef         `json:"file"`
}

// UnmarshalJSON decodes saved block data, normalizing heterogeneous toggle
// values through CoerceBool.
func (d *ImageData) UnmarshalJSON(data []byte) error {
	var wire imageDataWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	d.Caption = wire.Caption
	d.Link = wire.Link
	d.WithBorder = coerceRaw(wire.WithBorder)
	d.WithBackground = coerceRaw(wire.WithBackground)
	d.Stretched = coerceRaw(wire.Stretched)
	d.File = wire.File
	return nil
}

func coerceRaw(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return CoerceBool(v)
}

// CoerceBool normalizes a persisted toggle value to a plain bool. Boolean
// true and the literal string "true" map to true, every other value maps to
// false. The function is total: it never fails, whatever the input.
func CoerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}

// MergeFileRef assigns next over prev, carrying forward dimensions that the
// new ref omits. A re-upload that reports only a URL must not drop the
// dimensions learned from an earlier upload in the same session.
func MergeFileRef(prev, next FileRef) FileRef {
	if next.Width == nil && prev.Width != nil {
		next.Width = prev.Width
	}
	if next.Height == nil && prev.Height != nil {
		next.Height = prev.Height
	}
	return next
}

// Validate reports whether saved image data references uploaded content.
// Blocks whose upload never completed have an empty file URL and are dropped
// by the host on save.
func Validate(d ImageData) bool {
	return d.File.URL != ""
}

// Dimensions returns the ref's width and height, with ok reporting whether
// both are known.
func (f FileRef) Dimensions() (width, height int, ok bool) {
	if f.Width == nil || f.Height == nil {
		return 0, 0, false
	}
	return *f.Width, *f.Height, true
}

// IntPtr is a convenience for building FileRef literals.
func IntPtr(v int) *int {
	return &v
}
