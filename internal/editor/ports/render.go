// Package ports defines the contracts between block tools and the host
// editor. Tools depend only on these interfaces; concrete renderers, upload
// transports and host adapters live elsewhere.
package ports

import "inkwell/pkg/blocks"

// Node is an opaque handle to whatever surface a Renderer mounts. The tool
// hands it back to the host without inspecting it.
type Node = any

// Renderer owns the visual surface of an image block. The tool drives it
// through state changes and reads live text back at save time.
type Renderer interface {
	// Mount builds the block's root surface from initial data and returns it
	Mount(data blocks.ImageData) Node

	// ShowPreloader displays the uploading state keyed by a preview source
	ShowPreloader(src string)

	// HidePreloader reverts the surface to its empty state after a failure
	HidePreloader()

	// FillImage swaps the rendered image to url
	FillImage(url string)

	// FillCaption replaces the caption field text
	FillCaption(text string)

	// FillLink replaces the link field text
	FillLink(text string)

	// Caption returns the caption field's current text
	Caption() string

	// Link returns the link field's current text
	Link() string

	// ApplyTune reflects a tune's on/off state on the surface
	ApplyTune(name string, enabled bool)
}
