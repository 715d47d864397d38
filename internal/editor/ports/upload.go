package ports

import (
	"context"
	"encoding/base64"

	"inkwell/pkg/blocks"
)

// FileUpload is a binary payload headed for an upload backend.
type FileUpload struct {
	Name      string
	MediaType string
	Data      []byte
}

// PreviewURI inlines the payload as a data URI, usable as a preloader source
// before any upload completes.
func (f FileUpload) PreviewURI() string {
	mediaType := f.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// UploadResponse is the normalized reply of every upload path.
type UploadResponse struct {
	Success bool            `json:"success"`
	File    *blocks.FileRef `json:"file"`
}

// OK reports whether the response describes a completed upload.
func (r UploadResponse) OK() bool {
	return r.Success && r.File != nil
}

// Uploader moves image content to a backend. Implementations enforce their
// own timeouts; callers do not cancel an upload once issued.
type Uploader interface {
	// UploadByFile sends a binary payload
	UploadByFile(ctx context.Context, file FileUpload) (UploadResponse, error)

	// UploadByURL asks the backend to ingest a remote URL
	UploadByURL(ctx context.Context, url string) (UploadResponse, error)

	// UploadSelected prompts for a local file, reports a preview source as
	// soon as one is available, then uploads the selection
	UploadSelected(ctx context.Context, onPreview func(src string)) (UploadResponse, error)
}

// SourceFetcher materializes the bytes behind a source reference such as a
// blob:, data: or http(s) URL.
type SourceFetcher interface {
	Fetch(ctx context.Context, src string) (data []byte, mediaType string, err error)
}
