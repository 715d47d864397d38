package imageblock

import (
	"context"
	"fmt"

	"inkwell/internal/async"
	"inkwell/internal/editor/ports"
	"inkwell/internal/events"
	"inkwell/pkg/blocks"
)

// Upload entry paths, recorded on lifecycle events.
const (
	sourceSelect  = "select"
	sourcePattern = "pattern"
	sourceTag     = "tag"
	sourceBlob    = "blob"
	sourceFile    = "file"
)

// selectAndUpload opens file selection through the uploader and runs the
// chosen file through the shared completion path. The preloader appears as
// soon as the uploader has a local preview.
func (t *Tool) selectAndUpload() {
	t.emit(events.TypeUploadStarted, events.Fields{"source": sourceSelect})
	async.Go(t.logger, "imageblock.upload.select", func() {
		resp, err := t.uploader.UploadSelected(context.Background(), func(src string) {
			t.renderer.ShowPreloader(src)
		})
		t.completeUpload(sourceSelect, resp, err)
	})
}

// uploadURL sends a remote URL to the backend. The URL itself doubles as the
// preview source.
func (t *Tool) uploadURL(source, url string) {
	t.renderer.ShowPreloader(url)
	t.emit(events.TypeUploadStarted, events.Fields{"source": source, "src": url})
	async.Go(t.logger, "imageblock.upload.url", func() {
		resp, err := t.uploader.UploadByURL(context.Background(), url)
		t.completeUpload(source, resp, err)
	})
}

// uploadFile sends a binary payload to the backend, previewing it inline as
// a data URI.
func (t *Tool) uploadFile(source string, file ports.FileUpload) {
	t.renderer.ShowPreloader(file.PreviewURI())
	t.emit(events.TypeUploadStarted, events.Fields{"source": source, "name": file.Name})
	async.Go(t.logger, "imageblock.upload.file", func() {
		resp, err := t.uploader.UploadByFile(context.Background(), file)
		t.completeUpload(source, resp, err)
	})
}

// uploadBlob materializes a session-local blob source and re-enters the
// binary upload path. Blob URLs mean nothing to the backend, so the bytes
// must travel instead.
func (t *Tool) uploadBlob(src string) {
	t.renderer.ShowPreloader(src)
	t.emit(events.TypeUploadStarted, events.Fields{"source": sourceBlob, "src": src})
	async.Go(t.logger, "imageblock.upload.blob", func() {
		if t.fetcher == nil {
			t.failUpload(sourceBlob, "no fetcher configured for blob sources")
			return
		}
		data, mediaType, err := t.fetcher.Fetch(context.Background(), src)
		if err != nil {
			t.failUpload(sourceBlob, fmt.Sprintf("fetching pasted image: %v", err))
			return
		}
		file := ports.FileUpload{
			Name:      "image" + extensionByType(mediaType),
			MediaType: mediaType,
			Data:      data,
		}
		resp, err := t.uploader.UploadByFile(context.Background(), file)
		t.completeUpload(sourceBlob, resp, err)
	})
}

// completeUpload is the single convergence point of every upload path.
func (t *Tool) completeUpload(source string, resp ports.UploadResponse, err error) {
	if err != nil {
		t.failUpload(source, err.Error())
		return
	}
	if !resp.OK() {
		t.failUpload(source, fmt.Sprintf("incorrect response: success=%t, file=%t", resp.Success, resp.File != nil))
		return
	}
	t.applyUploaded(source, *resp.File)
}

// applyUploaded commits a successful upload: the new ref replaces the old
// one, keeping previously known dimensions when the backend omits them.
func (t *Tool) applyUploaded(source string, ref blocks.FileRef) {
	merged := t.assignImage(ref)

	fields := events.Fields{"source": source, "url": merged.URL}
	if w, h, ok := merged.Dimensions(); ok {
		fields["width"] = w
		fields["height"] = h
	}
	t.emit(events.TypeUploadSucceeded, fields)
	t.logger.Debug("image uploaded via %s: %s", source, merged.URL)
}

// failUpload reports an upload failure to the log, the user and the event
// sink, then reverts the surface to its empty state.
func (t *Tool) failUpload(source, reason string) {
	t.logger.Error("image upload failed (%s): %s", source, reason)
	t.host.Notify(ports.NotifyError, t.host.Translate("Couldn’t upload image. Please try another."))
	t.renderer.HidePreloader()
	t.emit(events.TypeUploadFailed, events.Fields{"source": source, "reason": reason})
}

// extensionByType guesses a filename extension for common image types.
func extensionByType(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "image/tiff":
		return ".tiff"
	default:
		return ""
	}
}
