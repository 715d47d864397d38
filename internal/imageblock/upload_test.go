package imageblock

import (
	"context"
	"errors"
	"testing"
	"time"

	"inkwell/internal/editor/ports"
	"inkwell/internal/events"
	"inkwell/pkg/blocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okRef(url string, dims ...int) ports.UploadResponse {
	ref := &blocks.FileRef{URL: url}
	if len(dims) == 2 {
		ref.Width = blocks.IntPtr(dims[0])
		ref.Height = blocks.IntPtr(dims[1])
	}
	return ports.UploadResponse{Success: true, File: ref}
}

func waitForImage(t *testing.T, fx *fixture, url string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return fx.tool.Data().File.URL == url
	}, time.Second, 5*time.Millisecond)
}

func waitForFailure(t *testing.T, fx *fixture) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(fx.sink.OfType(events.TypeUploadFailed)) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestUploadByURLSuccess(t *testing.T) {
	fx := newFixture(t, nil)
	fx.uploader.byURL = func(string) (ports.UploadResponse, error) {
		return okRef("https://cdn.example.com/a.png", 640, 480), nil
	}

	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/a.png"})

	waitForImage(t, fx, "https://cdn.example.com/a.png")

	// Preloader keyed by the pasted URL, image swapped to the stored one.
	assert.Contains(t, fx.renderer.preloaderLog(), "https://example.com/a.png")
	assert.Equal(t, "https://cdn.example.com/a.png", fx.renderer.lastImage())

	started := fx.sink.OfType(events.TypeUploadStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "pattern", started[0].Fields["source"])

	succeeded := fx.sink.OfType(events.TypeUploadSucceeded)
	require.Len(t, succeeded, 1)
	assert.Equal(t, 640, succeeded[0].Fields["width"])
}

func TestUploadFailureNotifiesAndReverts(t *testing.T) {
	fx := newFixture(t, nil)
	fx.uploader.byURL = func(string) (ports.UploadResponse, error) {
		return ports.UploadResponse{}, errors.New("backend down")
	}

	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/a.png"})

	waitForFailure(t, fx)

	notes := fx.notifier.all()
	require.Len(t, notes, 1)
	assert.Equal(t, ports.NotifyError, notes[0].style)
	assert.Equal(t, "Couldn’t upload image. Please try another.", notes[0].message)

	assert.Equal(t, 1, fx.renderer.hidden())
	assert.Empty(t, fx.tool.Data().File.URL)

	failed := fx.sink.OfType(events.TypeUploadFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Fields["reason"], "backend down")
}

func TestUploadRejectedResponseFails(t *testing.T) {
	fx := newFixture(t, nil)
	fx.uploader.byURL = func(string) (ports.UploadResponse, error) {
		return ports.UploadResponse{Success: false}, nil
	}

	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/a.png"})

	waitForFailure(t, fx)

	failed := fx.sink.OfType(events.TypeUploadFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Fields["reason"], "incorrect response")
	assert.Len(t, fx.notifier.all(), 1)
}

func TestSuccessWithoutFileDescriptorFails(t *testing.T) {
	fx := newFixture(t, nil)
	fx.uploader.byURL = func(string) (ports.UploadResponse, error) {
		return ports.UploadResponse{Success: true, File: nil}, nil
	}

	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/a.png"})

	waitForFailure(t, fx)
	assert.Empty(t, fx.tool.Data().File.URL)
}

func TestSequentialUploadDimensionFlow(t *testing.T) {
	fx := newFixture(t, nil)

	// First upload reports only a URL: dimensions stay absent.
	fx.uploader.byURL = func(string) (ports.UploadResponse, error) {
		return okRef("https://cdn.example.com/first.png"), nil
	}
	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/1.png"})
	waitForImage(t, fx, "https://cdn.example.com/first.png")

	_, _, ok := fx.tool.Data().File.Dimensions()
	assert.False(t, ok)

	// Second upload reports dimensions: they land.
	fx.uploader.byURL = func(string) (ports.UploadResponse, error) {
		return okRef("https://cdn.example.com/second.png", 100, 50), nil
	}
	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/2.png"})
	waitForImage(t, fx, "https://cdn.example.com/second.png")

	w, h, ok := fx.tool.Data().File.Dimensions()
	require.True(t, ok)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)

	// Third upload omits them again: the known dimensions carry forward.
	fx.uploader.byURL = func(string) (ports.UploadResponse, error) {
		return okRef("https://cdn.example.com/third.png"), nil
	}
	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/3.png"})
	waitForImage(t, fx, "https://cdn.example.com/third.png")

	w, h, ok = fx.tool.Data().File.Dimensions()
	require.True(t, ok)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)
}

func TestConcurrentUploadsLastCompletionWins(t *testing.T) {
	fx := newFixture(t, nil)

	releaseFirst := make(chan struct{})
	releaseSecond := make(chan struct{})
	fx.uploader.byURL = func(url string) (ports.UploadResponse, error) {
		switch url {
		case "https://example.com/first.png":
			<-releaseFirst
			return okRef("https://cdn.example.com/first.png"), nil
		default:
			<-releaseSecond
			return okRef("https://cdn.example.com/second.png"), nil
		}
	}

	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/first.png"})
	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/second.png"})

	close(releaseSecond)
	waitForImage(t, fx, "https://cdn.example.com/second.png")

	// The slow first upload completes later and overwrites: last writer wins.
	close(releaseFirst)
	waitForImage(t, fx, "https://cdn.example.com/first.png")
}

func TestBlobPasteFetchesThenUploadsBytes(t *testing.T) {
	fetched := make(chan string, 1)
	fx := newFixture(t, func(p *Params) {
		p.Fetcher = fetcherFunc(func(src string) ([]byte, string, error) {
			fetched <- src
			return []byte("blob-bytes"), "image/png", nil
		})
	})
	fx.uploader.byFile = func(f ports.FileUpload) (ports.UploadResponse, error) {
		return okRef("https://cdn.example.com/from-blob.png"), nil
	}

	fx.tool.OnPaste(ports.PasteEvent{
		Kind: ports.PasteTag,
		HTML: `<img src="blob:https://host/0b9a">`,
	})

	waitForImage(t, fx, "https://cdn.example.com/from-blob.png")
	assert.Equal(t, "blob:https://host/0b9a", <-fetched)

	files := fx.uploader.files()
	require.Len(t, files, 1)
	assert.Equal(t, []byte("blob-bytes"), files[0].Data)
	assert.Equal(t, "image/png", files[0].MediaType)
	assert.Equal(t, "image.png", files[0].Name)
}

func TestBlobPasteWithoutFetcherFails(t *testing.T) {
	fx := newFixture(t, nil) // no fetcher

	fx.tool.OnPaste(ports.PasteEvent{
		Kind: ports.PasteTag,
		HTML: `<img src="blob:https://host/dead">`,
	})

	waitForFailure(t, fx)
	failed := fx.sink.OfType(events.TypeUploadFailed)
	assert.Contains(t, failed[0].Fields["reason"], "no fetcher")
}

func TestBlobFetchErrorFailsUpload(t *testing.T) {
	fx := newFixture(t, func(p *Params) {
		p.Fetcher = fetcherFunc(func(string) ([]byte, string, error) {
			return nil, "", errors.New("session gone")
		})
	})

	fx.tool.OnPaste(ports.PasteEvent{
		Kind: ports.PasteTag,
		HTML: `<img src="blob:https://host/gone">`,
	})

	waitForFailure(t, fx)
	failed := fx.sink.OfType(events.TypeUploadFailed)
	assert.Contains(t, failed[0].Fields["reason"], "session gone")
	assert.Len(t, fx.notifier.all(), 1)
}

func TestFilePasteUploadsDirectly(t *testing.T) {
	fx := newFixture(t, nil)
	fx.uploader.byFile = func(f ports.FileUpload) (ports.UploadResponse, error) {
		return okRef("https://cdn.example.com/dropped.png", 32, 32), nil
	}

	fx.tool.OnPaste(ports.PasteEvent{
		Kind: ports.PasteFile,
		File: &ports.FileUpload{Name: "drop.png", MediaType: "image/png", Data: []byte("dropped")},
	})

	waitForImage(t, fx, "https://cdn.example.com/dropped.png")

	files := fx.uploader.files()
	require.Len(t, files, 1)
	assert.Equal(t, "drop.png", files[0].Name)

	// Binary pastes preview as inline data URIs.
	pre := fx.renderer.preloaderLog()
	require.Len(t, pre, 1)
	assert.Contains(t, pre[0], "data:image/png;base64,")
}

func TestUploadKeepsDimensionsAcrossReupload(t *testing.T) {
	// Saved data carries dimensions; a fresh upload without them must not
	// drop what the session already knows.
	fx := newFixture(t, func(p *Params) {
		p.Data = blocks.ImageData{File: blocks.FileRef{
			URL:    "https://cdn.example.com/old.png",
			Width:  blocks.IntPtr(800),
			Height: blocks.IntPtr(600),
		}}
	})
	fx.uploader.byURL = func(string) (ports.UploadResponse, error) {
		return okRef("https://cdn.example.com/new.png"), nil
	}

	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/n.png"})
	waitForImage(t, fx, "https://cdn.example.com/new.png")

	w, h, ok := fx.tool.Data().File.Dimensions()
	require.True(t, ok)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

// fetcherFunc adapts a closure to ports.SourceFetcher.
type fetcherFunc func(src string) ([]byte, string, error)

func (f fetcherFunc) Fetch(_ context.Context, src string) ([]byte, string, error) {
	return f(src)
}
