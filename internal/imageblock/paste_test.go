package imageblock

import (
	"testing"
	"time"

	"inkwell/internal/editor/ports"
	"inkwell/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesImageURL(t *testing.T) {
	matching := []string{
		"https://example.com/pic.png",
		"http://example.com/pic.png",
		"HTTPS://EXAMPLE.COM/PIC.PNG",
		"https://example.com/pic.JPEG",
		"https://example.com/a/b/c.gif",
		"https://example.com/pic.jpg?abc123",
		"https://example.com/pic.webp",
		"https://example.com/pic.svg",
		"https://example.com/pic.tiff",
		"https://example.com/pic.jpeg",
	}
	for _, url := range matching {
		assert.True(t, MatchesImageURL(url), url)
	}

	rejected := []string{
		"",
		"example.com/pic.png",
		"ftp://example.com/pic.png",
		"https://example.com/pic.bmp",
		"https://example.com/pic.png extra",
		"https://example.com/pic.png?QUERY",
		"https://example.com/pic.png#fragment",
		"https://example.com/picpng",
		"just some text",
	}
	for _, url := range rejected {
		assert.False(t, MatchesImageURL(url), url)
	}
}

func TestPasteConfig(t *testing.T) {
	cfg := PasteConfig()

	assert.Equal(t, []string{"img"}, cfg.Tags)
	assert.Equal(t, []string{"image/*"}, cfg.MimeTypes)
	require.Contains(t, cfg.Patterns, "image")
	assert.Equal(t, imageURLPattern.String(), cfg.Patterns["image"])
}

func TestClassifyTag(t *testing.T) {
	c := Classify(ports.PasteEvent{
		Kind: ports.PasteTag,
		HTML: `<img src="https://example.com/pic.png" alt="x">`,
	})
	assert.Equal(t, RouteURL, c.Route)
	assert.Equal(t, "https://example.com/pic.png", c.Source)
}

func TestClassifyTagBlob(t *testing.T) {
	c := Classify(ports.PasteEvent{
		Kind: ports.PasteTag,
		HTML: `<img src="blob:https://host.example/f81d4fae">`,
	})
	assert.Equal(t, RouteBlobFetch, c.Route)
	assert.Equal(t, "blob:https://host.example/f81d4fae", c.Source)
}

func TestClassifyTagWrappedMarkup(t *testing.T) {
	// Hosts sometimes hand over the element inside surrounding markup; the
	// first img wins.
	c := Classify(ports.PasteEvent{
		Kind: ports.PasteTag,
		HTML: `<figure><img src="https://example.com/a.png"><img src="https://example.com/b.png"></figure>`,
	})
	assert.Equal(t, RouteURL, c.Route)
	assert.Equal(t, "https://example.com/a.png", c.Source)
}

func TestClassifyTagWithoutSource(t *testing.T) {
	for _, html := range []string{
		`<img alt="no source">`,
		`<img src="">`,
		`<p>not an image</p>`,
		`not markup at all`,
		``,
	} {
		c := Classify(ports.PasteEvent{Kind: ports.PasteTag, HTML: html})
		assert.Equal(t, RouteNone, c.Route, html)
		assert.NotEmpty(t, c.Reason, html)
	}
}

func TestClassifyPattern(t *testing.T) {
	c := Classify(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/pic.png"})
	assert.Equal(t, RouteURL, c.Route)
	assert.Equal(t, "https://example.com/pic.png", c.Source)

	empty := Classify(ports.PasteEvent{Kind: ports.PastePattern})
	assert.Equal(t, RouteNone, empty.Route)
}

func TestClassifyFile(t *testing.T) {
	c := Classify(ports.PasteEvent{
		Kind: ports.PasteFile,
		File: &ports.FileUpload{Name: "x.png", Data: []byte{1, 2}},
	})
	assert.Equal(t, RouteFileUpload, c.Route)
	assert.Equal(t, "x.png", c.Source)

	missing := Classify(ports.PasteEvent{Kind: ports.PasteFile})
	assert.Equal(t, RouteNone, missing.Route)

	payloadless := Classify(ports.PasteEvent{Kind: ports.PasteFile, File: &ports.FileUpload{Name: "x"}})
	assert.Equal(t, RouteNone, payloadless.Route)
}

func TestClassifyUnknownKind(t *testing.T) {
	c := Classify(ports.PasteEvent{Kind: ports.PasteKind("telepathy")})
	assert.Equal(t, RouteNone, c.Route)
}

func TestOnPasteTagUploadsByURL(t *testing.T) {
	fx := newFixture(t, nil)
	fx.uploader.byURL = func(string) (ports.UploadResponse, error) {
		return okRef("https://cdn.example.com/tagged.png"), nil
	}

	fx.tool.OnPaste(ports.PasteEvent{
		Kind: ports.PasteTag,
		HTML: `<img src="https://example.com/tagged.png">`,
	})

	waitForImage(t, fx, "https://cdn.example.com/tagged.png")
	assert.Equal(t, []string{"https://example.com/tagged.png"}, fx.uploader.urls())

	started := fx.sink.OfType(events.TypeUploadStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "tag", started[0].Fields["source"])
}

func TestOnPasteEmitsClassification(t *testing.T) {
	fx := newFixture(t, nil)
	fx.uploader.byURL = func(string) (ports.UploadResponse, error) {
		return okRef("https://cdn.example.com/p.png"), nil
	}

	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PastePattern, Text: "https://example.com/p.png"})
	waitForImage(t, fx, "https://cdn.example.com/p.png")

	classified := fx.sink.OfType(events.TypePasteClassified)
	require.Len(t, classified, 1)
	assert.Equal(t, "pattern", classified[0].Fields["kind"])
	assert.Equal(t, "url", classified[0].Fields["route"])
}

func TestOnPasteIgnoresUnroutableEvents(t *testing.T) {
	fx := newFixture(t, nil)

	fx.tool.OnPaste(ports.PasteEvent{Kind: ports.PasteTag, HTML: `<img>`})

	// Classification is recorded, nothing is uploaded, nobody is notified.
	classified := fx.sink.OfType(events.TypePasteClassified)
	require.Len(t, classified, 1)
	assert.Equal(t, "none", classified[0].Fields["route"])

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, fx.uploader.urls())
	assert.Empty(t, fx.uploader.files())
	assert.Empty(t, fx.notifier.all())
	assert.Empty(t, fx.sink.OfType(events.TypeUploadStarted))
}
