package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/editor/ports"
	"inkwell/internal/events"
)

func TestPasteEventForMarkup(t *testing.T) {
	ev, err := pasteEventFor(`<img src="https://cdn.example.com/a.png">`)
	require.NoError(t, err)
	assert.Equal(t, ports.PasteTag, ev.Kind)
	assert.Contains(t, ev.HTML, "img")
}

func TestPasteEventForLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pic.png")
	payload := []byte("\x89PNG\r\n\x1a\nrest")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	ev, err := pasteEventFor(path)
	require.NoError(t, err)
	require.Equal(t, ports.PasteFile, ev.Kind)
	require.NotNil(t, ev.File)
	assert.Equal(t, "pic.png", ev.File.Name)
	assert.Equal(t, payload, ev.File.Data)
	assert.Equal(t, "image/png", ev.File.MediaType)
}

func TestPasteEventForURLFallsBackToPattern(t *testing.T) {
	ev, err := pasteEventFor("https://cdn.example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, ports.PastePattern, ev.Kind)
	assert.Equal(t, "https://cdn.example.com/a.png", ev.Text)
}

func TestPasteEventForEmptySource(t *testing.T) {
	_, err := pasteEventFor("   ")
	assert.Error(t, err)
}

func TestWaitSinkPassesTerminalEventsOnly(t *testing.T) {
	sink := newWaitSink()

	sink.Emit(events.New(events.TypeUploadStarted, "b", nil))
	sink.Emit(events.New(events.TypePasteClassified, "b", nil))
	select {
	case ev := <-sink.ch:
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}

	sink.Emit(events.New(events.TypeUploadSucceeded, "b", nil))
	select {
	case ev := <-sink.ch:
		assert.Equal(t, events.TypeUploadSucceeded, ev.Type)
	default:
		t.Fatal("expected a terminal event")
	}
}

func TestCLIRendererTracksText(t *testing.T) {
	var buf bytes.Buffer
	r := newCLIRenderer(&buf)

	r.FillCaption("hello")
	r.FillLink("https://example.com")
	r.FillImage("https://cdn.example.com/a.png")

	assert.Equal(t, "hello", r.Caption())
	assert.Equal(t, "https://example.com", r.Link())
	assert.Contains(t, buf.String(), "https://cdn.example.com/a.png")
}

func Test_truncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := truncate("0123456789abcdef", 10)
	assert.Contains(t, long, "0123456789")
	assert.Less(t, len(long), 16+4)
}
