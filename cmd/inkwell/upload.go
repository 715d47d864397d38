package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"inkwell/internal/editor/ports"
	"inkwell/internal/events"
	"inkwell/internal/imageblock"
	"inkwell/internal/logging"
	"inkwell/internal/uploader"
	"inkwell/pkg/blocks"
)

func newUploadCommand() *cobra.Command {
	var (
		serverURL string
		caption   string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "upload <path|url>",
		Short: "Upload an image through the block coordinator",
		Long: `Feeds a local file, a remote URL or pasted markup through the image
block coordinator, exactly as a paste into the editor would, and prints the
block data a save would persist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				level = logging.LevelDebug
			}
			logging.SetDefault(os.Stderr, level)

			ev, err := pasteEventFor(args[0])
			if err != nil {
				return err
			}

			done := newWaitSink()
			renderer := newCLIRenderer(os.Stdout)

			up := uploader.New(uploader.Config{
				ByFileEndpoint: strings.TrimRight(serverURL, "/") + "/api/upload/file",
				ByURLEndpoint:  strings.TrimRight(serverURL, "/") + "/api/upload/url",
			}, uploader.WithLogger(logging.NewComponentLogger("uploader")))

			tool, err := imageblock.New(imageblock.Params{
				ID:       "cli",
				Data:     blocks.ImageData{Caption: caption},
				Renderer: renderer,
				Uploader: up,
				Events:   done,
				Logger:   logging.NewComponentLogger("imageblock"),
			})
			if err != nil {
				return err
			}
			defer tool.Close()

			tool.OnPaste(ev)

			select {
			case result := <-done.ch:
				if result.Type == events.TypeUploadFailed {
					return fmt.Errorf("upload failed: %v", result.Fields["reason"])
				}
			case <-time.After(timeout):
				return fmt.Errorf("upload timed out after %s", timeout)
			}

			saved, err := json.MarshalIndent(tool.Save(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(bold("Saved block data:"))
			fmt.Println(string(saved))
			return nil
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Backend base URL")
	cmd.Flags().StringVar(&caption, "caption", "", "Caption text for the block")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Upload timeout")
	return cmd
}

// pasteEventFor maps a CLI argument to the paste event a host editor would
// deliver: markup to a tag paste, an existing file to a binary paste and
// everything else to a pattern match.
func pasteEventFor(src string) (ports.PasteEvent, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return ports.PasteEvent{}, fmt.Errorf("empty source")
	}
	if strings.HasPrefix(trimmed, "<") {
		return ports.PasteEvent{Kind: ports.PasteTag, HTML: trimmed}, nil
	}
	if info, err := os.Stat(src); err == nil && !info.IsDir() {
		data, err := os.ReadFile(src)
		if err != nil {
			return ports.PasteEvent{}, fmt.Errorf("read %s: %w", src, err)
		}
		return ports.PasteEvent{Kind: ports.PasteFile, File: &ports.FileUpload{
			Name:      filepath.Base(src),
			MediaType: http.DetectContentType(data),
			Data:      data,
		}}, nil
	}
	return ports.PasteEvent{Kind: ports.PastePattern, Text: trimmed}, nil
}

// waitSink resolves once a terminal upload event arrives.
type waitSink struct {
	ch chan events.Event
}

func newWaitSink() *waitSink {
	return &waitSink{ch: make(chan events.Event, 4)}
}

func (w *waitSink) Emit(ev events.Event) {
	switch ev.Type {
	case events.TypeUploadSucceeded, events.TypeUploadFailed:
		select {
		case w.ch <- ev:
		default:
		}
	}
}

// cliRenderer narrates block state changes on the terminal. Upload callbacks
// arrive from a background goroutine, so the text fields are guarded.
type cliRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	caption string
	link    string
}

func newCLIRenderer(out io.Writer) *cliRenderer {
	return &cliRenderer{out: out}
}

func (r *cliRenderer) Mount(data blocks.ImageData) ports.Node {
	return nil
}

func (r *cliRenderer) ShowPreloader(src string) {
	fmt.Fprintln(r.out, gray("⇡ uploading "+truncate(src, 60)))
}

func (r *cliRenderer) HidePreloader() {
	fmt.Fprintln(r.out, red("✗ upload reverted"))
}

func (r *cliRenderer) FillImage(url string) {
	fmt.Fprintln(r.out, green("✓ image ")+url)
}

func (r *cliRenderer) FillCaption(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caption = text
}

func (r *cliRenderer) FillLink(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.link = text
}

func (r *cliRenderer) Caption() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.caption
}

func (r *cliRenderer) Link() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.link
}

func (r *cliRenderer) ApplyTune(name string, enabled bool) {
	if enabled {
		fmt.Fprintln(r.out, gray("  tune "+name))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

var _ ports.Renderer = (*cliRenderer)(nil)
var _ events.Sink = (*waitSink)(nil)
