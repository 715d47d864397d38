// Package uploader is the default HTTP transport behind ports.Uploader. It
// speaks the conventional backend protocol: multipart form posts for binary
// payloads and JSON posts for URL ingestion, both answered with a normalized
// upload response.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"inkwell/internal/editor/ports"
	"inkwell/internal/httpclient"
	"inkwell/internal/logging"
)

const maxResponseBytes = 1 << 20

// Config points the client at its backend.
type Config struct {
	ByFileEndpoint string
	ByURLEndpoint  string

	// Field names the multipart part carrying the image, default "image"
	Field string

	// Types is the accept filter handed to the file selector, default "image/*"
	Types string

	// ExtraData is appended to every request body
	ExtraData map[string]any

	// ExtraHeaders is set on every request
	ExtraHeaders map[string]string
}

// SelectFunc prompts for a local file. The accept argument carries the
// configured media type filter.
type SelectFunc func(ctx context.Context, accept string) (ports.FileUpload, error)

// Client implements ports.Uploader over HTTP.
type Client struct {
	cfg        Config
	http       *http.Client
	logger     logging.Logger
	selectFile SelectFunc
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logging.OrNop(logger)
	}
}

// WithSelectFile installs the local file selector used by UploadSelected.
func WithSelectFile(fn SelectFunc) Option {
	return func(c *Client) {
		c.selectFile = fn
	}
}

// New builds a Client with defaults filled in.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Field == "" {
		cfg.Field = "image"
	}
	if cfg.Types == "" {
		cfg.Types = "image/*"
	}

	c := &Client{
		cfg:    cfg,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.New(0, c.logger)
	}
	return c
}

// UploadByFile posts a binary payload as a multipart form.
func (c *Client) UploadByFile(ctx context.Context, file ports.FileUpload) (ports.UploadResponse, error) {
	if c.cfg.ByFileEndpoint == "" {
		return ports.UploadResponse{}, errors.New("uploader: no byFile endpoint configured")
	}

	name := file.Name
	if name == "" {
		name = "image"
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, c.cfg.Field, name))
	if file.MediaType != "" {
		header.Set("Content-Type", file.MediaType)
	}
	part, err := form.CreatePart(header)
	if err != nil {
		return ports.UploadResponse{}, fmt.Errorf("uploader: building form: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return ports.UploadResponse{}, fmt.Errorf("uploader: building form: %w", err)
	}
	for key, value := range c.cfg.ExtraData {
		if err := form.WriteField(key, stringify(value)); err != nil {
			return ports.UploadResponse{}, fmt.Errorf("uploader: building form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return ports.UploadResponse{}, fmt.Errorf("uploader: building form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ByFileEndpoint, &buf)
	if err != nil {
		return ports.UploadResponse{}, fmt.Errorf("uploader: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	c.applyHeaders(req)

	c.logger.Debug("uploading %d bytes to %s", len(file.Data), c.cfg.ByFileEndpoint)
	return c.do(req)
}

// UploadByURL asks the backend to ingest a remote URL via a JSON post.
func (c *Client) UploadByURL(ctx context.Context, url string) (ports.UploadResponse, error) {
	if c.cfg.ByURLEndpoint == "" {
		return ports.UploadResponse{}, errors.New("uploader: no byUrl endpoint configured")
	}

	payload := map[string]any{"url": url}
	for key, value := range c.cfg.ExtraData {
		payload[key] = value
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ports.UploadResponse{}, fmt.Errorf("uploader: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ByURLEndpoint, bytes.NewReader(body))
	if err != nil {
		return ports.UploadResponse{}, fmt.Errorf("uploader: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeaders(req)

	c.logger.Debug("requesting ingestion of %s via %s", url, c.cfg.ByURLEndpoint)
	return c.do(req)
}

// UploadSelected prompts through the configured selector, previews the
// picked file and uploads it.
func (c *Client) UploadSelected(ctx context.Context, onPreview func(src string)) (ports.UploadResponse, error) {
	if c.selectFile == nil {
		return ports.UploadResponse{}, errors.New("uploader: no file selector configured")
	}
	file, err := c.selectFile(ctx, c.cfg.Types)
	if err != nil {
		return ports.UploadResponse{}, fmt.Errorf("uploader: selecting file: %w", err)
	}
	if onPreview != nil {
		onPreview(file.PreviewURI())
	}
	return c.UploadByFile(ctx, file)
}

func (c *Client) applyHeaders(req *http.Request) {
	for key, value := range c.cfg.ExtraHeaders {
		req.Header.Set(key, value)
	}
}

func (c *Client) do(req *http.Request) (ports.UploadResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return ports.UploadResponse{}, fmt.Errorf("uploader: %w", err)
	}
	defer resp.Body.Close()

	body, err := httpclient.ReadBody(resp.Body, maxResponseBytes)
	if err != nil {
		return ports.UploadResponse{}, fmt.Errorf("uploader: reading response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return ports.UploadResponse{}, fmt.Errorf("uploader: backend returned %s: %s",
			resp.Status, compact(body))
	}

	var out ports.UploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return ports.UploadResponse{}, fmt.Errorf("uploader: decoding response: %w", err)
	}
	return out, nil
}

// stringify renders an extra-data value as a form field. Strings pass
// through; everything else is JSON-encoded.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func compact(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "(empty body)"
	}
	return s
}
