// Package fetch materializes the bytes behind image source references.
// It understands data: URIs, editor-local blob: handles (through a pluggable
// resolver) and remote http(s) URLs, with an LRU cache and duplicate-request
// suppression in front of the network.
package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"inkwell/internal/httpclient"
	"inkwell/internal/logging"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxBytes  = 16 << 20
	defaultCacheSize = 128
	defaultCacheTTL  = 5 * time.Minute
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Inkwell/1.0 (Image Fetcher)"
)

var dataURIPattern = regexp.MustCompile(`(?is)^data:([^;,]+)?(;[^,]*)?,\s*(.+)$`)

// Resolver materializes sources the fetcher cannot reach on its own, such as
// blob: handles that only the hosting editor can dereference.
type Resolver interface {
	Resolve(ctx context.Context, src string) (data []byte, mediaType string, err error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, src string) ([]byte, string, error)

func (f ResolverFunc) Resolve(ctx context.Context, src string) ([]byte, string, error) {
	return f(ctx, src)
}

// Config bounds the fetcher's remote behaviour.
type Config struct {
	// MaxBytes caps a single remote payload.
	MaxBytes int64
	// CacheSize is the number of remote payloads kept in the LRU cache.
	CacheSize int
	// CacheTTL is how long a cached payload remains valid.
	CacheTTL time.Duration
	// Timeout bounds a single remote request.
	Timeout time.Duration
	// UserAgent overrides the default request identity.
	UserAgent string
}

type cacheEntry struct {
	data      []byte
	mediaType string
	storedAt  time.Time
}

// Service resolves source references into raw bytes plus a media type.
type Service struct {
	client   *http.Client
	cache    *lru.Cache[string, cacheEntry]
	group    singleflight.Group
	resolver Resolver
	logger   logging.Logger
	cfg      Config
}

// Option customizes Service construction.
type Option func(*Service)

// WithLogger attaches a logger for fetch diagnostics.
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithResolver wires a resolver for blob: sources.
func WithResolver(r Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithHTTPClient replaces the outbound HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

// New builds a source fetcher. Zero config fields fall back to defaults.
func New(cfg Config, opts ...Option) *Service {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	// lru.New only errors on non-positive size which we guard above.
	cache, _ := lru.New[string, cacheEntry](cfg.CacheSize)

	s := &Service{cache: cache, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)
	if s.client == nil {
		s.client = httpclient.New(cfg.Timeout, s.logger)
	}
	return s
}

// Fetch dispatches on the source scheme. blob: sources require a resolver;
// without one they fail rather than guess.
func (s *Service) Fetch(ctx context.Context, src string) ([]byte, string, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return nil, "", fmt.Errorf("fetch: empty source")
	}

	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return decodeDataURI(trimmed)
	case strings.HasPrefix(lower, "blob:"):
		if s.resolver == nil {
			return nil, "", fmt.Errorf("fetch: no resolver registered for blob source")
		}
		data, mediaType, err := s.resolver.Resolve(ctx, trimmed)
		if err != nil {
			return nil, "", fmt.Errorf("fetch: resolve blob source: %w", err)
		}
		if mediaType == "" {
			mediaType = http.DetectContentType(data)
		}
		return data, mediaType, nil
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return s.fetchRemote(ctx, trimmed)
	default:
		return nil, "", fmt.Errorf("fetch: unsupported source scheme in %q", trimmed)
	}
}

// fetchRemote serves from cache when fresh, otherwise downloads. Concurrent
// requests for the same URL share one download.
func (s *Service) fetchRemote(ctx context.Context, src string) ([]byte, string, error) {
	if entry, ok := s.cache.Get(src); ok {
		if time.Since(entry.storedAt) < s.cfg.CacheTTL {
			return entry.data, entry.mediaType, nil
		}
		// Stale entry, evict before re-downloading.
		s.cache.Remove(src)
	}

	v, err, shared := s.group.Do(src, func() (any, error) {
		data, mediaType, err := s.download(ctx, src)
		if err != nil {
			return nil, err
		}
		entry := cacheEntry{data: data, mediaType: mediaType, storedAt: time.Now()}
		s.cache.Add(src, entry)
		return entry, nil
	})
	if err != nil {
		return nil, "", err
	}
	if shared {
		s.logger.Debug("fetch: coalesced duplicate download of %s", src)
	}
	entry := v.(cacheEntry)
	return entry.data, entry.mediaType, nil
}

func (s *Service) download(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: create request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: request %s: %w", src, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch: %s returned HTTP %d", src, resp.StatusCode)
	}

	data, err := httpclient.ReadBody(resp.Body, s.cfg.MaxBytes)
	if err != nil {
		if httpclient.IsBodyTooLarge(err) {
			return nil, "", fmt.Errorf("fetch: %s exceeds %d byte limit", src, s.cfg.MaxBytes)
		}
		return nil, "", fmt.Errorf("fetch: read body: %w", err)
	}

	return data, mediaTypeFor(resp.Header.Get("Content-Type"), data), nil
}

// mediaTypeFor trusts a concrete Content-Type header and sniffs otherwise.
func mediaTypeFor(header string, data []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "" && mt != "application/octet-stream" {
			return mt
		}
	}
	return http.DetectContentType(data)
}

// decodeDataURI extracts the raw bytes and media type from a data: URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	match := dataURIPattern.FindStringSubmatch(strings.TrimSpace(uri))
	if match == nil {
		return nil, "", fmt.Errorf("fetch: malformed data URI")
	}
	mediaType := strings.TrimSpace(match[1])
	meta := strings.ToLower(match[2])
	payload := strings.TrimSpace(match[3])
	if payload == "" {
		return nil, "", fmt.Errorf("fetch: empty data URI payload")
	}

	var decoded []byte
	if strings.Contains(meta, "base64") {
		var err error
		if decoded, err = decodeBase64(payload); err != nil {
			return nil, "", fmt.Errorf("fetch: decode data URI: %w", err)
		}
	} else {
		unescaped, err := url.QueryUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("fetch: decode data URI: %w", err)
		}
		decoded = []byte(unescaped)
	}
	if len(decoded) == 0 {
		return nil, "", fmt.Errorf("fetch: empty data URI payload")
	}

	if mediaType == "" {
		mediaType = http.DetectContentType(decoded)
	}
	return decoded, mediaType, nil
}

// decodeBase64 tolerates both padded and unpadded payloads.
func decodeBase64(value string) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(value)
}
