package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func TestFetchDataURI(t *testing.T) {
	svc := New(Config{})

	payload := base64.StdEncoding.EncodeToString(pngHeader)
	data, mediaType, err := svc.Fetch(context.Background(), "data:image/png;base64,"+payload)

	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", mediaType)
}

func TestFetchDataURIUnpaddedBase64(t *testing.T) {
	svc := New(Config{})

	payload := base64.RawStdEncoding.EncodeToString([]byte("GIF89a-frame"))
	data, mediaType, err := svc.Fetch(context.Background(), "data:image/gif;base64,"+payload)

	require.NoError(t, err)
	assert.Equal(t, []byte("GIF89a-frame"), data)
	assert.Equal(t, "image/gif", mediaType)
}

func TestFetchDataURISniffsMissingMediaType(t *testing.T) {
	svc := New(Config{})

	payload := base64.StdEncoding.EncodeToString(pngHeader)
	_, mediaType, err := svc.Fetch(context.Background(), "data:;base64,"+payload)

	require.NoError(t, err)
	assert.Equal(t, "image/png", mediaType)
}

func TestFetchDataURIPercentEncoded(t *testing.T) {
	svc := New(Config{})

	data, mediaType, err := svc.Fetch(context.Background(), "data:text/plain,hello%20world")

	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)
	assert.Equal(t, "text/plain", mediaType)
}

func TestFetchDataURIMalformed(t *testing.T) {
	svc := New(Config{})

	_, _, err := svc.Fetch(context.Background(), "data:image/png;base64")
	assert.Error(t, err)

	_, _, err = svc.Fetch(context.Background(), "data:image/png;base64,!!!not-base64!!!")
	assert.Error(t, err)
}

func TestFetchBlobRequiresResolver(t *testing.T) {
	svc := New(Config{})

	_, _, err := svc.Fetch(context.Background(), "blob:https://editor.local/abc-123")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no resolver")
}

func TestFetchBlobUsesResolver(t *testing.T) {
	resolver := ResolverFunc(func(ctx context.Context, src string) ([]byte, string, error) {
		assert.Equal(t, "blob:https://editor.local/abc-123", src)
		return pngHeader, "image/png", nil
	})
	svc := New(Config{}, WithResolver(resolver))

	data, mediaType, err := svc.Fetch(context.Background(), "blob:https://editor.local/abc-123")

	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", mediaType)
}

func TestFetchBlobResolverErrorWrapped(t *testing.T) {
	resolver := ResolverFunc(func(ctx context.Context, src string) ([]byte, string, error) {
		return nil, "", fmt.Errorf("handle revoked")
	})
	svc := New(Config{}, WithResolver(resolver))

	_, _, err := svc.Fetch(context.Background(), "blob:https://editor.local/gone")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "handle revoked")
}

func TestFetchRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Contains(t, r.Header.Get("User-Agent"), "Inkwell")
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	svc := New(Config{}, WithHTTPClient(srv.Client()))

	data, mediaType, err := svc.Fetch(context.Background(), srv.URL+"/photo.jpg")

	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.Equal(t, "image/jpeg", mediaType)
}

func TestFetchRemoteSniffsWithoutContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// An octet-stream header carries no information; the sniffer decides.
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	svc := New(Config{}, WithHTTPClient(srv.Client()))

	_, mediaType, err := svc.Fetch(context.Background(), srv.URL+"/raw")

	require.NoError(t, err)
	assert.Equal(t, "image/png", mediaType)
}

func TestFetchRemoteCaches(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	svc := New(Config{CacheTTL: time.Minute}, WithHTTPClient(srv.Client()))

	for i := 0; i < 3; i++ {
		data, _, err := svc.Fetch(context.Background(), srv.URL+"/cached.png")
		require.NoError(t, err)
		assert.Equal(t, pngHeader, data)
	}

	assert.Equal(t, int64(1), hits.Load())
}

func TestFetchRemoteDoesNotCacheFailures(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(pngHeader)
	}))
	defer srv.Close()

	svc := New(Config{CacheTTL: time.Minute}, WithHTTPClient(srv.Client()))

	_, _, err := svc.Fetch(context.Background(), srv.URL+"/flaky.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")

	data, _, err := svc.Fetch(context.Background(), srv.URL+"/flaky.png")
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestFetchRemoteSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	svc := New(Config{MaxBytes: 16}, WithHTTPClient(srv.Client()))

	_, _, err := svc.Fetch(context.Background(), srv.URL+"/huge.png")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestFetchRemoteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc := New(Config{}, WithHTTPClient(srv.Client()))

	_, _, err := svc.Fetch(context.Background(), srv.URL+"/missing.png")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestFetchRejectsUnsupportedSources(t *testing.T) {
	svc := New(Config{})

	_, _, err := svc.Fetch(context.Background(), "ftp://example.com/image.png")
	assert.Error(t, err)

	_, _, err = svc.Fetch(context.Background(), "   ")
	assert.Error(t, err)
}
