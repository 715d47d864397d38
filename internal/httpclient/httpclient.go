// Package httpclient builds outbound HTTP clients with a proxy policy that
// keeps local development working: unreachable loopback proxies are probed
// once and bypassed instead of failing every request.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"inkwell/internal/logging"
)

const (
	proxyModeEnv     = "INKWELL_PROXY_MODE"
	proxyDialTimeout = 300 * time.Millisecond
	defaultTimeout   = 30 * time.Second
)

// New returns an http.Client for outbound requests. It respects
// HTTP(S)_PROXY/ALL_PROXY/NO_PROXY, subject to the proxy mode policy.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: Transport(logger),
	}
}

// Transport returns an http.Transport clone carrying the proxy policy.
func Transport(logger logging.Logger) *http.Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Transport{Proxy: proxyFunc(logger)}
	}
	transport := base.Clone()
	transport.Proxy = proxyFunc(logger)
	return transport
}

type proxyMode uint8

const (
	proxyModeAuto proxyMode = iota
	proxyModeStrict
	proxyModeDirect
)

var (
	resolvedMode proxyMode
	modeOnce     sync.Once

	// loopbackBypass caches probe results per proxy URL; true means bypass.
	loopbackBypass sync.Map
)

// proxyFunc resolves the proxy for a request. Loopback destinations never go
// through a proxy, and loopback proxies that fail a quick dial probe are
// bypassed in auto mode.
func proxyFunc(logger logging.Logger) func(*http.Request) (*url.URL, error) {
	log := logging.OrNop(logger)

	return func(req *http.Request) (*url.URL, error) {
		switch modeFromEnv() {
		case proxyModeDirect:
			return nil, nil
		case proxyModeStrict:
			return http.ProxyFromEnvironment(req)
		}

		if req == nil || req.URL == nil {
			return http.ProxyFromEnvironment(req)
		}
		if isLoopbackHost(req.URL.Hostname()) {
			return nil, nil
		}

		proxyURL, err := http.ProxyFromEnvironment(req)
		if proxyURL == nil || err != nil {
			return proxyURL, err
		}
		if !isLoopbackHost(proxyURL.Hostname()) {
			return proxyURL, nil
		}

		key := proxyURL.String()
		if bypass, ok := loopbackBypass.Load(key); ok {
			if bypass.(bool) {
				return nil, nil
			}
			return proxyURL, nil
		}

		if dialable(req.Context(), proxyURL) {
			loopbackBypass.Store(key, false)
			return proxyURL, nil
		}

		loopbackBypass.Store(key, true)
		log.Warn("local proxy %s unreachable, bypassing (set %s=strict to disable)",
			proxyURL.Redacted(), proxyModeEnv)
		return nil, nil
	}
}

func modeFromEnv() proxyMode {
	modeOnce.Do(func() {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(proxyModeEnv))) {
		case "strict":
			resolvedMode = proxyModeStrict
		case "direct", "none", "off":
			resolvedMode = proxyModeDirect
		default:
			resolvedMode = proxyModeAuto
		}
	})
	return resolvedMode
}

func isLoopbackHost(host string) bool {
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsUnspecified()
}

func dialable(ctx context.Context, proxyURL *url.URL) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	host := strings.TrimSpace(proxyURL.Hostname())
	if host == "" {
		return false
	}
	port := proxyURL.Port()
	if port == "" {
		switch strings.ToLower(proxyURL.Scheme) {
		case "https":
			port = "443"
		case "socks5", "socks5h":
			port = "1080"
		default:
			port = "80"
		}
	}

	dialer := net.Dialer{Timeout: proxyDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
