package provider

import (
	"net"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 120 * time.Second

// Pool sizes the idle connection pool of one upstream.
type Pool struct {
	MaxIdlePerHost int
	IdleTimeout    time.Duration
}

var (
	// ChatPool serves summarization and vision. One text or URL event makes
	// two back-to-back completions, so connections are kept warm.
	ChatPool = Pool{MaxIdlePerHost: 8, IdleTimeout: 90 * time.Second}

	// TranscriptionPool serves Whisper: one large multipart upload per voice
	// note, rarely concurrent, so few idle connections are kept.
	TranscriptionPool = Pool{MaxIdlePerHost: 2, IdleTimeout: 30 * time.Second}
)

// NewHTTPClient returns a pooled client for one upstream. Build it once at
// startup and reuse it across events. The response header timeout equals the
// overall timeout because transcription and completion endpoints only answer
// once the work is done.
func NewHTTPClient(timeout time.Duration, pool Pool) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if pool.MaxIdlePerHost <= 0 {
		pool = ChatPool
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        pool.MaxIdlePerHost,
		MaxIdleConnsPerHost: pool.MaxIdlePerHost,
		IdleConnTimeout:     pool.IdleTimeout,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
