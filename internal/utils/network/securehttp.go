package network

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// ClientOptions configures the shared HTTP client.
type ClientOptions struct {
	// Proxy is captured once at startup and never re-read.
	Proxy ProxyConfig
	// Timeout bounds connection setup and response headers. Body reads are
	// bounded by the per-request context.
	Timeout time.Duration
	// MaxConnsPerHost limits parallel connections to one mirror, 0 = unlimited.
	MaxConnsPerHost int
}

// NewSecureHTTPClient returns an http.Client with the project TLS settings
// and the captured proxy configuration. Callers reuse it instead of
// re-defining the TLS settings everywhere.
func NewSecureHTTPClient(opts ClientOptions) *http.Client {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,

		// CipherSuites applies only to TLS 1.0–1.2
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 opts.Proxy.ProxyFunc(),
		TLSClientConfig:       tlsConfig,
		ForceAttemptHTTP2:     true,
		DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxConnsPerHost:       opts.MaxConnsPerHost,
		// Index files are decompressed by the codec registry; a transparently
		// gunzipped body would no longer match its declared checksum.
		DisableCompression: true,
	}

	return &http.Client{
		Transport: transport,
	}
}
