// Package repofetch retrieves and decompresses raw repository index files.
package repofetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage/compression"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/logger"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/network"
)

// Fetcher downloads index files into memory.
type Fetcher struct {
	Client  *http.Client
	Retry   network.RetryPolicy
	Timeout time.Duration // per request, including the body read
	Codecs  *compression.Registry
}

// New returns a Fetcher using the default codec registry.
func New(client *http.Client, retry network.RetryPolicy, timeout time.Duration) *Fetcher {
	return &Fetcher{
		Client:  client,
		Retry:   retry,
		Timeout: timeout,
		Codecs:  compression.Default(),
	}
}

// Fetch GETs url, retrying transient failures with exponential backoff.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	log := logger.Logger()

	b := f.Retry.NewBackOff()
	attempts := f.Retry.Attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		data, err := f.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !ospackage.IsTransient(err) || attempt == attempts {
			break
		}
		wait := f.Retry.NextDelay(b, err)
		log.Warnf("fetching %s failed (attempt %d/%d): %v, retrying in %s", url, attempt, attempts, err, wait)
		if err := network.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	reqCtx := ctx
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, network.ClassifyTransportError(ctx, url, err)
	}
	defer resp.Body.Close()

	if err := network.CheckResponse(url, resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, network.ClassifyTransportError(ctx, url, err)
	}
	return data, nil
}

// FetchDecompressed fetches url and decodes it through the codec registry.
func (f *Fetcher) FetchDecompressed(ctx context.Context, url string) ([]byte, error) {
	raw, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return f.Codecs.Decompress(url, raw)
}

// FetchFirst tries candidate URLs in order, moving on only when the server
// answers 404. It returns the URL that answered along with its decoded
// bytes.
func (f *Fetcher) FetchFirst(ctx context.Context, urls []string) (string, []byte, error) {
	log := logger.Logger()

	var lastErr error
	for _, u := range urls {
		data, err := f.FetchDecompressed(ctx, u)
		if err == nil {
			return u, data, nil
		}
		if !IsNotFound(err) {
			return "", nil, err
		}
		log.Debugf("index candidate %s not found", u)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no candidate URLs")
	}
	return "", nil, lastErr
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool {
	var perm *ospackage.PermanentHTTPError
	return errors.As(err, &perm) && perm.StatusCode == http.StatusNotFound
}
