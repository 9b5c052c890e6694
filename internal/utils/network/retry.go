package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy mirrors the original tool: 3 attempts, 0.5s backoff factor.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     30 * time.Second,
}

// NewBackOff returns a fresh exponential backoff for one retried operation.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	// attempts are bounded by MaxAttempts, not by elapsed time
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Attempts returns the effective attempt bound.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// CheckResponse maps a response status to nil, a transient NetworkError or
// a PermanentHTTPError.
func CheckResponse(url string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &ospackage.NetworkError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        &retryAfter{wait: parseRetryAfter(resp.Header.Get("Retry-After"))},
		}
	default:
		return &ospackage.PermanentHTTPError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
}

// ClassifyTransportError wraps a client.Do error. Context cancellation of
// the run is returned as is; everything else, including per-request
// timeouts, is transient.
func ClassifyTransportError(runCtx context.Context, url string, err error) error {
	if runCtx.Err() != nil {
		return runCtx.Err()
	}
	return &ospackage.NetworkError{URL: url, Err: err}
}

type retryAfter struct {
	wait time.Duration
}

func (r *retryAfter) Error() string {
	if r.wait > 0 {
		return fmt.Sprintf("retry after %s", r.wait)
	}
	return "server asked to retry"
}

// RetryAfter extracts a server-requested delay from err, if any.
func RetryAfter(err error) time.Duration {
	var ra *retryAfter
	if errors.As(err, &ra) {
		return ra.wait
	}
	return 0
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NextDelay picks the wait before the next attempt, honouring Retry-After
// capped at the policy's MaxInterval.
func (p RetryPolicy) NextDelay(b backoff.BackOff, err error) time.Duration {
	d := b.NextBackOff()
	if d == backoff.Stop {
		d = p.MaxInterval
	}
	if ra := RetryAfter(err); ra > d {
		d = ra
		if p.MaxInterval > 0 && d > p.MaxInterval {
			d = p.MaxInterval
		}
	}
	return d
}
