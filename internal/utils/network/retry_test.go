package network

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

func TestCheckResponse(t *testing.T) {
	testCases := []struct {
		status        int
		wantTransient bool
		wantPermanent bool
	}{
		{http.StatusOK, false, false},
		{http.StatusPartialContent, false, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusInternalServerError, true, false},
		{http.StatusBadGateway, true, false},
		{http.StatusNotFound, false, true},
		{http.StatusForbidden, false, true},
	}

	for _, tc := range testCases {
		resp := &http.Response{StatusCode: tc.status, Status: http.StatusText(tc.status), Header: http.Header{}}
		err := CheckResponse("http://example.com/x", resp)

		if got := ospackage.IsTransient(err); got != tc.wantTransient {
			t.Errorf("status %d: transient = %v, want %v", tc.status, got, tc.wantTransient)
		}
		var perm *ospackage.PermanentHTTPError
		if got := errors.As(err, &perm); got != tc.wantPermanent {
			t.Errorf("status %d: permanent = %v, want %v", tc.status, got, tc.wantPermanent)
		}
	}
}

func TestRetryAfterHeader(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"2"}}}
	err := CheckResponse("http://example.com/x", resp)
	if got := RetryAfter(err); got != 2*time.Second {
		t.Fatalf("RetryAfter = %s, want 2s", got)
	}

	policy := RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Second}
	if d := policy.NextDelay(policy.NewBackOff(), err); d != time.Second {
		t.Errorf("expected Retry-After capped at MaxInterval, got %s", d)
	}
}

func TestClassifyTransportErrorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ClassifyTransportError(ctx, "http://example.com", errors.New("dial tcp: operation was canceled"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ospackage.IsTransient(err) {
		t.Error("run cancellation must not be retried")
	}
}
