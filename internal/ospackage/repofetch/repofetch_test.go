package repofetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
	"github.com/open-edge-platform/os-package-fetcher/internal/utils/network"
)

var fastRetry = network.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func newTestFetcher() *Fetcher {
	return New(http.DefaultClient, fastRetry, 5*time.Second)
}

func TestFetchRetriesTransient(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	data, err := newTestFetcher().Fetch(context.Background(), server.URL+"/repodata/repomd.xml")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("unexpected body %q", data)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestFetchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestFetcher().Fetch(context.Background(), server.URL)
	var netErr *ospackage.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestFetchDoesNotRetryNotFound(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestFetcher().Fetch(context.Background(), server.URL)
	if !IsNotFound(err) {
		t.Fatalf("expected 404 error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestFetchFirstAndDecompress(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("Package: xrdp\n"))
	zw.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/binary-amd64/Packages.gz" {
			w.Write(buf.Bytes())
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := newTestFetcher()
	candidates := []string{
		server.URL + "/binary-amd64/Packages.xz",
		server.URL + "/binary-amd64/Packages.gz",
	}
	u, out, err := f.FetchFirst(context.Background(), candidates)
	if err != nil {
		t.Fatalf("FetchFirst: %v", err)
	}
	if u != candidates[1] {
		t.Errorf("expected gz candidate, got %s", u)
	}
	if string(out) != "Package: xrdp\n" {
		t.Errorf("unexpected content %q", out)
	}
}

func TestFetchHonoursCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().Fetch(ctx, server.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFetchFirstStopsOnCorruptIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not gzip"))
	}))
	defer server.Close()

	_, _, err := newTestFetcher().FetchFirst(context.Background(), []string{
		server.URL + "/Packages.gz",
		server.URL + "/Packages",
	})
	var decErr *ospackage.DecompressionError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecompressionError, got %v", err)
	}
}

func TestFetchRetriesAttemptTimeout(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(500 * time.Millisecond):
			}
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := New(http.DefaultClient, fastRetry, 100*time.Millisecond)
	data, err := f.Fetch(context.Background(), server.URL+"/repodata/repomd.xml")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("unexpected body %q", data)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
}
