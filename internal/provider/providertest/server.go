// Package providertest serves fake RPM and DEB repositories over
// httptest for provider and pipeline tests.
package providertest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Server is an in-memory static file server that counts requests per path.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
	fail  map[string][]int // path -> status codes to answer before serving
}

// NewServer starts an empty server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		files: make(map[string][]byte),
		hits:  make(map[string]int),
		fail:  make(map[string][]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	if codes := s.fail[r.URL.Path]; len(codes) > 0 {
		s.fail[r.URL.Path] = codes[1:]
		s.mu.Unlock()
		w.WriteHeader(codes[0])
		return
	}
	data, ok := s.files[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write(data)
}

// Put publishes data at path ("/a/b").
func (s *Server) Put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
}

// FailNext makes the next requests for path answer with codes, in order.
func (s *Server) FailNext(path string, codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[path] = append(s.fail[path], codes...)
}

// Hits returns the number of requests seen for path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// HitsWithSuffix sums requests for paths ending in suffix.
func (s *Server) HitsWithSuffix(suffix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for p, c := range s.hits {
		if strings.HasSuffix(p, suffix) {
			n += c
		}
	}
	return n
}

// Paths lists every published path, sorted.
func (s *Server) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Sha256 returns the hex digest of data.
func Sha256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Gzip compresses data.
func Gzip(data []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// XZ compresses data.
func XZ(data []byte) []byte {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		panic(fmt.Sprintf("xz writer: %v", err))
	}
	w.Write(data)
	w.Close()
	return buf.Bytes()
}
