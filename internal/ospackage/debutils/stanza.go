package debutils

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

// Stanza is one control paragraph. Lookups through Get are
// case-insensitive as in dpkg.
type Stanza struct {
	Line   int // line number of the first field
	fields map[string]string
}

// Get returns the value of field name.
func (s *Stanza) Get(name string) string {
	return s.fields[strings.ToLower(name)]
}

// Has reports whether field name is present.
func (s *Stanza) Has(name string) bool {
	_, ok := s.fields[strings.ToLower(name)]
	return ok
}

func (s *Stanza) set(name, value string) {
	s.fields[strings.ToLower(name)] = value
}

// ParseStanzas splits a Packages/control file into paragraphs. A line that
// is neither blank, a continuation, nor "Field: value" is reported as
// malformed rather than skipped.
func ParseStanzas(r io.Reader, source string) ([]*Stanza, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		stanzas []*Stanza
		cur     *Stanza
		lastKey string
		lineNo  int
	)
	flush := func() {
		if cur != nil {
			stanzas = append(stanzas, cur)
		}
		cur = nil
		lastKey = ""
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, "#") && cur == nil {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if cur == nil || lastKey == "" {
				return nil, &ospackage.MalformedMetadataError{Source: source, Line: lineNo, Reason: "continuation line outside a field"}
			}
			cont := strings.TrimSpace(line)
			if cont == "." {
				cont = ""
			}
			cur.set(lastKey, strings.TrimSpace(cur.Get(lastKey)+" "+cont))
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			return nil, &ospackage.MalformedMetadataError{Source: source, Line: lineNo, Reason: fmt.Sprintf("expected \"Field: value\", got %q", truncate(line, 60))}
		}
		if cur == nil {
			cur = &Stanza{Line: lineNo, fields: make(map[string]string)}
		}
		if cur.Has(key) {
			return nil, &ospackage.MalformedMetadataError{Source: source, Line: lineNo, Reason: fmt.Sprintf("duplicate field %q", key)}
		}
		cur.set(key, strings.TrimSpace(value))
		lastKey = key
	}
	if err := sc.Err(); err != nil {
		return nil, &ospackage.MalformedMetadataError{Source: source, Line: lineNo, Reason: err.Error()}
	}
	flush()
	return stanzas, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
