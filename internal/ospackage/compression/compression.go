// Package compression decodes compressed repository index files through a
// registry of codecs keyed by detected format.
package compression

import (
	"bytes"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

// Format identifies a compression container.
type Format string

const (
	None  Format = ""
	Gzip  Format = "gzip"
	XZ    Format = "xz"
	Zstd  Format = "zstd"
	Bzip2 Format = "bzip2"
	LZ4   Format = "lz4"
)

// Codec opens a decompressing reader for one format.
type Codec interface {
	Format() Format
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// optionalFormats may be compiled out; asking for them in a build without
// the handler yields CodecUnavailableError instead of UnsupportedCompressionError.
var optionalFormats = map[Format]bool{
	Zstd: true,
}

var extensions = map[string]Format{
	".gz":   Gzip,
	".xz":   XZ,
	".zst":  Zstd,
	".zstd": Zstd,
	".bz2":  Bzip2,
	".lz4":  LZ4,
}

var magics = []struct {
	format Format
	prefix []byte
}{
	{Gzip, []byte{0x1f, 0x8b}},
	{XZ, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{Bzip2, []byte("BZh")},
	{LZ4, []byte{0x04, 0x22, 0x4d, 0x18}},
}

// Registry maps formats to codecs.
type Registry struct {
	mu     sync.RWMutex
	codecs map[Format]Codec
}

// NewRegistry returns a registry holding the given codecs.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: make(map[Format]Codec)}
	for _, c := range codecs {
		r.Register(c)
	}
	return r
}

// Register adds or replaces the codec for c.Format().
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Format()] = c
}

// Lookup returns the codec for f.
func (r *Registry) Lookup(f Format) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[f]
	return c, ok
}

var defaultRegistry = NewRegistry()

// Default returns the process registry populated with every codec in this build.
func Default() *Registry {
	return defaultRegistry
}

// Detect picks a format from the name's extension, falling back to the
// payload's magic bytes. Unknown content is treated as uncompressed.
func Detect(name string, data []byte) Format {
	if f, ok := FormatFromName(name); ok {
		return f
	}
	for _, m := range magics {
		if bytes.HasPrefix(data, m.prefix) {
			return m.format
		}
	}
	return None
}

// FormatFromName maps a file name or URL extension to a format.
func FormatFromName(name string) (Format, bool) {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	f, ok := extensions[strings.ToLower(path.Ext(name))]
	return f, ok
}

// Decompress decodes data according to the detected format. name is used
// for detection and error messages.
func (r *Registry) Decompress(name string, data []byte) ([]byte, error) {
	format := Detect(name, data)
	if format == None {
		return data, nil
	}

	codec, ok := r.Lookup(format)
	if !ok {
		if optionalFormats[format] {
			return nil, &ospackage.CodecUnavailableError{Source: name, Format: string(format)}
		}
		return nil, &ospackage.UnsupportedCompressionError{Source: name, Format: string(format)}
	}

	rd, err := codec.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ospackage.DecompressionError{Source: name, Format: string(format), Err: err}
	}
	defer rd.Close()

	out, err := io.ReadAll(rd)
	if err != nil {
		return nil, &ospackage.DecompressionError{Source: name, Format: string(format), Err: err}
	}
	return out, nil
}

// Decompress decodes data with the default registry.
func Decompress(name string, data []byte) ([]byte, error) {
	return defaultRegistry.Decompress(name, data)
}

func (f Format) String() string {
	if f == None {
		return "none"
	}
	return string(f)
}
