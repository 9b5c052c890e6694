package compression

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

const payload = "Package: xrdp\nVersion: 0.9.21.1-1\nArchitecture: amd64\n"

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("xz write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("xz close: %v", err)
	}
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func TestDecompressByExtension(t *testing.T) {
	testCases := []struct {
		name string
		file string
		data []byte
	}{
		{"gzip", "Packages.gz", gzipBytes(t, []byte(payload))},
		{"xz", "Packages.xz", xzBytes(t, []byte(payload))},
		{"zstd", "repodata/abc-primary.xml.zst", zstdBytes(t, []byte(payload))},
		{"plain", "Packages", []byte(payload)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Decompress(tc.file, tc.data)
			if err != nil {
				t.Fatalf("Decompress(%s): %v", tc.file, err)
			}
			if string(out) != payload {
				t.Errorf("unexpected output %q", out)
			}
		})
	}
}

func TestDetectByMagic(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected Format
	}{
		{gzipBytes(t, []byte(payload)), Gzip},
		{xzBytes(t, []byte(payload)), XZ},
		{zstdBytes(t, []byte(payload)), Zstd},
		{[]byte("BZh91AY&SY"), Bzip2},
		{[]byte{0x04, 0x22, 0x4d, 0x18, 0x00}, LZ4},
		{[]byte("<?xml version=\"1.0\"?>"), None},
	}

	for _, tc := range testCases {
		if got := Detect("index", tc.data); got != tc.expected {
			t.Errorf("Detect() = %s, want %s", got, tc.expected)
		}
	}
}

func TestExtensionWinsOverQuery(t *testing.T) {
	f, ok := FormatFromName("https://example.com/dists/bookworm/main/binary-amd64/Packages.xz?x=1")
	if !ok || f != XZ {
		t.Fatalf("expected xz, got %s (ok=%v)", f, ok)
	}
}

func TestOptionalCodecUnavailable(t *testing.T) {
	reg := NewRegistry(GzipCodec(), XZCodec())

	_, err := reg.Decompress("primary.xml.zst", zstdBytes(t, []byte(payload)))
	var unavailable *ospackage.CodecUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected CodecUnavailableError, got %v", err)
	}
	if unavailable.Format != string(Zstd) {
		t.Errorf("unexpected format %q", unavailable.Format)
	}
}

func TestUnsupportedCompression(t *testing.T) {
	_, err := Decompress("Packages.lz4", []byte{0x04, 0x22, 0x4d, 0x18})
	var unsupported *ospackage.UnsupportedCompressionError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedCompressionError, got %v", err)
	}
}

func TestCorruptPayload(t *testing.T) {
	_, err := Decompress("Packages.gz", []byte("definitely not gzip"))
	var decErr *ospackage.DecompressionError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecompressionError, got %v", err)
	}
}
