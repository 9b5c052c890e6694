//go:build !nozstd

package compression

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

type zstdCodec struct{}

func (zstdCodec) Format() Format { return Zstd }

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

// ZstdCodec is compiled out with the nozstd build tag.
func ZstdCodec() Codec { return zstdCodec{} }

func init() {
	defaultRegistry.Register(ZstdCodec())
}
