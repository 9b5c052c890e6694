package compression

import (
	"compress/bzip2"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

type gzipCodec struct{}

func (gzipCodec) Format() Format { return Gzip }

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

type xzCodec struct{}

func (xzCodec) Format() Format { return XZ }

func (xzCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(xr), nil
}

type bzip2Codec struct{}

func (bzip2Codec) Format() Format { return Bzip2 }

func (bzip2Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(bzip2.NewReader(r)), nil
}

// GzipCodec, XZCodec and Bzip2Codec are always available.
func GzipCodec() Codec  { return gzipCodec{} }
func XZCodec() Codec    { return xzCodec{} }
func Bzip2Codec() Codec { return bzip2Codec{} }

func init() {
	defaultRegistry.Register(GzipCodec())
	defaultRegistry.Register(XZCodec())
	defaultRegistry.Register(Bzip2Codec())
}
