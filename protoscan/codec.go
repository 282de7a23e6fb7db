package protoscan

import (
	"bytes"
	"errors"
	"io"
	"io/ioutil"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var errTooLarge = errors.New("protoscan: decompressed data too large")

// Codec is a decompressor recognised by its leading magic bytes.
type Codec struct {
	Name   string
	Magic  []byte
	Reader func(io.Reader) (io.Reader, error)
}

// Magic byte sequences of the default codecs.
var (
	GzipMagic   = []byte{0x1f, 0x8b}
	ZstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	LZ4Magic    = []byte{0x04, 0x22, 0x4d, 0x18}
	SnappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
)

// DefaultCodecs returns gzip, zstd, lz4 and framed snappy.
func DefaultCodecs() []Codec {
	return []Codec{
		{Name: "gzip", Magic: GzipMagic, Reader: func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		}},
		{Name: "zstd", Magic: ZstdMagic, Reader: func(r io.Reader) (io.Reader, error) {
			dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			return dec.IOReadCloser(), nil
		}},
		{Name: "lz4", Magic: LZ4Magic, Reader: func(r io.Reader) (io.Reader, error) {
			return lz4.NewReader(r), nil
		}},
		{Name: "snappy", Magic: SnappyMagic, Reader: func(r io.Reader) (io.Reader, error) {
			return snappy.NewReader(r), nil
		}},
	}
}

// Detect returns the first codec whose magic prefixes data.
func Detect(data []byte, codecs []Codec) (Codec, bool) {
	for _, c := range codecs {
		if len(c.Magic) != 0 && bytes.HasPrefix(data, c.Magic) {
			return c, true
		}
	}
	return Codec{}, false
}

func (s *Scanner) detect(data []byte) (Codec, bool) {
	return Detect(data, s.o.Codecs)
}

// decode fully decompresses data, reading at most limit bytes.
func (c Codec) decode(data []byte, limit int64) ([]byte, error) {
	r, err := c.Reader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if rc, ok := r.(io.Closer); ok {
		defer rc.Close()
	}

	plain, err := ioutil.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(plain)) > limit {
		return nil, errTooLarge
	}
	return plain, nil
}
