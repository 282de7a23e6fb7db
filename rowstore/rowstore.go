// Package rowstore persists decoded table rows in a compact, sorted,
// block-compressed file that supports point lookups and ordered iteration
// without loading the whole file.
//
// A store file consists of data blocks, a schema section, a block index and
// a fixed-size footer:
//
//	+---------+-----+---------+--------+-------+--------+
//	| block 1 | ... | block n | schema | index | footer |
//	+---------+-----+---------+--------+-------+--------+
//
// Each block holds entries (uvarint key, uvarint value length, value), with
// keys delta-encoded between restart points, followed by the restart
// offsets, the restart count and a compression byte. Values are JSON
// encoded rows. The footer holds the schema offset, the index offset, the
// row count and a magic byte sequence.
package rowstore

import (
	"errors"

	"github.com/klauspost/compress/zstd"
)

var magic = []byte{'t', 'd', 'r', 'o', 'w', 's', 0x01, 0x9e}

const footerLen = 8 + 8 + 4 + 8

const (
	blockPlain  = 0
	blockSnappy = 1
	blockZstd   = 2
)

// ErrNotFound is returned by the reader when a key cannot be found.
var ErrNotFound = errors.New("rowstore: not found")

var (
	errClosed         = errors.New("rowstore: is closed")
	errBadMagic       = errors.New("rowstore: bad magic byte sequence")
	errBadCompression = errors.New("rowstore: bad compression codec")
	errBadIndex       = errors.New("rowstore: corrupt block index")
	errReleased       = errors.New("rowstore: iterator was released")
)

// Compression is the block compression codec.
type Compression byte

func (c Compression) isValid() bool {
	return c >= SnappyCompression && c < unknownCompression
}

// Supported compression codecs.
const (
	SnappyCompression Compression = iota
	ZstdCompression
	NoCompression
	unknownCompression
)

type blockInfo struct {
	MaxKey uint64 // maximum (ordered) key in the block
	Offset int64  // block offset position
}

// orderedKey maps signed row keys onto unsigned keys with the same order.
func orderedKey(key int64) uint64 { return uint64(key) ^ (1 << 63) }

func rowKey(key uint64) int64 { return int64(key ^ (1 << 63)) }

// --------------------------------------------------------------------

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)
