package rowstore

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"
	"sync"

	"github.com/bsm/tabdump"
	"github.com/goccy/go-json"
	"github.com/golang/snappy"
)

// Reader provides point lookups and ordered iteration over a store file.
type Reader struct {
	r io.ReaderAt

	schema    tabdump.Schema
	nrows     int
	index     []blockInfo
	maxOffset int64 // end of the last block
}

// NewReader opens a reader.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	if size < footerLen {
		return nil, errBadMagic
	}

	footer := make([]byte, footerLen)
	if _, err := r.ReadAt(footer, size-footerLen); err != nil {
		return nil, err
	}
	if !bytes.Equal(footer[20:], magic) {
		return nil, errBadMagic
	}

	schemaOffset := int64(binary.LittleEndian.Uint64(footer[0:]))
	indexOffset := int64(binary.LittleEndian.Uint64(footer[8:]))
	nrows := int(binary.LittleEndian.Uint32(footer[16:]))
	if schemaOffset < 0 || schemaOffset > indexOffset || indexOffset > size-footerLen {
		return nil, errBadIndex
	}

	meta := make([]byte, indexOffset-schemaOffset)
	if _, err := r.ReadAt(meta, schemaOffset); err != nil {
		return nil, err
	}
	var schema tabdump.Schema
	if err := json.Unmarshal(meta, &schema); err != nil {
		return nil, err
	}

	raw := make([]byte, size-footerLen-indexOffset)
	if _, err := r.ReadAt(raw, indexOffset); err != nil {
		return nil, err
	}
	index, err := parseIndex(raw)
	if err != nil {
		return nil, err
	}

	return &Reader{
		r:         r,
		schema:    schema,
		nrows:     nrows,
		index:     index,
		maxOffset: schemaOffset,
	}, nil
}

func parseIndex(raw []byte) ([]blockInfo, error) {
	var index []blockInfo
	var info blockInfo

	for len(raw) != 0 {
		u1, n := binary.Uvarint(raw)
		if n <= 0 {
			return nil, errBadIndex
		}
		raw = raw[n:]

		u2, n := binary.Uvarint(raw)
		if n <= 0 {
			return nil, errBadIndex
		}
		raw = raw[n:]

		info.MaxKey += u1
		info.Offset += int64(u2)
		index = append(index, info)
	}
	return index, nil
}

// Schema returns the schema rows were written with.
func (r *Reader) Schema() tabdump.Schema { return r.schema }

// Len returns the number of stored rows.
func (r *Reader) Len() int { return r.nrows }

// NumBlocks returns the number of stored blocks.
func (r *Reader) NumBlocks() int { return len(r.index) }

// GetRaw returns the encoded row for a key.
// It may return an ErrNotFound error.
func (r *Reader) GetRaw(key int64) ([]byte, error) {
	iter, err := r.Seek(key)
	if err != nil {
		return nil, err
	}
	defer iter.Release()

	if !iter.Next() || iter.Key() != key {
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return append([]byte(nil), iter.Value()...), nil
}

// Get returns the decoded row for a key.
// It may return an ErrNotFound error.
func (r *Reader) Get(key int64) (tabdump.Row, error) {
	raw, err := r.GetRaw(key)
	if err != nil {
		return nil, err
	}
	return decodeRow(raw, r.schema)
}

// Seek returns an iterator positioned before the first key >= key.
func (r *Reader) Seek(key int64) (*Iterator, error) {
	okey := orderedKey(key)
	bpos := sort.Search(len(r.index), func(i int) bool {
		return r.index[i].MaxKey >= okey
	})

	b, err := r.loadBlock(bpos)
	if err != nil {
		return nil, err
	}

	s := b.span(b.seekRestart(okey))
	s.seek(okey)
	return &Iterator{r: r, b: b, s: s}, nil
}

// loadBlock reads the block at bpos. Positions past the end yield an
// exhausted block.
func (r *Reader) loadBlock(bpos int) (*block, error) {
	if bpos >= len(r.index) {
		return &block{pos: len(r.index)}, nil
	}

	start := r.index[bpos].Offset
	end := r.maxOffset
	if next := bpos + 1; next < len(r.index) {
		end = r.index[next].Offset
	}
	if end-start < 5 {
		return nil, errBadIndex
	}

	raw := fetchBuffer(int(end - start))
	if _, err := r.r.ReadAt(raw, start); err != nil {
		releaseBuffer(raw)
		return nil, err
	}

	var data []byte
	codec, payload := raw[len(raw)-1], raw[:len(raw)-1]
	switch codec {
	case blockPlain:
		data = payload
	case blockSnappy:
		defer releaseBuffer(raw)

		sz, err := snappy.DecodedLen(payload)
		if err != nil {
			return nil, err
		}
		plain := fetchBuffer(sz)
		if data, err = snappy.Decode(plain, payload); err != nil {
			releaseBuffer(plain)
			return nil, err
		}
	case blockZstd:
		defer releaseBuffer(raw)

		var err error
		if data, err = zstdDecoder.DecodeAll(payload, fetchBuffer(0)); err != nil {
			return nil, err
		}
	default:
		releaseBuffer(raw)
		return nil, errBadCompression
	}

	if len(data) < 4 {
		releaseBuffer(data)
		return nil, errBadIndex
	}
	return &block{
		data:     data,
		pos:      bpos,
		restarts: int(binary.LittleEndian.Uint32(data[len(data)-4:])),
		maxKey:   r.index[bpos].MaxKey,
	}, nil
}

// --------------------------------------------------------------------

// block is a single decompressed block.
type block struct {
	data     []byte
	pos      int // position within the index
	restarts int // number of restart points
	maxKey   uint64
}

func (b *block) release() { releaseBuffer(b.data) }

// restartOffset returns the starting offset of the i-th restart span.
func (b *block) restartOffset(i int) int {
	trailer := len(b.data) - b.restarts*4
	switch {
	case i < 1:
		return 0
	case i >= b.restarts:
		return trailer
	default:
		return int(binary.LittleEndian.Uint32(b.data[trailer+(i-1)*4:]))
	}
}

// seekRestart returns the last restart span starting at or before key.
func (b *block) seekRestart(key uint64) int {
	if key > b.maxKey {
		return b.restarts
	}

	i := sort.Search(b.restarts, func(i int) bool {
		first, _ := binary.Uvarint(b.data[b.restartOffset(i):])
		return first > key
	}) - 1
	if i < 0 {
		i = 0
	}
	return i
}

func (b *block) span(i int) *span {
	if i >= b.restarts {
		return &span{pos: b.restarts}
	}
	return &span{data: b.data[b.restartOffset(i):b.restartOffset(i+1)], pos: i}
}

// span iterates the entries between two restart points.
type span struct {
	data []byte
	pos  int
	read int

	key uint64
	val []byte
}

func (s *span) more() bool { return s.read < len(s.data) }

// seek positions the span before the first key >= key.
func (s *span) seek(key uint64) {
	for s.more() {
		inc, n := binary.Uvarint(s.data[s.read:])
		if s.key+inc >= key {
			return
		}
		s.read += n
		s.key += inc
		s.skipValue()
	}
}

func (s *span) next() bool {
	if !s.more() {
		return false
	}

	inc, n := binary.Uvarint(s.data[s.read:])
	s.read += n
	s.key += inc
	return s.skipValue()
}

func (s *span) skipValue() bool {
	vln, n := binary.Uvarint(s.data[s.read:])
	if n <= 0 || s.read+n+int(vln) > len(s.data) {
		s.read = len(s.data)
		return false
	}
	s.read += n
	s.val = s.data[s.read : s.read+int(vln)]
	s.read += int(vln)
	return true
}

// --------------------------------------------------------------------

// Iterator iterates forward over rows across block boundaries.
type Iterator struct {
	r *Reader
	b *block
	s *span

	err error
}

// Key returns the key of the current row.
func (i *Iterator) Key() int64 { return rowKey(i.s.key) }

// Value returns the encoded current row. Values are temporary buffers and
// must be copied if used beyond the next cursor move.
func (i *Iterator) Value() []byte { return i.s.val }

// Row decodes the current row.
func (i *Iterator) Row() (tabdump.Row, error) { return decodeRow(i.s.val, i.r.schema) }

// Next advances the cursor to the next row and returns true if successful.
func (i *Iterator) Next() bool {
	for i.err == nil {
		if i.s.next() {
			return true
		}

		if n := i.s.pos + 1; n < i.b.restarts {
			i.s = i.b.span(n)
			continue
		}

		n := i.b.pos + 1
		if n >= i.r.NumBlocks() {
			return false
		}

		i.b.release()
		if i.b, i.err = i.r.loadBlock(n); i.err != nil {
			i.b = &block{pos: i.r.NumBlocks()}
			return false
		}
		i.s = i.b.span(0)
	}
	return false
}

// Err exposes iterator errors, if any.
func (i *Iterator) Err() error {
	if i.err == errReleased {
		return nil
	}
	return i.err
}

// Release releases the iterator and frees up resources. The iterator must
// not be used after this method is called.
func (i *Iterator) Release() {
	i.b.release()
	i.b = &block{pos: i.r.NumBlocks()}
	i.s = &span{}
	i.err = errReleased
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p)
	}
}
