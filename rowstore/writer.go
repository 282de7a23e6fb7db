package rowstore

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/bsm/tabdump"
	"github.com/goccy/go-json"
	"github.com/golang/snappy"
)

// WriterOptions define writer specific options.
type WriterOptions struct {
	// BlockSize is the minimum uncompressed size in bytes of each block.
	// Default: 16KiB.
	BlockSize int

	// RestartInterval is the number of keys between restart points
	// for delta encoding of keys.
	// Default: 16.
	RestartInterval int

	// The compression codec to use.
	// Default: SnappyCompression.
	Compression Compression
}

func (o *WriterOptions) norm() *WriterOptions {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.BlockSize < 1 {
		oo.BlockSize = 16 << 10
	}
	if oo.RestartInterval < 1 {
		oo.RestartInterval = 16
	}
	if !oo.Compression.isValid() {
		oo.Compression = SnappyCompression
	}

	return &oo
}

// Writer writes rows of a single schema in ascending key order.
type Writer struct {
	w      io.Writer
	o      *WriterOptions
	schema tabdump.Schema

	block    blockInfo // the current block info
	nrows    int       // the number of rows written
	blen     int       // the number of entries in the current block
	restarts []int     // restart offsets in the current block

	buf []byte // plain buffer
	cmp []byte // compressed buffer
	tmp []byte // scratch buffer

	index  []blockInfo
	closed bool
}

// NewWriter wraps a writer and returns a Writer.
func NewWriter(w io.Writer, schema tabdump.Schema, o *WriterOptions) *Writer {
	return &Writer{
		w:      w,
		o:      o.norm(),
		schema: schema,
		tmp:    make([]byte, 2*binary.MaxVarintLen64),
	}
}

// Append appends a row. Keys must be strictly ascending.
func (w *Writer) Append(key int64, row tabdump.Row) error {
	if w.closed {
		return errClosed
	}

	okey := orderedKey(key)
	if w.nrows != 0 && okey <= w.block.MaxKey {
		return fmt.Errorf("rowstore: attempted an out-of-order append, %d must be > %d", key, rowKey(w.block.MaxKey))
	}

	value, err := encodeRow(row)
	if err != nil {
		return err
	}

	if len(w.buf) != 0 && len(w.buf)+len(value)+2*binary.MaxVarintLen64 > w.o.BlockSize {
		if err := w.flush(); err != nil {
			return err
		}
	}

	delta := okey
	if w.blen%w.o.RestartInterval == 0 {
		w.restarts = append(w.restarts, len(w.buf))
	} else {
		delta -= w.block.MaxKey
	}

	w.buf = binary.AppendUvarint(w.buf, delta)
	w.buf = binary.AppendUvarint(w.buf, uint64(len(value)))
	w.buf = append(w.buf, value...)

	w.blen++
	w.nrows++
	w.block.MaxKey = okey
	return nil
}

// WriteTable appends all rows of a decoded table in key order.
func (w *Writer) WriteTable(tbl *tabdump.Table) error {
	keys := make([]int64, 0, len(tbl.Rows))
	for key := range tbl.Rows {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		if err := w.Append(key, tbl.Rows[key]); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the remaining rows and writes the trailer sections.
func (w *Writer) Close() error {
	if w.closed {
		return errClosed
	}
	w.closed = true

	if err := w.flush(); err != nil {
		return err
	}

	schemaOffset := w.block.Offset
	meta, err := json.Marshal(w.schema)
	if err != nil {
		return err
	}
	if err := w.writeRaw(meta); err != nil {
		return err
	}

	indexOffset := w.block.Offset
	if err := w.writeIndex(); err != nil {
		return err
	}
	return w.writeFooter(schemaOffset, indexOffset)
}

func (w *Writer) writeIndex() error {
	var prev blockInfo
	var buf []byte

	for i, ent := range w.index {
		key, off := ent.MaxKey, ent.Offset
		if i != 0 {
			key -= prev.MaxKey
			off -= prev.Offset
		}
		prev = ent

		buf = binary.AppendUvarint(buf, key)
		buf = binary.AppendUvarint(buf, uint64(off))
	}
	return w.writeRaw(buf)
}

func (w *Writer) writeFooter(schemaOffset, indexOffset int64) error {
	buf := make([]byte, 0, footerLen)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(schemaOffset))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(indexOffset))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(w.nrows))
	buf = append(buf, magic...)
	return w.writeRaw(buf)
}

func (w *Writer) writeRaw(p []byte) error {
	n, err := w.w.Write(p)
	w.block.Offset += int64(n)
	return err
}

func (w *Writer) flush() error {
	if len(w.buf) == 0 {
		return nil
	}

	for _, o := range w.restarts[1:] {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(o))
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(w.restarts)))

	var block []byte
	switch w.o.Compression {
	case SnappyCompression:
		w.cmp = snappy.Encode(w.cmp[:cap(w.cmp)], w.buf)
		block = w.pick(blockSnappy)
	case ZstdCompression:
		w.cmp = zstdEncoder.EncodeAll(w.buf, w.cmp[:0])
		block = w.pick(blockZstd)
	default:
		block = append(w.buf, blockPlain)
	}

	w.index = append(w.index, w.block)
	w.buf = w.buf[:0]
	w.restarts = w.restarts[:0]
	w.blen = 0

	return w.writeRaw(block)
}

// pick keeps the compressed block only if it saves at least a quarter.
func (w *Writer) pick(codec byte) []byte {
	if len(w.cmp) < len(w.buf)-len(w.buf)/4 {
		return append(w.cmp, codec)
	}
	return append(w.buf, blockPlain)
}
