package tabdump

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

var errBuilderClosed = errors.New("tabdump: builder is closed")

// BuilderOptions define builder specific options.
type BuilderOptions struct {
	// MinStride is the minimum row stride in bytes. Rows are zero-padded.
	// Default: the widest encoded row.
	MinStride int
}

func (o *BuilderOptions) norm() *BuilderOptions {
	var oo BuilderOptions
	if o != nil {
		oo = *o
	}
	if oo.MinStride < 0 {
		oo.MinStride = 0
	}
	return &oo
}

type rawPool struct {
	tag   int32
	slice []byte
}

// poolBuilder dedupes encoded entries of one pool.
type poolBuilder struct {
	entries [][]byte
	seen    map[string]int32
}

func (p *poolBuilder) add(entry []byte) int32 {
	if p.seen == nil {
		p.seen = make(map[string]int32)
	}
	if i, ok := p.seen[string(entry)]; ok {
		return i
	}
	i := int32(len(p.entries))
	p.entries = append(p.entries, entry)
	p.seen[string(entry)] = i
	return i
}

func (p *poolBuilder) encode() []byte {
	buf := appendInt32(nil, int32(len(p.entries)))
	for _, e := range p.entries {
		buf = append(buf, e...)
	}
	return buf
}

// Builder encodes rows into the binary table format. Pooled values are
// deduplicated. The table is emitted on Close.
type Builder struct {
	w      io.Writer
	o      *BuilderOptions
	schema Schema

	keys  []int64
	rows  [][]byte
	pools [numPoolKinds]poolBuilder
	raw   []rawPool

	closed bool
}

// NewBuilder wraps a writer and returns a Builder.
func NewBuilder(w io.Writer, schema Schema, o *BuilderOptions) *Builder {
	return &Builder{w: w, o: o.norm(), schema: schema}
}

// Append encodes a row. Every schema field must be present in row.
func (b *Builder) Append(key int64, row Row) error {
	if b.closed {
		return errBuilderClosed
	}

	var buf []byte
	for _, f := range b.schema {
		v, ok := row[f.Name]
		if !ok {
			return fmt.Errorf("tabdump: row %d is missing field %q", key, f.Name)
		}

		var err error
		if buf, err = b.appendField(buf, f.Type, v); err != nil {
			return fmt.Errorf("tabdump: row %d field %q: %v", key, f.Name, err)
		}
	}

	b.keys = append(b.keys, key)
	b.rows = append(b.rows, buf)
	return nil
}

// AppendRawPool adds a pre-encoded pool slice, emitted after all
// regular pools. It accepts any tag, including unknown ones.
func (b *Builder) AppendRawPool(tag int32, slice []byte) {
	b.raw = append(b.raw, rawPool{tag: tag, slice: slice})
}

// Close writes the table.
func (b *Builder) Close() error {
	if b.closed {
		return errBuilderClosed
	}
	b.closed = true

	stride := b.o.MinStride
	for _, r := range b.rows {
		if len(r) > stride {
			stride = len(r)
		}
	}

	var pools []rawPool
	for kind := PoolInt32; kind < numPoolKinds; kind++ {
		if p := &b.pools[kind]; len(p.entries) != 0 {
			pools = append(pools, rawPool{tag: int32(kind), slice: p.encode()})
		}
	}
	pools = append(pools, b.raw...)

	dataLen := stride * len(b.rows)
	buf := make([]byte, headerReserved, headerReserved+12+8*len(b.keys)+dataLen)
	buf = appendInt32(buf, int32(len(b.keys)))
	buf = appendInt32(buf, int32(len(pools)))
	buf = appendInt32(buf, int32(dataLen))
	for _, k := range b.keys {
		buf = appendInt64(buf, k)
	}
	for _, r := range b.rows {
		buf = append(buf, r...)
		buf = append(buf, make([]byte, stride-len(r))...)
	}
	for _, p := range pools {
		buf = appendInt32(buf, p.tag)
		buf = appendInt32(buf, int32(len(p.slice)))
		buf = append(buf, p.slice...)
	}

	_, err := b.w.Write(buf)
	return err
}

func (b *Builder) appendField(buf []byte, t FieldType, v interface{}) ([]byte, error) {
	switch t {
	case FieldInt32:
		n, err := toInt64(v)
		return appendInt32(buf, int32(n)), err
	case FieldInt64:
		n, err := toInt64(v)
		return appendInt64(buf, n), err
	case FieldDouble:
		f, err := toFloat64(v)
		return appendFloat64(buf, f), err
	case FieldBool:
		x, ok := v.(bool)
		if !ok {
			return buf, fmt.Errorf("expected bool, got %T", v)
		}
		if x {
			return appendInt32(buf, 1), nil
		}
		return appendInt32(buf, 0), nil
	case FieldString:
		s, ok := v.(string)
		if !ok {
			return buf, fmt.Errorf("expected string, got %T", v)
		}
		return appendString(buf, s), nil
	}

	if !t.IsPooled() {
		return buf, errUnknownFieldType
	}

	entry, err := encodePoolEntry(t, v)
	if err != nil {
		return buf, err
	}
	if entry == nil { // empty map marker
		return appendInt32(buf, -1), nil
	}
	return appendInt32(buf, b.pools[t.Pool()].add(entry)), nil
}

// encodePoolEntry encodes one pool entry. It returns nil for a nil map.
func encodePoolEntry(t FieldType, v interface{}) ([]byte, error) {
	switch t {
	case FieldPooledInt32:
		n, err := toInt64(v)
		return appendInt32(nil, int32(n)), err
	case FieldPooledInt64:
		n, err := toInt64(v)
		return appendInt64(nil, n), err
	case FieldPooledDouble:
		f, err := toFloat64(v)
		return appendFloat64(nil, f), err
	case FieldPooledString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return appendString(nil, s), nil
	case FieldVector2:
		p, ok := v.(r2.Point)
		if !ok {
			return nil, fmt.Errorf("expected r2.Point, got %T", v)
		}
		return appendVector2(nil, p), nil
	case FieldVector3:
		p, ok := v.(r3.Vector)
		if !ok {
			return nil, fmt.Errorf("expected r3.Vector, got %T", v)
		}
		return appendVector3(nil, p), nil
	case FieldIntIntMap:
		m, ok := v.(map[int32]int32)
		if !ok {
			return nil, fmt.Errorf("expected map[int32]int32, got %T", v)
		}
		return encodeMap(m, appendInt32), nil
	case FieldIntNumberMap:
		m, ok := v.(map[int32]float64)
		if !ok {
			return nil, fmt.Errorf("expected map[int32]float64, got %T", v)
		}
		return encodeMap(m, appendFloat64), nil
	case FieldIntVector2Map:
		m, ok := v.(map[int32]r2.Point)
		if !ok {
			return nil, fmt.Errorf("expected map[int32]r2.Point, got %T", v)
		}
		return encodeMap(m, appendVector2), nil
	case FieldIntVector3Map:
		m, ok := v.(map[int32]r3.Vector)
		if !ok {
			return nil, fmt.Errorf("expected map[int32]r3.Vector, got %T", v)
		}
		return encodeMap(m, appendVector3), nil
	}
	return nil, errUnknownFieldType
}

// encodeMap encodes entries sorted by key so equal maps dedupe.
func encodeMap[V any](m map[int32]V, appendValue func([]byte, V) []byte) []byte {
	if m == nil {
		return nil
	}

	keys := make([]int32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	buf := appendInt32(make([]byte, 0, 4+len(m)*8), int32(len(m)))
	for _, k := range keys {
		buf = appendInt32(buf, k)
		buf = appendValue(buf, m[k])
	}
	return buf
}

// --------------------------------------------------------------------

func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func appendInt32(buf []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(buf, uint32(v))
}

func appendInt64(buf []byte, v int64) []byte {
	return binary.LittleEndian.AppendUint64(buf, uint64(v))
}

func appendFloat32(buf []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
}

func appendFloat64(buf []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
}

func appendString(buf []byte, s string) []byte {
	buf = appendInt32(buf, int32(len(s)))
	return append(buf, s...)
}

func appendVector2(buf []byte, p r2.Point) []byte {
	buf = appendFloat32(buf, float32(p.X))
	return appendFloat32(buf, float32(p.Y))
}

func appendVector3(buf []byte, p r3.Vector) []byte {
	buf = appendFloat32(buf, float32(p.X))
	buf = appendFloat32(buf, float32(p.Y))
	return appendFloat32(buf, float32(p.Z))
}
