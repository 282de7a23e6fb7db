package tabdump

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

type poolState uint8

const (
	poolEmpty poolState = iota
	poolReady
	poolFailed
)

// pool is one typed secondary store.
type pool interface {
	Kind() PoolKind
	Len() int
	populate(c *Cursor) error
	state() poolState
	fail()
}

// --------------------------------------------------------------------

type arrayPool[T any] struct {
	kind PoolKind
	read func(*Cursor) (T, error)
	vals []T
	st   poolState
}

func (p *arrayPool[T]) Kind() PoolKind   { return p.kind }
func (p *arrayPool[T]) Len() int         { return len(p.vals) }
func (p *arrayPool[T]) state() poolState { return p.st }
func (p *arrayPool[T]) fail()            { p.vals, p.st = nil, poolFailed }

func (p *arrayPool[T]) populate(c *Cursor) error {
	n, err := c.ReadLength()
	if err != nil {
		return err
	}
	vals := make([]T, 0, capHint(n, c.Remaining()))
	for i := 0; i < n; i++ {
		v, err := p.read(c)
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}
	p.vals, p.st = vals, poolReady
	return nil
}

func (p *arrayPool[T]) at(i int32) (T, error) {
	var zero T
	if p.st != poolReady {
		return zero, ErrPoolUnresolved
	}
	if i < 0 || int(i) >= len(p.vals) {
		return zero, ErrPoolIndex
	}
	return p.vals[i], nil
}

type mapPool[V any] struct {
	kind PoolKind
	read func(*Cursor) (V, error)
	vals []map[int32]V
	st   poolState
}

func (p *mapPool[V]) Kind() PoolKind   { return p.kind }
func (p *mapPool[V]) Len() int         { return len(p.vals) }
func (p *mapPool[V]) state() poolState { return p.st }
func (p *mapPool[V]) fail()            { p.vals, p.st = nil, poolFailed }

func (p *mapPool[V]) populate(c *Cursor) error {
	m, err := c.ReadLength()
	if err != nil {
		return err
	}
	vals := make([]map[int32]V, 0, capHint(m, c.Remaining()))
	for i := 0; i < m; i++ {
		n, err := c.ReadLength()
		if err != nil {
			return err
		}
		entries := make(map[int32]V, capHint(n, c.Remaining()))
		for j := 0; j < n; j++ {
			k, err := c.ReadInt32()
			if err != nil {
				return err
			}
			v, err := p.read(c)
			if err != nil {
				return err
			}
			entries[k] = v
		}
		vals = append(vals, entries)
	}
	p.vals, p.st = vals, poolReady
	return nil
}

// at returns an empty map for a negative index, the "no map" marker,
// whether or not the pool is present.
func (p *mapPool[V]) at(i int32) (map[int32]V, error) {
	if i < 0 {
		return map[int32]V{}, nil
	}
	if p.st != poolReady {
		return nil, ErrPoolUnresolved
	}
	if int(i) >= len(p.vals) {
		return nil, ErrPoolIndex
	}
	return p.vals[i], nil
}

// capHint bounds preallocation by what the remaining bytes could hold.
func capHint(n, remaining int) int {
	if n > remaining {
		return remaining
	}
	return n
}

// --------------------------------------------------------------------

// PoolSet holds the ten typed secondary stores of one table. Each pool is
// populated at most once and is immutable afterwards.
type PoolSet struct {
	ints       arrayPool[int32]
	longs      arrayPool[int64]
	numbers    arrayPool[float64]
	intMaps    mapPool[int32]
	numberMaps mapPool[float64]
	strs       arrayPool[string]
	vec2s      arrayPool[r2.Point]
	vec3s      arrayPool[r3.Vector]
	vec2Maps   mapPool[r2.Point]
	vec3Maps   mapPool[r3.Vector]
}

// NewPoolSet returns an empty pool set.
func NewPoolSet() *PoolSet {
	return &PoolSet{
		ints:       arrayPool[int32]{kind: PoolInt32, read: (*Cursor).ReadInt32},
		longs:      arrayPool[int64]{kind: PoolInt64, read: (*Cursor).ReadInt64},
		numbers:    arrayPool[float64]{kind: PoolNumber, read: (*Cursor).ReadFloat64},
		intMaps:    mapPool[int32]{kind: PoolIntIntMap, read: (*Cursor).ReadInt32},
		numberMaps: mapPool[float64]{kind: PoolIntNumberMap, read: (*Cursor).ReadFloat64},
		strs:       arrayPool[string]{kind: PoolString, read: readString},
		vec2s:      arrayPool[r2.Point]{kind: PoolVector2, read: readVector2},
		vec3s:      arrayPool[r3.Vector]{kind: PoolVector3, read: readVector3},
		vec2Maps:   mapPool[r2.Point]{kind: PoolIntVector2Map, read: readVector2},
		vec3Maps:   mapPool[r3.Vector]{kind: PoolIntVector3Map, read: readVector3},
	}
}

func (s *PoolSet) lookup(kind PoolKind) pool {
	switch kind {
	case PoolInt32:
		return &s.ints
	case PoolInt64:
		return &s.longs
	case PoolNumber:
		return &s.numbers
	case PoolIntIntMap:
		return &s.intMaps
	case PoolIntNumberMap:
		return &s.numberMaps
	case PoolString:
		return &s.strs
	case PoolVector2:
		return &s.vec2s
	case PoolVector3:
		return &s.vec3s
	case PoolIntVector2Map:
		return &s.vec2Maps
	case PoolIntVector3Map:
		return &s.vec3Maps
	}
	return nil
}

// Populate decodes slice into the pool of the given kind. It returns the
// number of trailing bytes the pool did not consume; a non-zero value is a
// soft warning, not an error. Populating PoolUnknown is a no-op that leaves
// the whole slice unconsumed.
func (s *PoolSet) Populate(kind PoolKind, slice []byte) (trailing int, err error) {
	p := s.lookup(kind)
	if p == nil {
		return len(slice), nil
	}
	if p.state() != poolEmpty {
		return 0, &PoolError{Kind: kind, Err: ErrPoolPopulated}
	}

	c := NewCursor(slice)
	if err := p.populate(c); err != nil {
		p.fail()
		return 0, &PoolError{Kind: kind, Err: err}
	}
	return c.Remaining(), nil
}

// Len returns the number of entries in a pool, or 0 if it is not ready.
func (s *PoolSet) Len(kind PoolKind) int {
	if p := s.lookup(kind); p != nil {
		return p.Len()
	}
	return 0
}

// Ready reports whether the pool of the given kind was populated successfully.
func (s *PoolSet) Ready(kind PoolKind) bool {
	p := s.lookup(kind)
	return p != nil && p.state() == poolReady
}

// Int32 resolves an entry of the int32 pool.
func (s *PoolSet) Int32(i int32) (int32, error) { return s.ints.at(i) }

// Int64 resolves an entry of the int64 pool.
func (s *PoolSet) Int64(i int32) (int64, error) { return s.longs.at(i) }

// Number resolves an entry of the number pool.
func (s *PoolSet) Number(i int32) (float64, error) { return s.numbers.at(i) }

// String resolves an entry of the string table.
func (s *PoolSet) String(i int32) (string, error) { return s.strs.at(i) }

// Vector2 resolves an entry of the 2-vector pool.
func (s *PoolSet) Vector2(i int32) (r2.Point, error) { return s.vec2s.at(i) }

// Vector3 resolves an entry of the 3-vector pool.
func (s *PoolSet) Vector3(i int32) (r3.Vector, error) { return s.vec3s.at(i) }

// IntIntMap resolves an entry of the int→int map pool.
func (s *PoolSet) IntIntMap(i int32) (map[int32]int32, error) { return s.intMaps.at(i) }

// IntNumberMap resolves an entry of the int→number map pool.
func (s *PoolSet) IntNumberMap(i int32) (map[int32]float64, error) { return s.numberMaps.at(i) }

// IntVector2Map resolves an entry of the int→2-vector map pool.
func (s *PoolSet) IntVector2Map(i int32) (map[int32]r2.Point, error) { return s.vec2Maps.at(i) }

// IntVector3Map resolves an entry of the int→3-vector map pool.
func (s *PoolSet) IntVector3Map(i int32) (map[int32]r3.Vector, error) { return s.vec3Maps.at(i) }

// --------------------------------------------------------------------

func readString(c *Cursor) (string, error) {
	n, err := c.ReadLength()
	if err != nil {
		return "", err
	}
	p, err := c.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

func readVector2(c *Cursor) (r2.Point, error) {
	x, err := c.ReadFloat32()
	if err != nil {
		return r2.Point{}, err
	}
	y, err := c.ReadFloat32()
	if err != nil {
		return r2.Point{}, err
	}
	return r2.Point{X: float64(x), Y: float64(y)}, nil
}

func readVector3(c *Cursor) (r3.Vector, error) {
	x, err := c.ReadFloat32()
	if err != nil {
		return r3.Vector{}, err
	}
	y, err := c.ReadFloat32()
	if err != nil {
		return r3.Vector{}, err
	}
	z, err := c.ReadFloat32()
	if err != nil {
		return r3.Vector{}, err
	}
	return r3.Vector{X: float64(x), Y: float64(y), Z: float64(z)}, nil
}
