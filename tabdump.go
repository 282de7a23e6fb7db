package tabdump

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedHeader is returned when the table header is internally
	// inconsistent. It aborts the whole load.
	ErrMalformedHeader = errors.New("tabdump: malformed header")

	// ErrOutOfRange is returned when a read or seek passes the end of the buffer.
	ErrOutOfRange = errors.New("tabdump: out of range")

	// ErrPoolPopulated is returned when a pool is populated twice.
	ErrPoolPopulated = errors.New("tabdump: pool already populated")

	// ErrPoolUnresolved is returned when a field references a pool that was
	// never populated or failed to populate.
	ErrPoolUnresolved = errors.New("tabdump: pool unresolved")

	// ErrPoolIndex is returned when a field references a pool entry that
	// does not exist.
	ErrPoolIndex = errors.New("tabdump: pool index out of range")

	// ErrRowOverrun is returned when decoding a row would cross its stride.
	ErrRowOverrun = errors.New("tabdump: row exceeds stride")
)

var (
	errUnknownFieldType = errors.New("tabdump: unknown field type")
	errNegativeLength   = errors.New("tabdump: negative length")
)

// RowError describes a row that could not be decoded and was omitted.
type RowError struct {
	Key   int64
	Field string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("tabdump: row %d field %q: %v", e.Key, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// PoolError describes a pool that could not be populated.
type PoolError struct {
	Kind PoolKind
	Err  error
}

func (e *PoolError) Error() string {
	return fmt.Sprintf("tabdump: pool %s: %v", e.Kind, e.Err)
}

func (e *PoolError) Unwrap() error { return e.Err }

// --------------------------------------------------------------------

// PoolKind tags a secondary value pool.
type PoolKind int32

// Known pool kinds. Any other tag is treated as PoolUnknown.
const (
	PoolUnknown PoolKind = iota
	PoolInt32
	PoolInt64
	PoolNumber
	PoolIntIntMap
	PoolIntNumberMap
	PoolString
	PoolVector2
	PoolVector3
	PoolIntVector2Map
	PoolIntVector3Map
	numPoolKinds
)

var poolKindNames = [...]string{
	PoolUnknown:       "unknown",
	PoolInt32:         "int32",
	PoolInt64:         "int64",
	PoolNumber:        "number",
	PoolIntIntMap:     "int-int-map",
	PoolIntNumberMap:  "int-number-map",
	PoolString:        "string",
	PoolVector2:       "vector2",
	PoolVector3:       "vector3",
	PoolIntVector2Map: "int-vector2-map",
	PoolIntVector3Map: "int-vector3-map",
}

// ParsePoolKind maps a raw tag to a kind; unrecognised tags map to PoolUnknown.
func ParsePoolKind(tag int32) PoolKind {
	if k := PoolKind(tag); k > PoolUnknown && k < numPoolKinds {
		return k
	}
	return PoolUnknown
}

func (k PoolKind) String() string {
	if k >= 0 && k < numPoolKinds {
		return poolKindNames[k]
	}
	return fmt.Sprintf("PoolKind(%d)", int32(k))
}
