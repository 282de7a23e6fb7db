package tabdump

import (
	"fmt"
	"strings"
)

// FieldType declares how a single row field is encoded.
type FieldType uint8

// Supported field types. Inline types are read from the row itself,
// all others are stored as an int32 index into a pool.
const (
	FieldInvalid FieldType = iota
	FieldInt32
	FieldInt64
	FieldDouble
	FieldBool
	FieldString
	FieldPooledInt32
	FieldPooledInt64
	FieldPooledDouble
	FieldPooledString
	FieldVector2
	FieldVector3
	FieldIntIntMap
	FieldIntNumberMap
	FieldIntVector2Map
	FieldIntVector3Map
	numFieldTypes
)

var fieldTypeNames = [...]string{
	FieldInvalid:       "invalid",
	FieldInt32:         "int32",
	FieldInt64:         "int64",
	FieldDouble:        "double",
	FieldBool:          "bool",
	FieldString:        "string",
	FieldPooledInt32:   "pool_int32",
	FieldPooledInt64:   "pool_int64",
	FieldPooledDouble:  "pool_double",
	FieldPooledString:  "pool_string",
	FieldVector2:       "vector2",
	FieldVector3:       "vector3",
	FieldIntIntMap:     "map_int_int",
	FieldIntNumberMap:  "map_int_number",
	FieldIntVector2Map: "map_int_vector2",
	FieldIntVector3Map: "map_int_vector3",
}

var fieldTypePools = [...]PoolKind{
	FieldPooledInt32:   PoolInt32,
	FieldPooledInt64:   PoolInt64,
	FieldPooledDouble:  PoolNumber,
	FieldPooledString:  PoolString,
	FieldVector2:       PoolVector2,
	FieldVector3:       PoolVector3,
	FieldIntIntMap:     PoolIntIntMap,
	FieldIntNumberMap:  PoolIntNumberMap,
	FieldIntVector2Map: PoolIntVector2Map,
	FieldIntVector3Map: PoolIntVector3Map,
}

// ParseFieldType parses a type name as used in schema files.
func ParseFieldType(s string) (FieldType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t := FieldInt32; t < numFieldTypes; t++ {
		if fieldTypeNames[t] == s {
			return t, nil
		}
	}
	return FieldInvalid, fmt.Errorf("tabdump: unknown field type %q", s)
}

func (t FieldType) String() string {
	if t < numFieldTypes {
		return fieldTypeNames[t]
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// IsValid returns true for declared types.
func (t FieldType) IsValid() bool { return t > FieldInvalid && t < numFieldTypes }

// Pool returns the pool backing a pooled type, or PoolUnknown for inline types.
func (t FieldType) Pool() PoolKind {
	if int(t) < len(fieldTypePools) {
		return fieldTypePools[t]
	}
	return PoolUnknown
}

// IsPooled returns true if values are stored as pool indices.
func (t FieldType) IsPooled() bool { return t.Pool() != PoolUnknown }

// MarshalText implements encoding.TextMarshaler.
func (t FieldType) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, errUnknownFieldType
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(text []byte) error {
	v, err := ParseFieldType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// --------------------------------------------------------------------

// Field is a single named column.
type Field struct {
	Name string    `toml:"name" json:"name"`
	Type FieldType `toml:"type" json:"type"`
}

// Schema is the ordered field list of one table kind.
type Schema []Field

// Validate checks for empty or duplicate names and invalid types.
func (s Schema) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for i, f := range s {
		if f.Name == "" {
			return fmt.Errorf("tabdump: field #%d has no name", i)
		}
		if !f.Type.IsValid() {
			return fmt.Errorf("tabdump: field %q has invalid type", f.Name)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("tabdump: duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}
