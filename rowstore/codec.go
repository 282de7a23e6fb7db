package rowstore

import (
	"fmt"
	"strconv"

	"github.com/bsm/tabdump"
	"github.com/goccy/go-json"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

type valueDecoder func([]byte) (interface{}, error)

func decodeAs[T any](data []byte) (interface{}, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var valueDecoders = map[tabdump.FieldType]valueDecoder{
	tabdump.FieldInt32:         decodeAs[int32],
	tabdump.FieldInt64:         decodeAs[int64],
	tabdump.FieldDouble:        decodeNumber,
	tabdump.FieldBool:          decodeAs[bool],
	tabdump.FieldString:        decodeAs[string],
	tabdump.FieldPooledInt32:   decodeAs[int32],
	tabdump.FieldPooledInt64:   decodeAs[int64],
	tabdump.FieldPooledDouble:  decodeNumber,
	tabdump.FieldPooledString:  decodeAs[string],
	tabdump.FieldVector2:       decodeVia(vector2.point),
	tabdump.FieldVector3:       decodeVia(vector3.vector),
	tabdump.FieldIntIntMap:     decodeAs[map[int32]int32],
	tabdump.FieldIntNumberMap:  decodeMap(number.float),
	tabdump.FieldIntVector2Map: decodeMap(vector2.point),
	tabdump.FieldIntVector3Map: decodeMap(vector3.vector),
}

func decodeNumber(data []byte) (interface{}, error) {
	var n number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return float64(n), nil
}

func decodeVia[T, V any](conv func(T) V) valueDecoder {
	return func(data []byte) (interface{}, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return conv(v), nil
	}
}

func decodeMap[T, V any](conv func(T) V) valueDecoder {
	return func(data []byte) (interface{}, error) {
		var m map[int32]T
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		out := make(map[int32]V, len(m))
		for k, v := range m {
			out[k] = conv(v)
		}
		return out, nil
	}
}

// number is a float64 that also accepts the "NaN", "+Inf" and "-Inf"
// strings written for non-finite values.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	if len(data) != 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = number(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = number(f)
	return nil
}

func (n number) float() float64 { return float64(n) }

type vector2 struct{ X, Y number }

func (v vector2) point() r2.Point { return r2.Point{X: float64(v.X), Y: float64(v.Y)} }

type vector3 struct{ X, Y, Z number }

func (v vector3) vector() r3.Vector {
	return r3.Vector{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

func encodeRow(row tabdump.Row) ([]byte, error) {
	return json.Marshal(row.JSONSafe())
}

// decodeRow restores typed values for every schema field present in data.
// Unknown fields are kept as generic JSON values.
func decodeRow(data []byte, schema tabdump.Schema) (tabdump.Row, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	row := make(tabdump.Row, len(raw))
	for _, f := range schema {
		msg, ok := raw[f.Name]
		if !ok {
			continue
		}
		delete(raw, f.Name)

		dec, ok := valueDecoders[f.Type]
		if !ok {
			return nil, fmt.Errorf("rowstore: field %q has invalid type", f.Name)
		}
		v, err := dec(msg)
		if err != nil {
			return nil, fmt.Errorf("rowstore: field %q: %w", f.Name, err)
		}
		row[f.Name] = v
	}

	for name, msg := range raw {
		var v interface{}
		if err := json.Unmarshal(msg, &v); err != nil {
			return nil, err
		}
		row[name] = v
	}
	return row, nil
}
