package tabdump

import (
	"math"
	"strconv"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// JSONSafe returns a row that encodes as JSON. Non-finite floats, which
// JSON numbers cannot carry, are replaced by the strings "NaN", "+Inf"
// and "-Inf"; vectors and maps holding them become generic objects.
// Rows without non-finite values are returned as is.
func (r Row) JSONSafe() Row {
	var out Row
	for name, v := range r {
		sv, ok := jsonSafe(v)
		if !ok {
			continue
		}
		if out == nil {
			out = make(Row, len(r))
			for k, v := range r {
				out[k] = v
			}
		}
		out[name] = sv
	}
	if out == nil {
		return r
	}
	return out
}

// JSONSafeValue is the single-value form of Row.JSONSafe.
func JSONSafeValue(v interface{}) interface{} {
	sv, _ := jsonSafe(v)
	return sv
}

// jsonSafe returns the replacement for v and true if v holds a non-finite float.
func jsonSafe(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return formatNonFinite(x), true
		}
	case float32:
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return formatNonFinite(f), true
		}
	case r2.Point:
		xv, xok := jsonSafe(x.X)
		yv, yok := jsonSafe(x.Y)
		if xok || yok {
			return map[string]interface{}{"X": xv, "Y": yv}, true
		}
	case r3.Vector:
		xv, xok := jsonSafe(x.X)
		yv, yok := jsonSafe(x.Y)
		zv, zok := jsonSafe(x.Z)
		if xok || yok || zok {
			return map[string]interface{}{"X": xv, "Y": yv, "Z": zv}, true
		}
	case map[int32]float64:
		return jsonSafeMap(x)
	case map[int32]r2.Point:
		return jsonSafeMap(x)
	case map[int32]r3.Vector:
		return jsonSafeMap(x)
	}
	return v, false
}

func jsonSafeMap[V any](m map[int32]V) (interface{}, bool) {
	changed := false
	out := make(map[int32]interface{}, len(m))
	for k, v := range m {
		sv, ok := jsonSafe(v)
		out[k] = sv
		changed = changed || ok
	}
	if !changed {
		return m, false
	}
	return out, true
}

func formatNonFinite(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
