package tabdump

// Row maps field names to decoded values. Values are one of int32, int64,
// float64, bool, string, r2.Point, r3.Vector, map[int32]int32,
// map[int32]float64, map[int32]r2.Point or map[int32]r3.Vector.
type Row map[string]interface{}

// decodeField reads a single field from the row cursor, resolving pooled
// values against pools.
func decodeField(c *Cursor, t FieldType, pools *PoolSet) (interface{}, error) {
	switch t {
	case FieldInt32:
		return c.ReadInt32()
	case FieldInt64:
		return c.ReadInt64()
	case FieldDouble:
		return c.ReadFloat64()
	case FieldBool:
		v, err := c.ReadInt32()
		return v != 0, err
	case FieldString:
		return readString(c)
	}

	if !t.IsPooled() {
		return nil, errUnknownFieldType
	}

	idx, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}

	switch t {
	case FieldPooledInt32:
		return pools.Int32(idx)
	case FieldPooledInt64:
		return pools.Int64(idx)
	case FieldPooledDouble:
		return pools.Number(idx)
	case FieldPooledString:
		return pools.String(idx)
	case FieldVector2:
		return pools.Vector2(idx)
	case FieldVector3:
		return pools.Vector3(idx)
	case FieldIntIntMap:
		return pools.IntIntMap(idx)
	case FieldIntNumberMap:
		return pools.IntNumberMap(idx)
	case FieldIntVector2Map:
		return pools.IntVector2Map(idx)
	default: // FieldIntVector3Map
		return pools.IntVector3Map(idx)
	}
}

// decodeRow decodes all fields of one row frame.
func decodeRow(key int64, frame *Cursor, schema Schema, pools *PoolSet) (Row, error) {
	row := make(Row, len(schema))
	for _, f := range schema {
		v, err := decodeField(frame, f.Type, pools)
		if err == ErrOutOfRange {
			err = ErrRowOverrun
		}
		if err != nil {
			return nil, &RowError{Key: key, Field: f.Name, Err: err}
		}
		row[f.Name] = v
	}
	return row, nil
}
