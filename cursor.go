package tabdump

import (
	"encoding/binary"
	"math"
)

// Cursor is a bounds-checked little-endian reader over an immutable buffer.
// It never copies; slices returned by ReadBytes alias the buffer.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps a buffer.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Len returns the total buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Pos returns the current offset.
func (c *Cursor) Pos() int { return c.pos }

// Remaining returns the number of unread bytes after the current offset.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Seek moves the cursor to an absolute offset. Seeking to exactly
// Len() is allowed, anything beyond is ErrOutOfRange.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.buf) {
		return ErrOutOfRange
	}
	c.pos = pos
	return nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	if n < 0 {
		return errNegativeLength
	}
	return c.Seek(c.pos + n)
}

// ReadBytes returns the next n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errNegativeLength
	}
	if n > c.Remaining() {
		return nil, ErrOutOfRange
	}
	p := c.buf[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return p, nil
}

// ReadUint32 reads a little-endian uint32.
func (c *Cursor) ReadUint32() (uint32, error) {
	p, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// ReadInt32 reads a little-endian int32.
func (c *Cursor) ReadInt32() (int32, error) {
	u, err := c.ReadUint32()
	return int32(u), err
}

// ReadInt64 reads a little-endian int64.
func (c *Cursor) ReadInt64() (int64, error) {
	p, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(p)), nil
}

// ReadFloat32 reads a little-endian IEEE-754 float32.
func (c *Cursor) ReadFloat32() (float32, error) {
	u, err := c.ReadUint32()
	return math.Float32frombits(u), err
}

// ReadFloat64 reads a little-endian IEEE-754 float64.
func (c *Cursor) ReadFloat64() (float64, error) {
	p, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(p)), nil
}

// ReadLength reads an int32 length prefix and rejects negative values.
func (c *Cursor) ReadLength() (int, error) {
	n, err := c.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errNegativeLength
	}
	return int(n), nil
}

// Frame returns a cursor restricted to the next n bytes and advances past them.
func (c *Cursor) Frame(n int) (*Cursor, error) {
	p, err := c.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return NewCursor(p), nil
}
