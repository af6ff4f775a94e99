package vols

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Cursor reads little-endian values sequentially from a byte slice.
// Every read is bounds-checked and fails with io.ErrUnexpectedEOF
// instead of panicking.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor returns a cursor positioned at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int { return c.pos }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, io.ErrUnexpectedEOF
	}
	b := c.data[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b, nil
}

// Uint8 reads one byte.
func (c *Cursor) Uint8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a little-endian uint16.
func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32 reads a little-endian uint32.
func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Float32 reads a little-endian IEEE 754 float.
func (c *Cursor) Float32() (float32, error) {
	v, err := c.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Bytes returns the next n bytes without copying.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	return c.take(n)
}

// String8 reads a string prefixed by a one-byte length.
func (c *Cursor) String8() (string, error) {
	n, err := c.Uint8()
	if err != nil {
		return "", err
	}
	b, err := c.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Sized reads a uint32 length prefix and returns the span of the payload
// that follows it. The payload is skipped.
func (c *Cursor) Sized() (span, error) {
	n, err := c.Uint32()
	if err != nil {
		return span{}, err
	}
	if int64(n) > int64(c.Remaining()) {
		return span{}, fmt.Errorf("field of %d bytes exceeds %d remaining", n, c.Remaining())
	}
	s := span{off: c.pos, len: int(n), ok: true}
	c.pos += int(n)
	return s, nil
}

// span locates one field inside a frame body buffer.
type span struct {
	off int
	len int
	ok  bool
}

// encoder appends little-endian values to a byte slice.
type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u16(v uint16) { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }
func (e *encoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) f32(v float32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(v))
}
func (e *encoder) raw(b []byte) { e.buf = append(e.buf, b...) }

func (e *encoder) string8(s string) error {
	if len(s) > math.MaxUint8 {
		return fmt.Errorf("string %q longer than %d bytes", s, math.MaxUint8)
	}
	e.u8(uint8(len(s)))
	e.buf = append(e.buf, s...)
	return nil
}

// sized writes a uint32 length prefix followed by b.
func (e *encoder) sized(b []byte) {
	e.u32(uint32(len(b)))
	e.raw(b)
}
