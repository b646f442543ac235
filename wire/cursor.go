package wire

import "encoding/binary"

// Cursor walks a byte slice, checking the remaining length on every
// read and write.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor positioned at the start of b.
func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Offset returns the number of bytes consumed or written so far.
func (c *Cursor) Offset() int { return c.off }

// Remaining returns the number of bytes left after the current offset.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

// Bytes returns the bytes written so far.
func (c *Cursor) Bytes() []byte { return c.buf[:c.off] }

func (c *Cursor) need(n int) error {
	if n < 0 || c.Remaining() < n {
		return ErrShortBuffer
	}
	return nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.off += n
	return nil
}

// ReadUint8 reads one byte.
func (c *Cursor) ReadUint8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

// PeekUint8 returns the next byte without consuming it.
func (c *Cursor) PeekUint8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	return c.buf[c.off], nil
}

// ReadUint16 reads a big-endian 16-bit value.
func (c *Cursor) ReadUint16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

// ReadUint32 reads a big-endian 32-bit value.
func (c *Cursor) ReadUint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

// ReadBytes returns the next n bytes. The returned slice aliases the
// underlying buffer.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.buf[c.off : c.off+n]
	c.off += n
	return v, nil
}

// WriteUint8 writes one byte.
func (c *Cursor) WriteUint8(v uint8) error {
	if err := c.need(1); err != nil {
		return err
	}
	c.buf[c.off] = v
	c.off++
	return nil
}

// WriteUint16 writes v big-endian.
func (c *Cursor) WriteUint16(v uint16) error {
	if err := c.need(2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(c.buf[c.off:], v)
	c.off += 2
	return nil
}

// WriteUint32 writes v big-endian.
func (c *Cursor) WriteUint32(v uint32) error {
	if err := c.need(4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(c.buf[c.off:], v)
	c.off += 4
	return nil
}

// WriteBytes copies p into the buffer.
func (c *Cursor) WriteBytes(p []byte) error {
	if err := c.need(len(p)); err != nil {
		return err
	}
	c.off += copy(c.buf[c.off:], p)
	return nil
}
