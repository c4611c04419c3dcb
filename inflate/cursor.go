package inflate

import (
	"io"

	"github.com/pkg/errors"
)

// Cursor tracks a bit-granular read position over a byte source.
//
// Bits are consumed from each byte starting at its low-order bit. The cursor
// never holds more than the current partially consumed byte.
type Cursor struct {
	src io.ByteReader

	cur   byte  // current byte, consumed bits already shifted out
	nbits uint  // unread bits left in cur, always in [0, 8)
	pos   int64 // whole bytes pulled from src
}

// lener is implemented by in-memory sources such as *bytes.Reader.
type lener interface {
	Len() int
}

// NewCursor returns a Cursor reading from src.
func NewCursor(src io.ByteReader) *Cursor {
	return &Cursor{src: src}
}

// Offset reports how many bytes have been pulled from the source. A partially
// consumed byte counts as pulled.
func (c *Cursor) Offset() int64 {
	return c.pos
}

// BitOffset reports the number of bits already consumed from the current byte.
func (c *Cursor) BitOffset() uint {
	if c.nbits == 0 {
		return 0
	}
	return 8 - c.nbits
}

func (c *Cursor) nextByte() (byte, error) {
	b, err := c.src.ReadByte()
	if err != nil {
		if err == io.EOF {
			return 0, ErrUnexpectedEOF
		}
		return 0, errors.Wrap(err, "unable to read source")
	}
	c.pos++
	return b, nil
}

// ReadBits returns an n-bit value (n <= 32) assembled least-significant bit
// first.
func (c *Cursor) ReadBits(n uint) (uint32, error) {
	if n > 32 {
		return 0, errors.Errorf("inflate: cannot read %d bits at once", n)
	}

	var v uint32
	var got uint

	for got < n {
		if c.nbits == 0 {
			b, err := c.nextByte()
			if err != nil {
				return 0, err
			}
			c.cur = b
			c.nbits = 8
		}

		take := n - got
		if take > c.nbits {
			take = c.nbits
		}

		v |= uint32(c.cur&(1<<take-1)) << got
		c.cur >>= take
		c.nbits -= take
		got += take
	}

	return v, nil
}

// ReadBit reads a single bit.
func (c *Cursor) ReadBit() (uint32, error) {
	return c.ReadBits(1)
}

// AlignToByte discards the unread bits of a partially consumed byte.
func (c *Cursor) AlignToByte() {
	c.cur = 0
	c.nbits = 0
}

// ReadByte aligns the cursor and returns the next whole byte.
func (c *Cursor) ReadByte() (byte, error) {
	c.AlignToByte()
	return c.nextByte()
}

// ReadFull aligns the cursor and fills p with whole bytes.
func (c *Cursor) ReadFull(p []byte) error {
	c.AlignToByte()

	for i := range p {
		b, err := c.nextByte()
		if err != nil {
			return err
		}
		p[i] = b
	}

	return nil
}

// BytesRemaining reports the number of whole bytes left after alignment. The
// second return value is false when the source cannot tell (streamed input).
func (c *Cursor) BytesRemaining() (int, bool) {
	l, ok := c.src.(lener)
	if !ok {
		return 0, false
	}
	return l.Len(), true
}
