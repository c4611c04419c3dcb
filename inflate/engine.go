// Package inflate implements a DEFLATE (RFC 1951) decoder.
//
// The decoder is synchronous and pull-based: an Engine pulls bits through a
// Cursor, resolves literals and back-references into a 32 KiB Window, and the
// Window pushes produced bytes into an io.Writer sink.
//
//	c := inflate.NewCursor(bufio.NewReader(r))
//	e := inflate.NewEngine(c, w)
//	if err := e.Run(ctx); err != nil {
//		return err
//	}
package inflate

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type state int

const (
	stateHeader state = iota
	stateStored
	stateFixed
	stateDynamic
	stateBody
	stateDone
)

// BlockInfo describes a block decoded by Step.
type BlockInfo struct {
	Type  BlockType
	Final bool
	Bytes int64 // uncompressed bytes produced by the block
}

// Engine decodes one DEFLATE stream. It is not safe for concurrent use.
type Engine struct {
	cur *Cursor
	win *Window
	log *logrus.Entry

	state state
	err   error
	final bool
	btype BlockType

	// Tables used by the current Huffman block.
	lit, dist *Table

	// Scratch space for dynamic blocks, reused between blocks.
	dynLit, dynDist, dynCodeLen Table
	lengths                     [maxNumLit + maxNumDist]uint8
}

// NewEngine returns an Engine reading from c and writing to sink.
func NewEngine(c *Cursor, sink io.Writer) *Engine {
	return &Engine{
		cur: c,
		win: NewWindow(sink),
		log: logrus.WithField("pkg", "inflate"),
	}
}

// Reset prepares the engine for a new stream on the same cursor.
func (e *Engine) Reset(sink io.Writer) {
	e.win.Reset(sink)
	e.state = stateHeader
	e.err = nil
	e.final = false
	e.lit, e.dist = nil, nil
}

// Done reports whether the final block has been decoded.
func (e *Engine) Done() bool {
	return e.state == stateDone
}

// Total reports the number of bytes produced so far.
func (e *Engine) Total() int64 {
	return e.win.Total()
}

// Run decodes blocks until the final block has been decoded. ctx is checked
// between blocks.
func (e *Engine) Run(ctx context.Context) error {
	for !e.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := e.Step(); err != nil {
			return err
		}
	}

	return nil
}

// Step decodes exactly one block. Every byte produced before a failure is
// flushed to the sink before Step returns. Failures are sticky.
func (e *Engine) Step() (BlockInfo, error) {
	if e.err != nil {
		return BlockInfo{}, e.err
	}

	if e.Done() {
		return BlockInfo{}, io.EOF
	}

	start := e.win.Total()

	err := e.step()
	if ferr := e.win.Flush(); err == nil {
		err = ferr
	}

	e.err = err

	info := BlockInfo{
		Type:  e.btype,
		Final: e.final,
		Bytes: e.win.Total() - start,
	}

	return info, err
}

func (e *Engine) step() error {
	for {
		var err error

		switch e.state {
		case stateHeader:
			err = e.readBlockHeader()
		case stateStored:
			err = e.readStored()
		case stateFixed:
			e.lit, e.dist = fixedLit, fixedDist
			e.state = stateBody
		case stateDynamic:
			err = e.readDynamicTables()
		case stateBody:
			err = e.readBody()
		case stateDone:
			return nil
		}

		if err != nil {
			return err
		}

		// A block is complete once we are back at a header (or done).
		if e.state == stateHeader || e.state == stateDone {
			return nil
		}
	}
}

func (e *Engine) endBlock() {
	if e.final {
		e.state = stateDone
	} else {
		e.state = stateHeader
	}
}

func (e *Engine) readBlockHeader() error {
	v, err := e.cur.ReadBits(3)
	if err != nil {
		return err
	}

	e.final = v&1 == 1
	e.btype = BlockType(v >> 1)

	e.log.WithFields(logrus.Fields{
		"method": "readBlockHeader",
		"final":  e.final,
		"type":   e.btype.String(),
		"offset": e.cur.Offset(),
	}).Debug("block header")

	switch e.btype {
	case BlockStored:
		e.state = stateStored
	case BlockFixed:
		e.state = stateFixed
	case BlockDynamic:
		e.state = stateDynamic
	default:
		return corruptf("reserved block type %d", e.btype)
	}

	return nil
}

func (e *Engine) readStored() error {
	var hdr [4]byte
	if err := e.cur.ReadFull(hdr[:]); err != nil {
		return err
	}

	n := uint16(hdr[0]) | uint16(hdr[1])<<8
	nn := uint16(hdr[2]) | uint16(hdr[3])<<8
	if n != ^nn {
		return corruptf("stored block LEN %#04x does not match NLEN %#04x", n, nn)
	}

	if left, ok := e.cur.BytesRemaining(); ok && left < int(n) {
		return errors.Wrapf(ErrUnexpectedEOF, "stored block needs %d bytes, %d left", n, left)
	}

	for i := 0; i < int(n); i++ {
		b, err := e.cur.ReadByte()
		if err != nil {
			return err
		}
		if err := e.win.Append(b); err != nil {
			return err
		}
	}

	e.endBlock()

	return nil
}

func (e *Engine) readDynamicTables() error {
	v, err := e.cur.ReadBits(14)
	if err != nil {
		return err
	}

	nlit := int(v&0x1f) + 257
	ndist := int(v>>5&0x1f) + 1
	nclen := int(v>>10&0xf) + 4

	if nlit > 286 {
		return corruptf("HLIT %d exceeds 286 literal/length codes", nlit)
	}

	if ndist > maxNumDist {
		return corruptf("HDIST %d exceeds %d distance codes", ndist, maxNumDist)
	}

	var clens [numCodeLenSyms]uint8
	for i := 0; i < nclen; i++ {
		l, err := e.cur.ReadBits(3)
		if err != nil {
			return err
		}
		clens[codeLenOrder[i]] = uint8(l)
	}

	if err := e.dynCodeLen.init(clens[:]); err != nil {
		return errors.Wrap(err, "code length table")
	}

	if !e.dynCodeLen.Complete() {
		return corruptf("incomplete code length table")
	}

	lengths := e.lengths[:nlit+ndist]
	for i := 0; i < len(lengths); {
		sym, err := e.dynCodeLen.Decode(e.cur)
		if err != nil {
			return err
		}

		if sym < codeRepeatPrev {
			lengths[i] = uint8(sym)
			i++
			continue
		}

		var rep int
		var val uint8

		switch sym {
		case codeRepeatPrev:
			if i == 0 {
				return corruptf("repeat code with no previous length")
			}
			val = lengths[i-1]
			x, err := e.cur.ReadBits(2)
			if err != nil {
				return err
			}
			rep = 3 + int(x)
		case codeRepeatZero:
			x, err := e.cur.ReadBits(3)
			if err != nil {
				return err
			}
			rep = 3 + int(x)
		case codeRepeatZero11:
			x, err := e.cur.ReadBits(7)
			if err != nil {
				return err
			}
			rep = 11 + int(x)
		default:
			return corruptf("invalid code length symbol %d", sym)
		}

		if i+rep > len(lengths) {
			return corruptf("repeat of %d overflows %d code lengths", rep, len(lengths))
		}

		for ; rep > 0; rep-- {
			lengths[i] = val
			i++
		}
	}

	if lengths[endOfBlock] == 0 {
		return corruptf("missing end-of-block code")
	}

	if err := e.dynLit.init(lengths[:nlit]); err != nil {
		return errors.Wrap(err, "literal/length table")
	}

	if err := e.dynDist.init(lengths[nlit:]); err != nil {
		return errors.Wrap(err, "distance table")
	}

	e.lit, e.dist = &e.dynLit, &e.dynDist
	e.state = stateBody

	return nil
}

func (e *Engine) readBody() error {
	for {
		sym, err := e.lit.Decode(e.cur)
		if err != nil {
			return err
		}

		switch {
		case sym < endOfBlock:
			if err := e.win.Append(byte(sym)); err != nil {
				return err
			}
			continue
		case sym == endOfBlock:
			e.endBlock()
			return nil
		case sym > lastLenCode:
			return corruptf("invalid literal/length symbol %d", sym)
		}

		idx := sym - firstLenCode
		extra, err := e.cur.ReadBits(uint(lengthExtra[idx]))
		if err != nil {
			return err
		}
		length := int(lengthBase[idx]) + int(extra)

		dsym, err := e.dist.Decode(e.cur)
		if err != nil {
			return err
		}
		if int(dsym) >= maxNumDist {
			return corruptf("invalid distance symbol %d", dsym)
		}

		extra, err = e.cur.ReadBits(uint(distExtra[dsym]))
		if err != nil {
			return err
		}
		distance := int(distBase[dsym]) + int(extra)

		if err := e.win.CopyFromDistance(distance, length); err != nil {
			return err
		}
	}
}
