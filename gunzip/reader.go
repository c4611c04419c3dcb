// Package gunzip reads gzip (RFC 1952) members and verifies their trailers,
// using the inflate package for the DEFLATE payload.
//
//	z := gunzip.NewReader(f, nil)
//	members, err := z.Decompress(ctx, out)
//	if err != nil {
//		return err
//	}
//
// Bytes reach the sink as they are decoded. A failure does not retract bytes
// already written; callers should treat output as tentative until Decompress
// returns without error.
package gunzip

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/ungz/inflate"
)

var le = binary.LittleEndian

// Options configures a Reader.
type Options struct {
	// Multistream makes Decompress continue with the next member after each
	// trailer. When false, decoding stops after the first member and any
	// trailing input is left unread.
	Multistream bool

	// Progress, when set, is called after every decoded block.
	Progress func(Progress)

	// OnHeader, when set, is called with every member header once it has
	// been validated and before its payload is decoded.
	OnHeader func(member int, hdr *Header)
}

// DefaultOptions returns options for multi-member decoding.
func DefaultOptions() *Options {
	return &Options{
		Multistream: true,
	}
}

// Progress is reported at block boundaries.
type Progress struct {
	Member             int
	Block              inflate.BlockInfo
	Blocks             int   // blocks decoded, across members
	CompressedOffset   int64 // input bytes consumed
	UncompressedOffset int64 // output bytes produced, across members
}

// Member summarizes a fully verified member.
type Member struct {
	Header *Header
	CRC32  uint32
	ISize  uint32
	Blocks int

	CompressedStart int64 // offset of the header in the input
	CompressedEnd   int64 // offset just past the trailer
	Written         int64 // uncompressed bytes produced
}

// Reader decodes gzip members from a byte source into a sink. It is not safe
// for concurrent use.
type Reader struct {
	opts *Options
	cur  *inflate.Cursor
	eng  *inflate.Engine
	log  *logrus.Entry

	hdr      *Header // header of the member being decoded, nil between members
	hdrStart int64
	members  int
	blocks   int
	total    int64
}

// NewReader returns a Reader pulling from r. If r does not implement
// io.ByteReader it is buffered. A nil opts means DefaultOptions.
func NewReader(r io.Reader, opts *Options) *Reader {
	if opts == nil {
		opts = DefaultOptions()
	}

	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	cur := inflate.NewCursor(br)

	return &Reader{
		opts: opts,
		cur:  cur,
		eng:  inflate.NewEngine(cur, io.Discard),
		log:  logrus.WithField("pkg", "gunzip"),
	}
}

// Offset reports the number of input bytes consumed.
func (z *Reader) Offset() int64 {
	return z.cur.Offset()
}

// Total reports the number of output bytes produced across all members.
func (z *Reader) Total() int64 {
	return z.total
}

// Blocks reports the number of DEFLATE blocks decoded across all members.
func (z *Reader) Blocks() int {
	return z.blocks
}

// Members reports the number of members fully decoded.
func (z *Reader) Members() int {
	return z.members
}

// Next parses the header of the next member. It returns io.EOF when the input
// is exhausted at a member boundary. The header is validated before any of the
// payload is read.
func (z *Reader) Next() (*Header, error) {
	if z.hdr != nil {
		return nil, errors.New("gunzip: previous member not decoded")
	}

	start := z.cur.Offset()

	first, err := z.cur.ReadByte()
	if err != nil {
		if errors.Is(err, inflate.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	hdr, err := readHeader(z.cur, first)
	if err != nil {
		return nil, errors.Wrapf(err, "member %d at offset %d", z.members, start)
	}

	z.log.WithFields(logrus.Fields{
		"method": "Next",
		"member": z.members,
		"offset": start,
		"name":   hdr.Name,
	}).Debug("read member header")

	z.hdr = hdr
	z.hdrStart = start

	if z.opts.OnHeader != nil {
		z.opts.OnHeader(z.members, hdr)
	}

	return hdr, nil
}

// DecompressMember decodes the payload of the current member into w and
// verifies its trailer. Next is called first if no header is pending. ctx is
// checked between blocks.
func (z *Reader) DecompressMember(ctx context.Context, w io.Writer) (*Member, error) {
	if z.hdr == nil {
		if _, err := z.Next(); err != nil {
			if err == io.EOF {
				return nil, errors.Wrap(ErrUnexpectedEOF, "no gzip member found")
			}
			return nil, err
		}
	}

	llog := z.log.WithFields(logrus.Fields{
		"method": "DecompressMember",
		"member": z.members,
	})

	digest := &Digest{}
	z.eng.Reset(io.MultiWriter(w, digest))

	m := &Member{
		Header:          z.hdr,
		CompressedStart: z.hdrStart,
	}

	for !z.eng.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := z.eng.Step()
		z.total += info.Bytes
		if err != nil {
			return nil, errors.Wrapf(err, "member %d at offset %d", z.members, z.cur.Offset())
		}

		m.Blocks++
		z.blocks++

		if z.opts.Progress != nil {
			z.opts.Progress(Progress{
				Member:             z.members,
				Block:              info,
				Blocks:             z.blocks,
				CompressedOffset:   z.cur.Offset(),
				UncompressedOffset: z.total,
			})
		}
	}

	if err := z.readTrailer(m, digest); err != nil {
		return nil, errors.Wrapf(err, "member %d", z.members)
	}

	m.Written = z.eng.Total()
	m.CompressedEnd = z.cur.Offset()

	llog.Debugf("member verified: %d blocks, %d bytes, crc %#08x", m.Blocks, m.Written, m.CRC32)

	z.hdr = nil
	z.members++

	return m, nil
}

func (z *Reader) readTrailer(m *Member, digest *Digest) error {
	var buf [8]byte
	if err := z.cur.ReadFull(buf[:]); err != nil {
		return errors.Wrap(err, "unable to read trailer")
	}

	m.CRC32 = le.Uint32(buf[:4])
	m.ISize = le.Uint32(buf[4:])

	if m.CRC32 != digest.Sum32() {
		return errors.Wrapf(ErrTrailerMismatch, "crc32 %#08x, decoded data has %#08x", m.CRC32, digest.Sum32())
	}

	if m.ISize != digest.Size() {
		return errors.Wrapf(ErrTrailerMismatch, "isize %d, decoded %d bytes (mod 2^32)", m.ISize, digest.Size())
	}

	return nil
}

// Decompress decodes every member into w. With Multistream disabled only the
// first member is decoded.
func (z *Reader) Decompress(ctx context.Context, w io.Writer) ([]*Member, error) {
	var members []*Member

	for {
		if _, err := z.Next(); err != nil {
			if err == io.EOF {
				if len(members) == 0 && z.members == 0 {
					return nil, errors.Wrap(ErrUnexpectedEOF, "no gzip member found")
				}
				return members, nil
			}
			return members, err
		}

		m, err := z.DecompressMember(ctx, w)
		if err != nil {
			return members, err
		}

		members = append(members, m)

		if !z.opts.Multistream {
			return members, nil
		}
	}
}

// WriteTo implements io.WriterTo.
func (z *Reader) WriteTo(w io.Writer) (int64, error) {
	start := z.total
	_, err := z.Decompress(context.Background(), w)
	return z.total - start, err
}
