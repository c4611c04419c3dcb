package gunzip

import (
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/dselans/ungz/inflate"
)

const (
	gzipID1     = 0x1f
	gzipID2     = 0x8b
	gzipDeflate = 8

	flagText     = 1 << 0
	flagHdrCrc   = 1 << 1
	flagExtra    = 1 << 2
	flagName     = 1 << 3
	flagComment  = 1 << 4
	flagReserved = 0xe0

	// maxStringLen bounds FNAME and FCOMMENT.
	maxStringLen = 1 << 16
)

var osNames = map[byte]string{
	0:   "FAT filesystem",
	1:   "Amiga",
	2:   "VMS",
	3:   "Unix",
	4:   "VM/CMS",
	5:   "Atari TOS",
	6:   "HPFS filesystem",
	7:   "Macintosh",
	8:   "Z-System",
	9:   "CP/M",
	10:  "TOPS-20",
	11:  "NTFS filesystem",
	12:  "QDOS",
	13:  "Acorn RISCOS",
	255: "unknown",
}

// Header is the parsed RFC 1952 member header.
type Header struct {
	Method     byte
	Flags      byte
	ModTime    time.Time // zero when MTIME is not set
	ExtraFlags byte
	OS         byte

	Extra   []byte // FEXTRA payload
	Name    string // FNAME, converted from Latin-1
	Comment string // FCOMMENT, converted from Latin-1

	HeaderCRC uint16 // valid when HasHeaderCRC() is true

	// Size is the number of bytes the header occupied in the input.
	Size int64
}

func (h *Header) IsText() bool       { return h.Flags&flagText != 0 }
func (h *Header) HasHeaderCRC() bool { return h.Flags&flagHdrCrc != 0 }
func (h *Header) HasExtra() bool     { return h.Flags&flagExtra != 0 }
func (h *Header) HasName() bool      { return h.Flags&flagName != 0 }
func (h *Header) HasComment() bool   { return h.Flags&flagComment != 0 }

// OSName describes the OS byte.
func (h *Header) OSName() string {
	if name, ok := osNames[h.OS]; ok {
		return name
	}
	return "unknown (undefined value)"
}

// headerReader reads header bytes through the cursor and keeps a running
// CRC-32 over them for FHCRC.
type headerReader struct {
	cur    *inflate.Cursor
	digest Digest
	n      int64
}

func (hr *headerReader) readFull(p []byte) error {
	if err := hr.cur.ReadFull(p); err != nil {
		return err
	}
	hr.digest.Write(p)
	hr.n += int64(len(p))
	return nil
}

func (hr *headerReader) readByte() (byte, error) {
	b, err := hr.cur.ReadByte()
	if err != nil {
		return 0, err
	}
	hr.digest.WriteByte(b)
	hr.n++
	return b, nil
}

// readString reads a NUL-terminated ISO 8859-1 string and returns it as UTF-8.
func (hr *headerReader) readString(field string) (string, error) {
	buf := make([]byte, 0, 64)
	n := 0

	for {
		b, err := hr.readByte()
		if err != nil {
			return "", errors.Wrapf(err, "unable to read %s", field)
		}
		if b == 0 {
			break
		}
		if n >= maxStringLen {
			return "", errors.Wrapf(ErrHeaderCorrupt, "%s longer than %d bytes", field, maxStringLen)
		}
		buf = utf8.AppendRune(buf, rune(b))
		n++
	}

	return string(buf), nil
}

// readHeader parses a member header. first is the already consumed first byte
// of the magic number.
func readHeader(cur *inflate.Cursor, first byte) (*Header, error) {
	hr := &headerReader{cur: cur, n: 1}
	hr.digest.WriteByte(first)

	var buf [10]byte
	buf[0] = first

	if err := hr.readFull(buf[1:2]); err != nil {
		return nil, errors.Wrap(err, "unable to read magic number")
	}
	if buf[0] != gzipID1 || buf[1] != gzipID2 {
		return nil, errors.Wrapf(ErrHeaderCorrupt, "bad magic number %#02x %#02x (expected 0x1f 0x8b)", buf[0], buf[1])
	}

	if err := hr.readFull(buf[2:3]); err != nil {
		return nil, errors.Wrap(err, "unable to read compression method")
	}
	if buf[2] != gzipDeflate {
		return nil, errors.Wrapf(ErrUnsupportedMethod, "compression method %#02x (expected 0x08)", buf[2])
	}

	if err := hr.readFull(buf[3:10]); err != nil {
		return nil, errors.Wrap(err, "unable to read header")
	}

	hdr := &Header{
		Method:     buf[2],
		Flags:      buf[3],
		ExtraFlags: buf[8],
		OS:         buf[9],
	}

	if hdr.Flags&flagReserved != 0 {
		return nil, errors.Wrapf(ErrHeaderCorrupt, "reserved flag bits set in %#02x", hdr.Flags)
	}

	// MTIME of zero means no time stamp is available.
	if t := le.Uint32(buf[4:8]); t > 0 {
		hdr.ModTime = time.Unix(int64(t), 0)
	}

	if hdr.HasExtra() {
		if err := hr.readFull(buf[:2]); err != nil {
			return nil, errors.Wrap(err, "unable to read extra field length")
		}
		hdr.Extra = make([]byte, le.Uint16(buf[:2]))
		if err := hr.readFull(hdr.Extra); err != nil {
			return nil, errors.Wrap(err, "unable to read extra field")
		}
	}

	var err error

	if hdr.HasName() {
		if hdr.Name, err = hr.readString("file name"); err != nil {
			return nil, err
		}
	}

	if hdr.HasComment() {
		if hdr.Comment, err = hr.readString("comment"); err != nil {
			return nil, err
		}
	}

	if hdr.HasHeaderCRC() {
		want := uint16(hr.digest.Sum32())
		if err := cur.ReadFull(buf[:2]); err != nil {
			return nil, errors.Wrap(err, "unable to read header checksum")
		}
		hr.n += 2
		hdr.HeaderCRC = le.Uint16(buf[:2])
		if hdr.HeaderCRC != want {
			return nil, errors.Wrapf(ErrHeaderCorrupt, "header checksum %#04x does not match %#04x", hdr.HeaderCRC, want)
		}
	}

	hdr.Size = hr.n

	return hdr, nil
}
