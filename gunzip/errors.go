package gunzip

import (
	"github.com/pkg/errors"

	"github.com/dselans/ungz/inflate"
)

var (
	// ErrHeaderCorrupt is returned for a bad magic number, a malformed
	// flag-dependent field or a header checksum mismatch.
	ErrHeaderCorrupt = errors.New("gunzip: corrupt header")

	// ErrUnsupportedMethod is returned when the compression method is not
	// deflate (8).
	ErrUnsupportedMethod = errors.New("gunzip: unsupported compression method")

	// ErrTrailerMismatch is returned when the trailer CRC-32 or ISIZE does not
	// match the decompressed data.
	ErrTrailerMismatch = errors.New("gunzip: trailer mismatch")

	// ErrUnexpectedEOF is returned when input ends before a member is complete.
	ErrUnexpectedEOF = inflate.ErrUnexpectedEOF

	// ErrCorruptStream is returned for malformed DEFLATE payloads.
	ErrCorruptStream = inflate.ErrCorruptStream
)
