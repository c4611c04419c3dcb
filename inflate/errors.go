package inflate

import (
	"github.com/pkg/errors"
)

var (
	// ErrUnexpectedEOF is returned when the input ends before a required field
	// or bit count is available.
	ErrUnexpectedEOF = errors.New("inflate: unexpected end of stream")

	// ErrCorruptStream is returned for malformed DEFLATE data: invalid block
	// type, bad stored length, invalid code lengths, invalid symbols and
	// back-references that point outside of the produced history.
	ErrCorruptStream = errors.New("inflate: corrupt stream")
)

// corruptf wraps ErrCorruptStream with a formatted message.
func corruptf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorruptStream, format, args...)
}
