package wire

import "errors"

var (
	// ErrShortBuffer is returned when a read or write runs past the end
	// of the buffer.
	ErrShortBuffer = errors.New("wire: buffer too short")

	// ErrShortHeader is returned for messages smaller than the fixed header.
	ErrShortHeader = errors.New("wire: message shorter than header")

	// ErrLabelTooLong is returned for label length octets above 63. Name
	// compression pointers fall in this range too and are not accepted
	// in the question section.
	ErrLabelTooLong = errors.New("wire: label too long")

	// ErrEmptyLabel is returned when packing a name containing an empty label.
	ErrEmptyLabel = errors.New("wire: empty label")

	// ErrNameTooLong is returned for names longer than 255 octets on the wire.
	ErrNameTooLong = errors.New("wire: name too long")

	// ErrBadPointer is returned for a truncated compression pointer.
	ErrBadPointer = errors.New("wire: bad compression pointer")
)
