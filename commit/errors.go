package commit

import "errors"

var (
	// ErrInvalidHashLen indicates a byte slice is not exactly HashSize bytes.
	ErrInvalidHashLen = errors.New("commit: hash must be 32 bytes")

	// ErrInvalidHex indicates a hash string is not valid hexadecimal.
	ErrInvalidHex = errors.New("commit: invalid hex encoding")

	// ErrEmptyTag indicates an attempt to build a tag from an empty label.
	ErrEmptyTag = errors.New("commit: tag label is empty")
)
