package strict

import "errors"

var (
	// ErrTruncated indicates the input ended before a value was fully decoded.
	ErrTruncated = errors.New("strict: unexpected end of data")

	// ErrCapacity indicates a length does not fit its length prefix.
	ErrCapacity = errors.New("strict: length exceeds field capacity")

	// ErrTrailingData indicates bytes were left over after decoding a value.
	ErrTrailingData = errors.New("strict: trailing data after value")

	// ErrUnsortedSet indicates set elements are not in strictly ascending order.
	ErrUnsortedSet = errors.New("strict: set elements unsorted or duplicated")

	// ErrInvalidString indicates string bytes violate the field's charset.
	ErrInvalidString = errors.New("strict: invalid string encoding")
)
