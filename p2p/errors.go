package p2p

import "errors"

var (
	// ErrUnknownType indicates a frame whose type code is not in the wire table.
	ErrUnknownType = errors.New("p2p: unknown message type")

	// ErrMalformedFrame indicates a frame that is truncated, carries trailing
	// bytes or violates a field encoding rule.
	ErrMalformedFrame = errors.New("p2p: malformed frame")
)
