package storm

import "errors"

var (
	// ErrTooLargeData indicates input exceeds a chunk, container or message capacity.
	// It is never resolved by truncation.
	ErrTooLargeData = errors.New("storm: data too large")

	// ErrInvalidChunkSize indicates a split chunk size outside 1..MaxChunkLen.
	ErrInvalidChunkSize = errors.New("storm: chunk size must be between 1 and 2^24-1")

	// ErrMissingChunk indicates a chunk referenced by a container is absent
	// from the lookup used for reassembly.
	ErrMissingChunk = errors.New("storm: missing chunk")

	// ErrChunkNotFound is returned by chunk lookups for unknown ids. Stores
	// wrap it so reassembly can tell absence from I/O failure.
	ErrChunkNotFound = errors.New("storm: chunk not found")

	// ErrChunkMismatch indicates a lookup returned bytes whose id differs
	// from the requested one.
	ErrChunkMismatch = errors.New("storm: chunk content does not match id")

	// ErrSizeMismatch indicates a container's declared size differs from the
	// total length of its chunks.
	ErrSizeMismatch = errors.New("storm: container size mismatch")

	// ErrInvalidContainer indicates a container fails structural validation.
	ErrInvalidContainer = errors.New("storm: invalid container")

	// ErrInvalidMessage indicates a topic or message fails validation.
	ErrInvalidMessage = errors.New("storm: invalid message")

	// ErrDecode indicates a chunk could not be decoded into a value.
	ErrDecode = errors.New("storm: decode failed")

	// ErrInvalidID indicates an identifier string could not be parsed.
	ErrInvalidID = errors.New("storm: invalid identifier")

	// ErrWrongHRP indicates a bech32 string carries a prefix other than "storm".
	ErrWrongHRP = errors.New("storm: wrong bech32 human-readable part")

	// ErrInvalidApp indicates an application name or code could not be parsed.
	ErrInvalidApp = errors.New("storm: invalid application")
)
