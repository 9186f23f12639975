package chunking

import "errors"

var (
	// ErrUnknownPolicy indicates a chunker name that is not fixed, buzhash or rabin.
	ErrUnknownPolicy = errors.New("chunking: unknown policy")

	// ErrInvalidSize indicates a target chunk size the policy cannot honor
	// without exceeding the largest chunk.
	ErrInvalidSize = errors.New("chunking: invalid chunk size")
)
