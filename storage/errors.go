package storage

import (
	"errors"
	"fmt"

	"github.com/stormnet/storm-go/storm"
)

var (
	// ErrNotFound indicates no entry exists for the given id.
	ErrNotFound = errors.New("storage: not found")

	// ErrChunkNotFound indicates an unknown chunk id. It also matches
	// storm.ErrChunkNotFound so stores can serve as reassembly lookups.
	ErrChunkNotFound = fmt.Errorf("%w: chunk: %w", ErrNotFound, storm.ErrChunkNotFound)

	// ErrContainerNotFound indicates an unknown container id.
	ErrContainerNotFound = fmt.Errorf("%w: container", ErrNotFound)

	// ErrRecordNotFound indicates an unknown topic or message id.
	ErrRecordNotFound = fmt.Errorf("%w: topic or message", ErrNotFound)

	// ErrNilParam indicates a required pointer argument was nil.
	ErrNilParam = errors.New("storage: nil parameter")

	// ErrIOFailure indicates a file read/write error.
	ErrIOFailure = errors.New("storage: I/O failure")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrCorrupt indicates stored bytes that no longer decode or no longer
	// hash to their key.
	ErrCorrupt = errors.New("storage: corrupt entry")

	// ErrUnsupportedCompression indicates an unsupported compression scheme.
	ErrUnsupportedCompression = errors.New("storage: unsupported compression scheme")

	// ErrDecompressedTooLarge indicates decompressed data exceeds the largest chunk.
	ErrDecompressedTooLarge = errors.New("storage: decompressed data exceeds maximum size")

	// ErrUnknownBackend indicates a backend name other than memory or bolt.
	ErrUnknownBackend = errors.New("storage: unknown backend")
)
