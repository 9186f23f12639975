package storm

import (
	"errors"
	"fmt"
	"io"
)

// Split cuts payload into fixed-size chunks of chunkSize bytes (the last one
// may be shorter) and builds the container referencing them in order. An
// empty payload yields a container with no chunks and size 0. Options that
// make the container invalid fail with the Validate error.
func Split(payload []byte, chunkSize int, opts ...ContainerOption) (*Container, []Chunk, error) {
	if chunkSize < 1 || chunkSize > MaxChunkLen {
		return nil, nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	n := (len(payload) + chunkSize - 1) / chunkSize
	if n > MaxContainerChunks {
		return nil, nil, fmt.Errorf("%w: %d chunks of %d bytes exceed %d", ErrTooLargeData, n, chunkSize, MaxContainerChunks)
	}

	c, err := newContainer(opts)
	if err != nil {
		return nil, nil, err
	}
	chunks := make([]Chunk, 0, n)
	for off := 0; off < len(payload); off += chunkSize {
		end := min(off+chunkSize, len(payload))
		ch, err := NewChunk(payload[off:end])
		if err != nil {
			return nil, nil, err
		}
		chunks = append(chunks, ch)
		c.Chunks = append(c.Chunks, ch.ID())
	}
	c.Size = uint64(len(payload))
	return c, chunks, nil
}

// Splitter yields successive pieces of a payload. NextBytes returns io.EOF
// once the payload is exhausted. Content-defined chunkers implement it.
type Splitter interface {
	NextBytes() ([]byte, error)
}

// SplitStream drains s into chunks and builds the container over them.
func SplitStream(s Splitter, opts ...ContainerOption) (*Container, []Chunk, error) {
	c, err := newContainer(opts)
	if err != nil {
		return nil, nil, err
	}
	var chunks []Chunk
	for {
		b, err := s.NextBytes()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("storm: split stream: %w", err)
		}
		if len(b) == 0 {
			continue
		}
		if len(c.Chunks) == MaxContainerChunks {
			return nil, nil, fmt.Errorf("%w: more than %d chunks", ErrTooLargeData, MaxContainerChunks)
		}
		ch, err := NewChunk(b)
		if err != nil {
			return nil, nil, err
		}
		chunks = append(chunks, ch)
		c.Chunks = append(c.Chunks, ch.ID())
		c.Size += uint64(ch.Len())
	}
	return c, chunks, nil
}

// newContainer applies opts and validates the resulting header, so a bad
// MIME type fails here instead of producing a container with the zero id.
func newContainer(opts []ContainerOption) (*Container, error) {
	c := &Container{Version: ContainerVersion, MIME: "application/octet-stream"}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ChunkLookup fetches a chunk by id. It returns an error wrapping
// ErrChunkNotFound when the id is unknown.
type ChunkLookup func(id ChunkID) (Chunk, error)

// MissingChunkError reports the first chunk reassembly could not find.
type MissingChunkError struct {
	ID ChunkID
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("storm: missing chunk %s", e.ID)
}

// Is matches ErrMissingChunk.
func (e *MissingChunkError) Is(target error) bool { return target == ErrMissingChunk }

// Reassemble concatenates the chunks of c in manifest order. It stops at the
// first id the lookup does not know and returns a *MissingChunkError. Chunks
// whose content does not hash to the requested id fail with ErrChunkMismatch.
// The declared size is not checked; see Container.CheckSize.
func Reassemble(c *Container, lookup ChunkLookup) ([]byte, error) {
	var out []byte
	// Size is untrusted; only preallocate modest payloads.
	if c.Size > 0 && c.Size <= 1<<26 {
		out = make([]byte, 0, c.Size)
	}
	for _, id := range c.Chunks {
		ch, err := lookup(id)
		if errors.Is(err, ErrChunkNotFound) {
			return nil, &MissingChunkError{ID: id}
		}
		if err != nil {
			return nil, fmt.Errorf("storm: lookup chunk %s: %w", id, err)
		}
		if got := ch.ID(); got != id {
			return nil, fmt.Errorf("%w: want %s, got %s", ErrChunkMismatch, id, got)
		}
		out = ch.appendTo(out)
	}
	return out, nil
}

// ChunkMap is an in-memory chunk set keyed by id.
type ChunkMap map[ChunkID]Chunk

// NewChunkMap indexes chunks by id.
func NewChunkMap(chunks ...Chunk) ChunkMap {
	m := make(ChunkMap, len(chunks))
	for _, ch := range chunks {
		m[ch.ID()] = ch
	}
	return m
}

// Lookup implements ChunkLookup.
func (m ChunkMap) Lookup(id ChunkID) (Chunk, error) {
	ch, ok := m[id]
	if !ok {
		return Chunk{}, fmt.Errorf("%w: %s", ErrChunkNotFound, id)
	}
	return ch, nil
}
