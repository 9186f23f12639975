package storm

import (
	"fmt"

	"github.com/stormnet/storm-go/strict"
)

// MaxChunkLen is the largest chunk in bytes (2^24-1), the capacity of a
// medium vector and of one transport packet.
const MaxChunkLen = strict.MaxLen24

// Chunk is an immutable opaque byte sequence of at most MaxChunkLen bytes.
type Chunk struct {
	data []byte
}

// NewChunk copies b into a chunk. It fails with ErrTooLargeData when b is
// longer than MaxChunkLen.
func NewChunk(b []byte) (Chunk, error) {
	if len(b) > MaxChunkLen {
		return Chunk{}, fmt.Errorf("%w: chunk of %d bytes, max %d", ErrTooLargeData, len(b), MaxChunkLen)
	}
	return Chunk{data: cloneBytes(b)}, nil
}

// Len returns the chunk length in bytes.
func (c Chunk) Len() int { return len(c.data) }

// Bytes returns a copy of the chunk data.
func (c Chunk) Bytes() []byte { return cloneBytes(c.data) }

// ID returns the content identifier of the chunk.
func (c Chunk) ID() ChunkID {
	h, err := commitEncoder(chunkTag, c)
	if err != nil {
		// Unreachable: NewChunk and DecodeStrict bound the length.
		panic("storm: chunk commitment: " + err.Error())
	}
	return ChunkID(h)
}

// EncodeStrict writes the chunk as a medium byte vector.
func (c Chunk) EncodeStrict(w *strict.Writer) { w.Bytes24(c.data) }

// DecodeStrict reads a medium byte vector.
func (c *Chunk) DecodeStrict(r *strict.Reader) { c.data = r.Bytes24() }

// appendTo appends the chunk data to dst without an intermediate copy.
func (c Chunk) appendTo(dst []byte) []byte { return append(dst, c.data...) }

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
