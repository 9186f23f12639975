package storm

import (
	"fmt"

	"github.com/stormnet/storm-go/strict"
)

// ChunkCodec packs application values into exactly one chunk and back.
// Implementations choose the serialization; StrictCodec is the built-in one.
type ChunkCodec[T any] interface {
	EncodeChunk(v T) (Chunk, error)
	DecodeChunk(c Chunk) (T, error)
}

// strictValue constrains P to a pointer to T with a strict encoding.
type strictValue[T any] interface {
	*T
	strict.Encoder
	strict.Decoder
}

// StrictCodec serializes values with the strict encoding. Values whose
// encoding exceeds MaxChunkLen fail with ErrTooLargeData.
type StrictCodec[T any, P strictValue[T]] struct{}

// EncodeChunk serializes v into a chunk.
func (StrictCodec[T, P]) EncodeChunk(v T) (Chunk, error) {
	data, err := strict.Serialize(P(&v))
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: %w", ErrTooLargeData, err)
	}
	return NewChunk(data)
}

// DecodeChunk decodes the whole chunk into a value.
func (StrictCodec[T, P]) DecodeChunk(c Chunk) (T, error) {
	var v T
	if err := strict.Deserialize(c.data, P(&v)); err != nil {
		return v, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return v, nil
}

// RawCodec stores byte slices verbatim.
type RawCodec struct{}

// EncodeChunk wraps b in a chunk.
func (RawCodec) EncodeChunk(b []byte) (Chunk, error) { return NewChunk(b) }

// DecodeChunk returns a copy of the chunk bytes.
func (RawCodec) DecodeChunk(c Chunk) ([]byte, error) { return c.Bytes(), nil }

var (
	_ ChunkCodec[[]byte]    = RawCodec{}
	_ ChunkCodec[Container] = StrictCodec[Container, *Container]{}
)
