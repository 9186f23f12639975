package storm

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormnet/storm-go/strict"
)

func testChunkIDs(n int) []ChunkID {
	ids := make([]ChunkID, n)
	for i := range ids {
		ids[i] = CommitChunkID([]byte(fmt.Sprintf("chunk-%d", i)))
	}
	return ids
}

func TestContainerID_Sensitivity(t *testing.T) {
	ids := testChunkIDs(3)
	base := Container{MIME: "application/pdf", Info: "report", Size: 300, Chunks: ids}

	variants := map[string]Container{
		"version": {Version: 1, MIME: base.MIME, Info: base.Info, Size: base.Size, Chunks: ids},
		"mime":    {MIME: "text/plain", Info: base.Info, Size: base.Size, Chunks: ids},
		"info":    {MIME: base.MIME, Info: "draft", Size: base.Size, Chunks: ids},
		"size":    {MIME: base.MIME, Info: base.Info, Size: 301, Chunks: ids},
		"order":   {MIME: base.MIME, Info: base.Info, Size: base.Size, Chunks: []ChunkID{ids[1], ids[0], ids[2]}},
		"dup":     {MIME: base.MIME, Info: base.Info, Size: base.Size, Chunks: append(append([]ChunkID{}, ids...), ids[0])},
	}

	baseID := base.ID()
	require.False(t, baseID.IsZero())
	for name, c := range variants {
		t.Run(name, func(t *testing.T) {
			assert.NotEqual(t, baseID, c.ID())
		})
	}

	same := Container{MIME: base.MIME, Info: base.Info, Size: base.Size, Chunks: append([]ChunkID{}, ids...)}
	assert.Equal(t, baseID, same.ID())
}

func TestContainerID_CommitsSerialization(t *testing.T) {
	c := Container{MIME: "image/png", Size: 7, Chunks: testChunkIDs(2)}
	enc, err := strict.Serialize(&c)
	require.NoError(t, err)
	assert.Equal(t, CommitContainerID(enc), c.ID())
}

func TestContainer_StrictRoundTrip(t *testing.T) {
	tests := []Container{
		{},
		{MIME: "text/plain", Info: "héllo wörld", Size: 42, Chunks: testChunkIDs(1)},
		{Version: 3, MIME: "application/octet-stream", Size: 1 << 40, Chunks: testChunkIDs(5)},
	}
	for i, c := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			enc, err := strict.Serialize(&c)
			require.NoError(t, err)
			var got Container
			require.NoError(t, strict.Deserialize(enc, &got))
			assert.Equal(t, c, got)
		})
	}
}

func TestContainer_Validate(t *testing.T) {
	assert.NoError(t, (&Container{MIME: "text/plain"}).Validate())

	bad := Container{MIME: "text/pläin"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidContainer)
	assert.True(t, bad.ID().IsZero())

	tooMany := Container{Chunks: make([]ChunkID, MaxContainerChunks+1)}
	assert.ErrorIs(t, tooMany.Validate(), ErrTooLargeData)
	assert.True(t, tooMany.ID().IsZero())

	atLimit := Container{Chunks: make([]ChunkID, MaxContainerChunks)}
	assert.NoError(t, atLimit.Validate())
}

func TestContainer_DecodeRejectsNonASCIIMime(t *testing.T) {
	w := []byte{0, 0}
	w = append(w, 2, 0, 0xc3, 0xa4)
	w = append(w, 0, 0)
	w = append(w, make([]byte, 8)...)
	w = append(w, 0, 0, 0)

	var c Container
	err := strict.Deserialize(w, &c)
	assert.ErrorIs(t, err, strict.ErrInvalidString)
}

func TestContainer_CheckSize(t *testing.T) {
	c, chunks, err := Split([]byte("0123456789"), 4)
	require.NoError(t, err)
	assert.NoError(t, c.CheckSize(chunks))

	c.Size = 11
	assert.ErrorIs(t, c.CheckSize(chunks), ErrSizeMismatch)
}

func TestContainerInfo_RoundTrip(t *testing.T) {
	c := &Container{MIME: "video/mp4", Info: "clip", Size: 99, Chunks: testChunkIDs(4)}
	mid := CommitMesgID([]byte("topic"))
	info := NewContainerInfo(mid, c)

	assert.Equal(t, c.ID(), info.FullID.ContainerID)
	assert.Equal(t, uint32(4), info.ChunkCount)

	enc, err := strict.Serialize(&info)
	require.NoError(t, err)
	var got ContainerInfo
	require.NoError(t, strict.Deserialize(enc, &got))
	assert.Equal(t, info, got)
}

func TestFullIDs_String(t *testing.T) {
	cid := CommitContainerID([]byte("c"))
	chid := CommitChunkID([]byte("k"))
	mid := CommitMesgID([]byte("m"))

	assert.Equal(t, chid.String()+"@"+cid.String(), ChunkFullID{ContainerID: cid, ChunkID: chid}.String())
	assert.Equal(t, cid.String()+"@"+mid.String(), ContainerFullID{MessageID: mid, ContainerID: cid}.String())
}

func TestSplit(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")

	tests := []struct {
		name       string
		chunkSize  int
		wantChunks int
	}{
		{"one chunk", 1000, 1},
		{"eleven byte chunks", 11, 4},
		{"remainder", 10, 5},
		{"byte chunks", 1, len(payload)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, chunks, err := Split(payload, tt.chunkSize, WithMIME("text/plain"), WithInfo("fox"))
			require.NoError(t, err)
			assert.Len(t, chunks, tt.wantChunks)
			assert.Len(t, c.Chunks, tt.wantChunks)
			assert.Equal(t, uint64(len(payload)), c.Size)
			assert.Equal(t, "text/plain", c.MIME)
			assert.Equal(t, "fox", c.Info)
			for i, ch := range chunks {
				assert.Equal(t, ch.ID(), c.Chunks[i])
			}

			out, err := Reassemble(c, NewChunkMap(chunks...).Lookup)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestSplit_EmptyPayload(t *testing.T) {
	c, chunks, err := Split(nil, 16)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Empty(t, c.Chunks)
	assert.Zero(t, c.Size)
	assert.False(t, c.ID().IsZero())

	out, err := Reassemble(c, NewChunkMap().Lookup)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSplit_InvalidChunkSize(t *testing.T) {
	for _, size := range []int{0, -1, MaxChunkLen + 1} {
		_, _, err := Split([]byte("x"), size)
		assert.ErrorIs(t, err, ErrInvalidChunkSize)
	}
}

func TestSplit_InvalidHeader(t *testing.T) {
	_, _, err := Split([]byte("x"), 1, WithMIME("tëxt/plain"))
	assert.ErrorIs(t, err, ErrInvalidContainer)

	_, _, err = SplitStream(&sliceSplitter{parts: [][]byte{[]byte("x")}}, WithInfo("\xff"))
	assert.ErrorIs(t, err, ErrInvalidContainer)
}

func TestReassemble_MissingChunk(t *testing.T) {
	c, chunks, err := Split([]byte("abcdefghij"), 3)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	lookup := NewChunkMap(chunks[0], chunks[1], chunks[3]).Lookup
	_, err = Reassemble(c, lookup)
	require.ErrorIs(t, err, ErrMissingChunk)

	var missing *MissingChunkError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, chunks[2].ID(), missing.ID)
}

func TestReassemble_Mismatch(t *testing.T) {
	c, chunks, err := Split([]byte("abcdef"), 3)
	require.NoError(t, err)

	lookup := func(id ChunkID) (Chunk, error) { return chunks[1], nil }
	_, err = Reassemble(c, lookup)
	assert.ErrorIs(t, err, ErrChunkMismatch)
}

func TestReassemble_LookupFailure(t *testing.T) {
	c, _, err := Split([]byte("abc"), 3)
	require.NoError(t, err)

	boom := errors.New("disk on fire")
	_, err = Reassemble(c, func(ChunkID) (Chunk, error) { return Chunk{}, boom })
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrMissingChunk)
}

type sliceSplitter struct {
	parts [][]byte
}

func (s *sliceSplitter) NextBytes() ([]byte, error) {
	if len(s.parts) == 0 {
		return nil, io.EOF
	}
	p := s.parts[0]
	s.parts = s.parts[1:]
	return p, nil
}

func TestSplitStream(t *testing.T) {
	s := &sliceSplitter{parts: [][]byte{[]byte("ab"), nil, []byte("cde"), []byte("f")}}
	c, chunks, err := SplitStream(s, WithMIME("text/plain"))
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
	assert.Equal(t, uint64(6), c.Size)

	out, err := Reassemble(c, NewChunkMap(chunks...).Lookup)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), out)
}
