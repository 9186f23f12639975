package chunking

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormnet/storm-go/storm"
)

func randomPayload(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.New(rand.NewSource(42)).Read(b)
	require.NoError(t, err)
	return b
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "fixed", want: Fixed},
		{in: "BUZHASH", want: Buzhash},
		{in: " rabin ", want: Rabin},
		{in: "", want: Fixed},
		{in: "fastcdc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownPolicy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	payload := randomPayload(t, 3*DefaultSize+1234)

	for _, p := range []Policy{Fixed, Buzhash, Rabin} {
		t.Run(string(p), func(t *testing.T) {
			c, chunks, err := Split(bytes.NewReader(payload), p, DefaultSize, storm.WithMIME("application/octet-stream"))
			require.NoError(t, err)
			require.NotEmpty(t, chunks)
			assert.Equal(t, uint64(len(payload)), c.Size)
			assert.NoError(t, c.CheckSize(chunks))

			out, err := storm.Reassemble(c, storm.NewChunkMap(chunks...).Lookup)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestSplit_FixedMatchesCoreSplit(t *testing.T) {
	payload := randomPayload(t, 10_000)
	want, _, err := storm.Split(payload, 1000)
	require.NoError(t, err)

	got, _, err := Split(bytes.NewReader(payload), Fixed, 1000)
	require.NoError(t, err)
	assert.Equal(t, want.ID(), got.ID())
}

func TestSplit_EmptyInput(t *testing.T) {
	c, chunks, err := Split(bytes.NewReader(nil), Fixed, 64)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Zero(t, c.Size)
}

func TestNewSplitter_InvalidSize(t *testing.T) {
	_, err := NewSplitter(bytes.NewReader(nil), Fixed, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = NewSplitter(bytes.NewReader(nil), Rabin, storm.MaxChunkLen)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = NewSplitter(bytes.NewReader(nil), Policy("other"), 10)
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}
