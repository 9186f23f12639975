package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormnet/storm-go/storm"
)

func TestOpen(t *testing.T) {
	ch, err := storm.NewChunk([]byte("opened"))
	require.NoError(t, err)

	for _, backend := range []string{BackendMemory, BackendBolt, BackendFiles} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			s, err := Open(Options{Backend: backend, Dir: dir, Compression: CompressZstd})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })

			id, err := s.PutChunk(ch)
			require.NoError(t, err)
			got, err := s.GetChunk(id)
			require.NoError(t, err)
			assert.Equal(t, ch.Bytes(), got.Bytes())

			_, statErr := os.Stat(filepath.Join(dir, "chunks"))
			assert.Equal(t, backend == BackendFiles, statErr == nil)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Options{Backend: "sqlite", Dir: t.TempDir()})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(Options{Backend: BackendBolt})
	assert.ErrorIs(t, err, ErrInvalidBaseDir)
}
