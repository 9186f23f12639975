package storage

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/stormnet/storm-go/storm"
)

// FileStore is a ChunkStore on the local filesystem. Chunks are stored at
// {baseDir}/{hex(id[:1])}/{hex(id)}; the first byte shards the directory.
type FileStore struct {
	baseDir     string
	compression Compression
	mu          sync.RWMutex
}

// NewFileStore creates a file-based chunk store writing blobs with the given
// compression. The directory is created if it does not exist.
func NewFileStore(baseDir string, compression Compression) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if compression > CompressZstd {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, compression)
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return &FileStore{baseDir: baseDir, compression: compression}, nil
}

// ChunkPath returns the path of chunk id under baseDir.
func ChunkPath(baseDir string, id storm.ChunkID) string {
	hexID := hex.EncodeToString(id[:])
	return filepath.Join(baseDir, hexID[:2], hexID)
}

// PutChunk writes the chunk blob. Existing blobs are left untouched.
func (fs *FileStore) PutChunk(c storm.Chunk) (storm.ChunkID, error) {
	id := c.ID()
	blob, err := seal(c.Bytes(), fs.compression)
	if err != nil {
		return id, fmt.Errorf("%w: compress: %w", ErrIOFailure, err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := ChunkPath(fs.baseDir, id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return id, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0600); err != nil {
		return id, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return id, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return id, nil
}

// GetChunk reads and verifies a chunk blob.
func (fs *FileStore) GetChunk(id storm.ChunkID) (storm.Chunk, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	blob, err := os.ReadFile(ChunkPath(fs.baseDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return storm.Chunk{}, fmt.Errorf("%w: %s", ErrChunkNotFound, id)
		}
		return storm.Chunk{}, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return openChunk(id, blob)
}

// HasChunk checks if a blob exists for id.
func (fs *FileStore) HasChunk(id storm.ChunkID) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(ChunkPath(fs.baseDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return true, nil
}

// DeleteChunk removes a chunk blob.
func (fs *FileStore) DeleteChunk(id storm.ChunkID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(ChunkPath(fs.baseDir, id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrChunkNotFound, id)
		}
		return fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return nil
}

// ListChunks returns all stored chunk ids by scanning the shard directories.
func (fs *FileStore) ListChunks() ([]storm.ChunkID, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	var result []storm.ChunkID
	for _, entry := range entries {
		// Shard directories are 2-character hex strings.
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			id, err := storm.ChunkIDFromHex(f.Name())
			if err != nil {
				continue // temp files and strays
			}
			result = append(result, id)
		}
	}
	return result, nil
}

// openChunk decompresses a blob and checks it still hashes to id.
func openChunk(id storm.ChunkID, blob []byte) (storm.Chunk, error) {
	data, err := unseal(blob)
	if err != nil {
		return storm.Chunk{}, fmt.Errorf("%w: chunk %s: %w", ErrCorrupt, id, err)
	}
	c, err := storm.NewChunk(data)
	if err != nil {
		return storm.Chunk{}, fmt.Errorf("%w: chunk %s: %w", ErrCorrupt, id, err)
	}
	if c.ID() != id {
		return storm.Chunk{}, fmt.Errorf("%w: chunk %s content changed", ErrCorrupt, id)
	}
	return c, nil
}

var _ ChunkStore = (*FileStore)(nil)
