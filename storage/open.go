package storage

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendFiles  = "files"
)

// Options selects and configures the store Open returns.
type Options struct {
	// Backend is memory, bolt (everything in one bbolt file) or files
	// (bbolt for manifests and records, chunk blobs in a directory tree).
	Backend string
	// Dir holds storm.db and, for the files backend, the chunks directory.
	Dir string
	// Compression applies to chunk blobs at rest.
	Compression Compression
}

// Open creates the store described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemStore(), nil
	case BackendBolt, BackendFiles:
		if opts.Dir == "" {
			return nil, fmt.Errorf("%w: empty data directory", ErrInvalidBaseDir)
		}
		boltOpts := []BoltOption{WithCompression(opts.Compression)}
		if opts.Backend == BackendFiles {
			fs, err := NewFileStore(filepath.Join(opts.Dir, "chunks"), opts.Compression)
			if err != nil {
				return nil, err
			}
			boltOpts = append(boltOpts, WithChunkStore(fs))
		}
		return OpenBoltStore(filepath.Join(opts.Dir, "storm.db"), boltOpts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
