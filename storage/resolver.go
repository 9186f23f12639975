package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/stormnet/storm-go/storm"
)

// ChunkSource fetches chunks of a container from somewhere other than the
// local store, typically a remote peer. messageID is the access context the
// source may require.
type ChunkSource interface {
	FetchChunks(ctx context.Context, messageID storm.MesgID, containerID storm.ContainerID, ids []storm.ChunkID) ([]storm.Chunk, error)
}

// Resolver assembles container payloads from the local store first and then
// from remote sources in order. Fetched chunks are verified and cached in
// the local store.
type Resolver struct {
	Local   ChunkStore
	Sources []ChunkSource
}

// NewResolver creates a Resolver over a local store and optional sources.
func NewResolver(local ChunkStore, sources ...ChunkSource) *Resolver {
	return &Resolver{Local: local, Sources: sources}
}

// Missing returns the distinct chunk ids of c that the local store lacks, in
// manifest order.
func (r *Resolver) Missing(c *storm.Container) ([]storm.ChunkID, error) {
	var missing []storm.ChunkID
	seen := make(map[storm.ChunkID]bool, len(c.Chunks))
	for _, id := range c.Chunks {
		if seen[id] {
			continue
		}
		seen[id] = true
		ok, err := r.Local.HasChunk(id)
		if err != nil {
			return nil, fmt.Errorf("resolver: local store: %w", err)
		}
		if !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Resolve returns the payload of container c, authorized by messageID.
// It fails with a *storm.MissingChunkError if no source has every chunk;
// source failures are joined to that error.
func (r *Resolver) Resolve(ctx context.Context, messageID storm.MesgID, c *storm.Container) ([]byte, error) {
	missing, err := r.Missing(c)
	if err != nil {
		return nil, err
	}

	cid := c.ID()
	var srcErrs []error
	for _, src := range r.Sources {
		if len(missing) == 0 {
			break
		}
		chunks, err := src.FetchChunks(ctx, messageID, cid, missing)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			srcErrs = append(srcErrs, err)
		}
		// Keep whatever arrived even if the source failed part way.
		got := make(map[storm.ChunkID]bool, len(chunks))
		for _, ch := range chunks {
			id, err := r.Local.PutChunk(ch)
			if err != nil {
				return nil, fmt.Errorf("resolver: cache chunk: %w", err)
			}
			got[id] = true
		}
		rest := missing[:0]
		for _, id := range missing {
			if !got[id] {
				rest = append(rest, id)
			}
		}
		missing = rest
	}

	payload, err := storm.Reassemble(c, Lookup(r.Local))
	if err != nil {
		return nil, errors.Join(append([]error{err}, srcErrs...)...)
	}
	return payload, nil
}
