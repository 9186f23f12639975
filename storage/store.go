// Package storage persists chunks, containers, topics and messages by their
// content identifiers. MemStore keeps everything in memory, BoltStore in a
// bbolt database, and FileStore keeps chunk blobs in a sharded directory
// tree that BoltStore can delegate to.
package storage

import "github.com/stormnet/storm-go/storm"

// ChunkStore holds chunk bytes keyed by chunk id. GetChunk returns an error
// matching ErrChunkNotFound (and storm.ErrChunkNotFound) for unknown ids.
type ChunkStore interface {
	PutChunk(c storm.Chunk) (storm.ChunkID, error)
	GetChunk(id storm.ChunkID) (storm.Chunk, error)
	HasChunk(id storm.ChunkID) (bool, error)
}

// Store is the full node store.
type Store interface {
	ChunkStore

	// PutContainer stores a manifest under its id.
	PutContainer(c *storm.Container) (storm.ContainerID, error)

	// GetContainer retrieves a manifest.
	GetContainer(id storm.ContainerID) (*storm.Container, error)

	// HasContainer reports whether a manifest is stored.
	HasContainer(id storm.ContainerID) (bool, error)

	// PutTopic stores a topic under app and indexes it for ListTopics.
	PutTopic(app storm.App, t *storm.Topic) (storm.MesgID, error)

	// PutMesg stores a message under app.
	PutMesg(app storm.App, m *storm.Mesg) (storm.MesgID, error)

	// GetRecord returns the topic or message with the given id and the
	// application it was stored under.
	GetRecord(id storm.MesgID) (storm.App, storm.Record, error)

	// ListTopics returns the topic ids stored under app in ascending order.
	ListTopics(app storm.App) ([]storm.MesgID, error)

	// Close releases resources held by the store.
	Close() error
}

// Lookup adapts a ChunkStore to storm.Reassemble.
func Lookup(cs ChunkStore) storm.ChunkLookup {
	return cs.GetChunk
}
