package storage

import (
	"fmt"
	"slices"
	"sync"

	"github.com/stormnet/storm-go/storm"
)

type memRecord struct {
	app    storm.App
	record storm.Record
}

// MemStore is an in-memory Store, used in tests and by nodes without a
// data directory.
type MemStore struct {
	mu         sync.RWMutex
	chunks     map[storm.ChunkID]storm.Chunk
	containers map[storm.ContainerID]*storm.Container
	records    map[storm.MesgID]memRecord
	topics     map[storm.App][]storm.MesgID
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		chunks:     make(map[storm.ChunkID]storm.Chunk),
		containers: make(map[storm.ContainerID]*storm.Container),
		records:    make(map[storm.MesgID]memRecord),
		topics:     make(map[storm.App][]storm.MesgID),
	}
}

// PutChunk stores a chunk. Storing the same chunk twice is a no-op.
func (s *MemStore) PutChunk(c storm.Chunk) (storm.ChunkID, error) {
	id := c.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[id] = c
	return id, nil
}

// GetChunk retrieves a chunk by id.
func (s *MemStore) GetChunk(id storm.ChunkID) (storm.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return storm.Chunk{}, fmt.Errorf("%w: %s", ErrChunkNotFound, id)
	}
	return c, nil
}

// HasChunk reports whether a chunk is stored.
func (s *MemStore) HasChunk(id storm.ChunkID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[id]
	return ok, nil
}

// PutContainer stores a manifest.
func (s *MemStore) PutContainer(c *storm.Container) (storm.ContainerID, error) {
	if c == nil {
		return storm.ContainerID{}, fmt.Errorf("%w: container", ErrNilParam)
	}
	if err := c.Validate(); err != nil {
		return storm.ContainerID{}, err
	}
	id := c.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[id] = cloneContainer(c)
	return id, nil
}

// GetContainer retrieves a manifest.
func (s *MemStore) GetContainer(id storm.ContainerID) (*storm.Container, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, id)
	}
	return cloneContainer(c), nil
}

// HasContainer reports whether a manifest is stored.
func (s *MemStore) HasContainer(id storm.ContainerID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.containers[id]
	return ok, nil
}

// PutTopic stores a topic and indexes it under app.
func (s *MemStore) PutTopic(app storm.App, t *storm.Topic) (storm.MesgID, error) {
	if t == nil {
		return storm.MesgID{}, fmt.Errorf("%w: topic", ErrNilParam)
	}
	if err := t.Validate(); err != nil {
		return storm.MesgID{}, err
	}
	id := t.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		s.records[id] = memRecord{app: app, record: cloneRecord(t)}
		ids := append(s.topics[app], id)
		slices.SortFunc(ids, storm.MesgID.Compare)
		s.topics[app] = ids
	}
	return id, nil
}

// PutMesg stores a message.
func (s *MemStore) PutMesg(app storm.App, m *storm.Mesg) (storm.MesgID, error) {
	if m == nil {
		return storm.MesgID{}, fmt.Errorf("%w: message", ErrNilParam)
	}
	if err := m.Validate(); err != nil {
		return storm.MesgID{}, err
	}
	id := m.ID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		s.records[id] = memRecord{app: app, record: cloneRecord(m)}
	}
	return id, nil
}

// GetRecord retrieves a topic or message.
func (s *MemStore) GetRecord(id storm.MesgID) (storm.App, storm.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return r.app, cloneRecord(r.record), nil
}

// ListTopics returns the topic ids stored under app.
func (s *MemStore) ListTopics(app storm.App) ([]storm.MesgID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.topics[app]), nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)
