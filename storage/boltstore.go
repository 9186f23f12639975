package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/stormnet/storm-go/storm"
	"github.com/stormnet/storm-go/strict"
)

var (
	bucketChunks     = []byte("chunks")
	bucketContainers = []byte("containers")
	bucketRecords    = []byte("records")
	bucketTopics     = []byte("topics_by_app")
)

// BoltStore is a Store backed by a bbolt database. Chunks go to the chunks
// bucket unless an external ChunkStore is configured with WithChunkStore.
type BoltStore struct {
	db          *bbolt.DB
	chunks      ChunkStore
	compression Compression
}

// BoltOption configures a BoltStore.
type BoltOption func(*BoltStore)

// WithCompression sets at-rest compression of chunks kept in the database.
func WithCompression(c Compression) BoltOption {
	return func(s *BoltStore) { s.compression = c }
}

// WithChunkStore keeps chunk bytes in cs instead of the database.
func WithChunkStore(cs ChunkStore) BoltOption {
	return func(s *BoltStore) { s.chunks = cs }
}

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string, opts ...BoltOption) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketChunks, bucketContainers, bucketRecords, bucketTopics} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create buckets: %w", err)
	}

	s := &BoltStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.compression > CompressZstd {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, s.compression)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// topicKey orders the topic index by application, then topic id.
func topicKey(app storm.App, id storm.MesgID) []byte {
	k := make([]byte, 2, 2+len(id))
	binary.BigEndian.PutUint16(k, app.Code())
	return append(k, id[:]...)
}

// PutChunk stores a chunk.
func (s *BoltStore) PutChunk(c storm.Chunk) (storm.ChunkID, error) {
	if s.chunks != nil {
		return s.chunks.PutChunk(c)
	}
	id := c.ID()
	blob, err := seal(c.Bytes(), s.compression)
	if err != nil {
		return id, fmt.Errorf("%w: compress: %w", ErrIOFailure, err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		if b.Get(id[:]) != nil {
			return nil
		}
		if err := b.Put(id[:], blob); err != nil {
			return fmt.Errorf("boltstore: put chunk: %w", err)
		}
		return nil
	})
	return id, err
}

// GetChunk retrieves and verifies a chunk.
func (s *BoltStore) GetChunk(id storm.ChunkID) (storm.Chunk, error) {
	if s.chunks != nil {
		return s.chunks.GetChunk(id)
	}
	var c storm.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		blob := tx.Bucket(bucketChunks).Get(id[:])
		if blob == nil {
			return fmt.Errorf("%w: %s", ErrChunkNotFound, id)
		}
		var err error
		c, err = openChunk(id, blob)
		return err
	})
	return c, err
}

// HasChunk reports whether a chunk is stored.
func (s *BoltStore) HasChunk(id storm.ChunkID) (bool, error) {
	if s.chunks != nil {
		return s.chunks.HasChunk(id)
	}
	return s.has(bucketChunks, id[:])
}

func (s *BoltStore) has(bucket, key []byte) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(bucket).Get(key) != nil
		return nil
	})
	return ok, err
}

// PutContainer stores a manifest in its strict encoding.
func (s *BoltStore) PutContainer(c *storm.Container) (storm.ContainerID, error) {
	if c == nil {
		return storm.ContainerID{}, fmt.Errorf("%w: container", ErrNilParam)
	}
	if err := c.Validate(); err != nil {
		return storm.ContainerID{}, err
	}
	id := c.ID()
	data, err := strict.Serialize(c)
	if err != nil {
		return id, fmt.Errorf("encode container: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketContainers).Put(id[:], data); err != nil {
			return fmt.Errorf("boltstore: put container: %w", err)
		}
		return nil
	})
	return id, err
}

// GetContainer retrieves a manifest.
func (s *BoltStore) GetContainer(id storm.ContainerID) (*storm.Container, error) {
	var c storm.Container
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketContainers).Get(id[:])
		if data == nil {
			return fmt.Errorf("%w: %s", ErrContainerNotFound, id)
		}
		if err := strict.Deserialize(data, &c); err != nil {
			return fmt.Errorf("%w: container %s: %w", ErrCorrupt, id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// HasContainer reports whether a manifest is stored.
func (s *BoltStore) HasContainer(id storm.ContainerID) (bool, error) {
	return s.has(bucketContainers, id[:])
}

// PutTopic stores a topic and indexes it under app.
func (s *BoltStore) PutTopic(app storm.App, t *storm.Topic) (storm.MesgID, error) {
	if t == nil {
		return storm.MesgID{}, fmt.Errorf("%w: topic", ErrNilParam)
	}
	return s.putRecord(app, t, true)
}

// PutMesg stores a message.
func (s *BoltStore) PutMesg(app storm.App, m *storm.Mesg) (storm.MesgID, error) {
	if m == nil {
		return storm.MesgID{}, fmt.Errorf("%w: message", ErrNilParam)
	}
	return s.putRecord(app, m, false)
}

type validator interface {
	Validate() error
}

func (s *BoltStore) putRecord(app storm.App, rec storm.Record, topic bool) (storm.MesgID, error) {
	if v, ok := rec.(validator); ok {
		if err := v.Validate(); err != nil {
			return storm.MesgID{}, err
		}
	}
	id := rec.ID()
	data, err := encodeRecord(app, rec)
	if err != nil {
		return id, fmt.Errorf("encode record: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		rb := tx.Bucket(bucketRecords)
		if rb.Get(id[:]) != nil {
			return nil
		}
		if err := rb.Put(id[:], data); err != nil {
			return fmt.Errorf("boltstore: put record: %w", err)
		}
		if topic {
			if err := tx.Bucket(bucketTopics).Put(topicKey(app, id), []byte{}); err != nil {
				return fmt.Errorf("boltstore: index topic: %w", err)
			}
		}
		return nil
	})
	return id, err
}

// GetRecord retrieves a topic or message.
func (s *BoltStore) GetRecord(id storm.MesgID) (storm.App, storm.Record, error) {
	var (
		app storm.App
		rec storm.Record
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get(id[:])
		if data == nil {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		var err error
		app, rec, err = decodeRecord(data)
		return err
	})
	return app, rec, err
}

// ListTopics returns the topic ids stored under app in ascending order.
func (s *BoltStore) ListTopics(app storm.App) ([]storm.MesgID, error) {
	var out []storm.MesgID
	prefix := binary.BigEndian.AppendUint16(nil, app.Code())
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketTopics).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			var id storm.MesgID
			copy(id[:], k[2:])
			out = append(out, id)
		}
		return nil
	})
	return out, err
}

var _ Store = (*BoltStore)(nil)
