package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormnet/storm-go/storm"
)

func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"mem": func(t *testing.T) Store { return NewMemStore() },
		"bolt": func(t *testing.T) Store {
			s, err := OpenBoltStore(filepath.Join(t.TempDir(), "storm.db"), WithCompression(CompressZstd))
			require.NoError(t, err)
			return s
		},
		"bolt+files": func(t *testing.T) Store {
			fs, err := NewFileStore(filepath.Join(t.TempDir(), "chunks"), CompressGzip)
			require.NoError(t, err)
			s, err := OpenBoltStore(filepath.Join(t.TempDir(), "storm.db"), WithChunkStore(fs))
			require.NoError(t, err)
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, open := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func TestStore_Chunks(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		c := makeChunk(t, 0x11, 1000)
		id, err := s.PutChunk(c)
		require.NoError(t, err)
		assert.Equal(t, c.ID(), id)

		_, err = s.PutChunk(c)
		require.NoError(t, err)

		got, err := s.GetChunk(id)
		require.NoError(t, err)
		assert.Equal(t, c.Bytes(), got.Bytes())

		ok, err := s.HasChunk(id)
		require.NoError(t, err)
		assert.True(t, ok)

		missing := makeChunk(t, 0x12, 1).ID()
		_, err = s.GetChunk(missing)
		assert.ErrorIs(t, err, storm.ErrChunkNotFound)
		ok, err = s.HasChunk(missing)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_Containers(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		payload := []byte("container payload spread over several chunks")
		c, chunks, err := storm.Split(payload, 8, storm.WithMIME("text/plain"), storm.WithInfo("test"))
		require.NoError(t, err)

		for _, ch := range chunks {
			_, err := s.PutChunk(ch)
			require.NoError(t, err)
		}
		id, err := s.PutContainer(c)
		require.NoError(t, err)
		assert.Equal(t, c.ID(), id)

		got, err := s.GetContainer(id)
		require.NoError(t, err)
		assert.Equal(t, c, got)

		ok, err := s.HasContainer(id)
		require.NoError(t, err)
		assert.True(t, ok)

		out, err := storm.Reassemble(got, Lookup(s))
		require.NoError(t, err)
		assert.Equal(t, payload, out)

		_, err = s.GetContainer(storm.ContainerID{1})
		assert.ErrorIs(t, err, ErrContainerNotFound)

		_, err = s.PutContainer(nil)
		assert.ErrorIs(t, err, ErrNilParam)
	})
}

func TestStore_Records(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		cid := storm.CommitContainerID([]byte("c"))
		topic, err := storm.NewTopic([]byte("root"), cid)
		require.NoError(t, err)
		tid, err := s.PutTopic(storm.AppChat, topic)
		require.NoError(t, err)
		assert.Equal(t, topic.ID(), tid)

		reply, err := storm.Reply(tid, []byte("reply"))
		require.NoError(t, err)
		mid, err := s.PutMesg(storm.AppChat, reply)
		require.NoError(t, err)

		app, rec, err := s.GetRecord(tid)
		require.NoError(t, err)
		assert.Equal(t, storm.AppChat, app)
		require.IsType(t, &storm.Topic{}, rec)
		assert.Equal(t, topic, rec)
		assert.True(t, rec.References(cid))

		app, rec, err = s.GetRecord(mid)
		require.NoError(t, err)
		assert.Equal(t, storm.AppChat, app)
		assert.Equal(t, reply, rec)

		_, _, err = s.GetRecord(storm.MesgID{9})
		assert.ErrorIs(t, err, ErrRecordNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_ListTopics(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		var chat []storm.MesgID
		for _, body := range []string{"a", "b", "c"} {
			topic, err := storm.NewTopic([]byte(body))
			require.NoError(t, err)
			id, err := s.PutTopic(storm.AppChat, topic)
			require.NoError(t, err)
			chat = append(chat, id)
		}
		other, err := storm.NewTopic([]byte("search"))
		require.NoError(t, err)
		_, err = s.PutTopic(storm.AppSearch, other)
		require.NoError(t, err)

		reply, err := storm.Reply(chat[0], []byte("not a topic"))
		require.NoError(t, err)
		_, err = s.PutMesg(storm.AppChat, reply)
		require.NoError(t, err)

		got, err := s.ListTopics(storm.AppChat)
		require.NoError(t, err)
		assert.ElementsMatch(t, chat, got)
		assert.IsIncreasing(t, hexIDs(got))

		got, err = s.ListTopics(storm.AppSearch)
		require.NoError(t, err)
		assert.Equal(t, []storm.MesgID{other.ID()}, got)

		got, err = s.ListTopics(storm.AppStorage)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func hexIDs(ids []storm.MesgID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storm.db")
	s, err := OpenBoltStore(path, WithCompression(CompressGzip))
	require.NoError(t, err)

	c := makeChunk(t, 0x33, 4096)
	id, err := s.PutChunk(c)
	require.NoError(t, err)
	topic, err := storm.NewTopic([]byte("persisted"))
	require.NoError(t, err)
	tid, err := s.PutTopic(storm.AppStorage, topic)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Chunks written gzip-compressed stay readable under a new setting.
	s, err = OpenBoltStore(path, WithCompression(CompressNone))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetChunk(id)
	require.NoError(t, err)
	assert.Equal(t, c.Bytes(), got.Bytes())

	ids, err := s.ListTopics(storm.AppStorage)
	require.NoError(t, err)
	assert.Equal(t, []storm.MesgID{tid}, ids)
}

func TestOpenBoltStore_InvalidCompression(t *testing.T) {
	_, err := OpenBoltStore(filepath.Join(t.TempDir(), "x.db"), WithCompression(Compression(7)))
	assert.ErrorIs(t, err, ErrUnsupportedCompression)
}
