package p2p

import (
	"fmt"

	"github.com/stormnet/storm-go/storm"
)

// KeyKind groups correlation keys by exchange.
type KeyKind uint8

const (
	KindApps KeyKind = iota + 1
	KindTopics
	// KindSubmit is a proposal or post waiting for Accept or Decline.
	KindSubmit
	// KindRead is a read waiting for the record or a Decline.
	KindRead
	KindContainer
	KindChunk
)

// Key matches a response to the request that caused it. Frames carry no
// sequence numbers; the ids embedded in the payload are the correlation.
// Key is comparable and meant for map lookups.
type Key struct {
	Kind      KeyKind
	App       storm.App
	Mesg      storm.MesgID
	Container storm.ContainerID
	Chunk     storm.ChunkID
}

func (k Key) String() string {
	switch k.Kind {
	case KindApps:
		return "apps"
	case KindTopics:
		return fmt.Sprintf("topics/%s", k.App)
	case KindSubmit:
		return fmt.Sprintf("submit/%s/%s", k.App, k.Mesg)
	case KindRead:
		return fmt.Sprintf("read/%s/%s", k.App, k.Mesg)
	case KindContainer:
		return fmt.Sprintf("container/%s/%s", k.App, k.Container)
	case KindChunk:
		return fmt.Sprintf("chunk/%s/%s", k.App, storm.ChunkFullID{ContainerID: k.Container, ChunkID: k.Chunk})
	default:
		return "none"
	}
}

// ContainerKey is the key of a container pull.
func ContainerKey(app storm.App, id storm.ContainerID) Key {
	return Key{Kind: KindContainer, App: app, Container: id}
}

// ChunkKey is the key of one chunk of a chunk pull.
func ChunkKey(app storm.App, containerID storm.ContainerID, chunkID storm.ChunkID) Key {
	return Key{Kind: KindChunk, App: app, Container: containerID, Chunk: chunkID}
}

// SubmitKey is the key of a topic proposal or a post.
func SubmitKey(app storm.App, id storm.MesgID) Key {
	return Key{Kind: KindSubmit, App: app, Mesg: id}
}

// ReadKey is the key of a read.
func ReadKey(app storm.App, id storm.MesgID) Key {
	return Key{Kind: KindRead, App: app, Mesg: id}
}

// RequestKeys returns the keys under which responses to request will arrive.
// PullChunk yields one key per chunk. Responses and announcements yield none.
func RequestKeys(request Message) []Key {
	switch m := request.(type) {
	case *ListApps:
		return []Key{{Kind: KindApps, App: storm.AppSystem}}
	case *ListTopics:
		return []Key{{Kind: KindTopics, App: m.StormApp}}
	case *ProposeTopic:
		return []Key{SubmitKey(m.StormApp, m.Topic.ID())}
	case *Post:
		return []Key{SubmitKey(m.StormApp, m.Mesg.ID())}
	case *Read:
		return []Key{ReadKey(m.StormApp, m.ID)}
	case *PullContainer:
		return []Key{ContainerKey(m.StormApp, m.FullID.ContainerID)}
	case *PullChunk:
		keys := make([]Key, len(m.ChunkIDs))
		for i, id := range m.ChunkIDs {
			keys[i] = ChunkKey(m.StormApp, m.ContainerID, id)
		}
		return keys
	default:
		return nil
	}
}

// CorrelationKeys returns the keys a response may answer, or nil for
// messages that are only ever requests or announcements. A ProposeTopic or
// Post answers a read of the same id; Accept answers the submission. A
// Decline answers either. A Reject answers the container pull and, by
// extension, every chunk pull of that container.
func CorrelationKeys(response Message) []Key {
	switch m := response.(type) {
	case *ActiveApps:
		return []Key{{Kind: KindApps, App: storm.AppSystem}}
	case *AppTopics:
		return []Key{{Kind: KindTopics, App: m.StormApp}}
	case *ProposeTopic:
		return []Key{ReadKey(m.StormApp, m.Topic.ID())}
	case *Post:
		return []Key{ReadKey(m.StormApp, m.Mesg.ID())}
	case *Decline:
		return []Key{SubmitKey(m.StormApp, m.ID), ReadKey(m.StormApp, m.ID)}
	case *Accept:
		return []Key{SubmitKey(m.StormApp, m.ID)}
	case *PushContainer:
		return []Key{ContainerKey(m.StormApp, m.Container.ID())}
	case *Reject:
		return []Key{ContainerKey(m.StormApp, m.FullID.ContainerID)}
	case *PushChunk:
		return []Key{ChunkKey(m.StormApp, m.ContainerID, m.ChunkID)}
	default:
		return nil
	}
}
