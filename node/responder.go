// Package node drives the Storm exchanges over encrypted sessions. A
// Responder answers inbound requests from a store, a Peer multiplexes
// outbound requests and inbound traffic over one session, and a Server
// accepts sessions and runs a Peer for each.
package node

import (
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/stormnet/storm-go/p2p"
	"github.com/stormnet/storm-go/storage"
	"github.com/stormnet/storm-go/storm"
)

// Responder answers requests from the local store. Apps that are not
// registered are declined or rejected.
type Responder struct {
	store storage.Store
	apps  *AppRegistry
	log   *zap.Logger
}

// NewResponder creates a Responder. A nil logger disables logging.
func NewResponder(store storage.Store, apps *AppRegistry, log *zap.Logger) *Responder {
	if log == nil {
		log = zap.NewNop()
	}
	if apps == nil {
		apps = NewAppRegistry()
	}
	return &Responder{store: store, apps: apps, log: log}
}

// Apps returns the registry the responder serves.
func (r *Responder) Apps() *AppRegistry { return r.apps }

// Handle returns the replies to one request, in send order. Responses and
// announcements produce no reply.
func (r *Responder) Handle(msg p2p.Message) []p2p.Message {
	switch m := msg.(type) {
	case *p2p.ListApps:
		return one(&p2p.ActiveApps{Apps: r.apps.Active()})
	case *p2p.ListTopics:
		return one(r.listTopics(m))
	case *p2p.ProposeTopic:
		return r.proposeTopic(m)
	case *p2p.Post:
		return one(r.post(m))
	case *p2p.Read:
		return one(r.read(m))
	case *p2p.PullContainer:
		return one(r.pullContainer(m))
	case *p2p.PullChunk:
		return r.pullChunk(m)
	case *p2p.AnnounceContainer:
		r.log.Info("container announced",
			zap.Stringer("app", m.StormApp),
			zap.Stringer("container", m.Info.FullID),
			zap.Uint64("size", m.Info.Size),
			zap.Uint32("chunks", m.Info.ChunkCount))
		return nil
	default:
		r.log.Debug("no handler", zap.Stringer("message", msg))
		return nil
	}
}

func one(m p2p.Message) []p2p.Message { return []p2p.Message{m} }

func (r *Responder) listTopics(m *p2p.ListTopics) p2p.Message {
	resp := &p2p.AppTopics{StormApp: m.StormApp}
	if _, ok := r.apps.Policy(m.StormApp); !ok {
		return resp
	}
	ids, err := r.store.ListTopics(m.StormApp)
	if err != nil {
		r.log.Warn("list topics failed", zap.Stringer("app", m.StormApp), zap.Error(err))
		return resp
	}
	resp.Topics = ids
	return resp
}

// proposeTopic stores an acceptable topic without replying.
func (r *Responder) proposeTopic(m *p2p.ProposeTopic) []p2p.Message {
	id := m.Topic.ID()
	if err := r.admit(m.StormApp, &m.Topic, m.Topic.Body, m.Topic.Validate()); err != nil {
		r.log.Info("topic declined", zap.Stringer("app", m.StormApp), zap.Stringer("topic", id), zap.Error(err))
		return one(p2p.NewDecline(m.StormApp, id))
	}
	if _, err := r.store.PutTopic(m.StormApp, &m.Topic); err != nil {
		r.log.Warn("store topic failed", zap.Stringer("topic", id), zap.Error(err))
		return one(p2p.NewDecline(m.StormApp, id))
	}
	r.log.Debug("topic accepted", zap.Stringer("app", m.StormApp), zap.Stringer("topic", id))
	return nil
}

// post accepts a message whose parent is known under the same app.
func (r *Responder) post(m *p2p.Post) p2p.Message {
	id := m.Mesg.ID()
	decline := func(reason error) p2p.Message {
		r.log.Info("message declined", zap.Stringer("app", m.StormApp), zap.Stringer("mesg", id), zap.Error(reason))
		return p2p.NewDecline(m.StormApp, id)
	}
	if err := r.admit(m.StormApp, &m.Mesg, m.Mesg.Body, m.Mesg.Validate()); err != nil {
		return decline(err)
	}
	app, _, err := r.store.GetRecord(m.Mesg.ParentID)
	if err != nil {
		return decline(err)
	}
	if app != m.StormApp {
		return decline(errors.New("parent belongs to another app"))
	}
	if _, err := r.store.PutMesg(m.StormApp, &m.Mesg); err != nil {
		return decline(err)
	}
	return p2p.NewAccept(m.StormApp, id)
}

func (r *Responder) admit(app storm.App, rec storm.Record, body []byte, valid error) error {
	if valid != nil {
		return valid
	}
	return r.apps.Check(app, rec, body)
}

func (r *Responder) read(m *p2p.Read) p2p.Message {
	if _, ok := r.apps.Policy(m.StormApp); ok {
		app, rec, err := r.store.GetRecord(m.ID)
		if err == nil && app == m.StormApp {
			switch rec := rec.(type) {
			case *storm.Topic:
				return &p2p.ProposeTopic{StormApp: app, Topic: *rec}
			case *storm.Mesg:
				return &p2p.Post{StormApp: app, Mesg: *rec}
			}
		}
	}
	return p2p.NewDecline(m.StormApp, m.ID)
}

// authorize loads the container a pull asks for, provided the message it
// is pulled through exists under the app and attaches it.
func (r *Responder) authorize(app storm.App, f storm.ContainerFullID) (*storm.Container, error) {
	if _, ok := r.apps.Policy(app); !ok {
		return nil, ErrInactiveApp
	}
	recApp, rec, err := r.store.GetRecord(f.MessageID)
	if err != nil {
		return nil, err
	}
	if recApp != app || !rec.References(f.ContainerID) {
		return nil, errors.New("message does not attach container")
	}
	return r.store.GetContainer(f.ContainerID)
}

func (r *Responder) pullContainer(m *p2p.PullContainer) p2p.Message {
	c, err := r.authorize(m.StormApp, m.FullID)
	if err != nil {
		r.log.Info("container pull rejected", zap.Stringer("app", m.StormApp), zap.Stringer("container", m.FullID), zap.Error(err))
		return p2p.NewReject(m.StormApp, m.FullID.MessageID, m.FullID.ContainerID)
	}
	return &p2p.PushContainer{StormApp: m.StormApp, Container: *c}
}

// pullChunk answers with one PushChunk per requested chunk, or a single
// Reject if any of them cannot be served.
func (r *Responder) pullChunk(m *p2p.PullChunk) []p2p.Message {
	full := storm.ContainerFullID{MessageID: m.MessageID, ContainerID: m.ContainerID}
	reject := func(err error) []p2p.Message {
		r.log.Info("chunk pull rejected", zap.Stringer("app", m.StormApp), zap.Stringer("container", full), zap.Error(err))
		return one(p2p.NewReject(m.StormApp, m.MessageID, m.ContainerID))
	}

	c, err := r.authorize(m.StormApp, full)
	if err != nil {
		return reject(err)
	}
	replies := make([]p2p.Message, 0, len(m.ChunkIDs))
	for _, id := range m.ChunkIDs {
		if !slices.Contains(c.Chunks, id) {
			return reject(errors.New("chunk not in container"))
		}
		ch, err := r.store.GetChunk(id)
		if err != nil {
			return reject(err)
		}
		replies = append(replies, &p2p.PushChunk{StormApp: m.StormApp, ContainerID: m.ContainerID, ChunkID: id, Chunk: ch})
	}
	return replies
}
