package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stormnet/storm-go/p2p"
	"github.com/stormnet/storm-go/session"
	"github.com/stormnet/storm-go/storage"
	"github.com/stormnet/storm-go/storm"
)

const (
	// DefaultProposeWindow is how long ProposeTopic waits for a Decline
	// before treating silence as acceptance.
	DefaultProposeWindow = 2 * time.Second

	// MaxPullBatch bounds the chunk ids sent in one PullChunk.
	MaxPullBatch = 1024

	// requestQueue is the number of inbound requests buffered ahead of
	// the responder before the read loop blocks.
	requestQueue = 64

	// maxExpiredReads bounds the reads remembered after their caller gave up.
	maxExpiredReads = 256
)

// PeerOption configures a Peer.
type PeerOption func(*Peer)

// WithResponder answers the remote side's requests with r. Without a
// responder inbound requests are dropped.
func WithResponder(r *Responder) PeerOption {
	return func(p *Peer) { p.responder = r }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) PeerOption {
	return func(p *Peer) {
		if log != nil {
			p.log = log
		}
	}
}

// WithProposeWindow sets how long ProposeTopic waits for a Decline.
func WithProposeWindow(d time.Duration) PeerOption {
	return func(p *Peer) {
		if d > 0 {
			p.window = d
		}
	}
}

// call is one pending exchange. done is closed once resp or err is set.
type call struct {
	done    chan struct{}
	resp    p2p.Message
	err     error
	waiters int
}

// Peer runs the protocol over one session. Responses are matched to
// pending requests by correlation key; concurrent requests for the same
// key share one exchange. Run must be running for requests to complete.
type Peer struct {
	sess      session.Session
	addr      string
	responder *Responder
	log       *zap.Logger
	window    time.Duration

	mu       sync.Mutex
	pending  map[p2p.Key]*call
	closed   bool
	closeErr error
	// expired holds reads abandoned before their answer arrived, oldest
	// first, so a late record is dropped instead of served as a proposal.
	expired []p2p.Key
}

// NewPeer wraps sess.
func NewPeer(sess session.Session, opts ...PeerOption) *Peer {
	p := &Peer{
		sess:    sess,
		addr:    sess.RemoteAddr(),
		log:     zap.NewNop(),
		window:  DefaultProposeWindow,
		pending: make(map[p2p.Key]*call),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.String("peer", p.addr))
	return p
}

// RemoteAddr returns the remote session address.
func (p *Peer) RemoteAddr() string { return p.addr }

// Close closes the session. Run returns shortly after.
func (p *Peer) Close() error { return p.sess.Close() }

// Run reads frames until the session ends or ctx is done, delivering
// responses to pending requests and handing requests to the responder.
// Pending requests fail with ErrPeerClosed when Run returns. A session
// closed by either side yields a nil error.
func (p *Peer) Run(ctx context.Context) error {
	hctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reqs := make(chan p2p.Message, requestQueue)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.serve(hctx, reqs)
	}()

	var err error
	for {
		var frame []byte
		frame, err = p.sess.Recv(ctx)
		if err != nil {
			break
		}
		msg, uerr := p2p.Unmarshal(frame)
		if uerr != nil {
			p.log.Warn("dropping frame", zap.Error(uerr))
			continue
		}
		p.log.Debug("received", zap.Stringer("message", msg))
		if p.deliver(msg) {
			continue
		}
		if p.responder == nil {
			p.log.Debug("unsolicited message", zap.Stringer("message", msg))
			continue
		}
		select {
		case reqs <- msg:
		case <-ctx.Done():
		}
	}

	p.fail(err)
	cancel()
	close(reqs)
	wg.Wait()

	if errors.Is(err, io.EOF) || errors.Is(err, session.ErrClosed) {
		return nil
	}
	return err
}

// serve answers requests in arrival order.
func (p *Peer) serve(ctx context.Context, reqs <-chan p2p.Message) {
	for msg := range reqs {
		if ctx.Err() != nil {
			continue
		}
		for _, reply := range p.responder.Handle(msg) {
			if err := p.send(ctx, reply); err != nil {
				p.log.Warn("reply failed", zap.Stringer("message", reply), zap.Error(err))
				break
			}
		}
	}
}

func (p *Peer) send(ctx context.Context, msg p2p.Message) error {
	frame, err := p2p.Marshal(msg)
	if err != nil {
		return err
	}
	if err := p.sess.Send(ctx, frame); err != nil {
		return fmt.Errorf("node: send %s: %w", msg.Type(), err)
	}
	p.log.Debug("sent", zap.Stringer("message", msg))
	return nil
}

// deliver completes the pending calls msg answers. A Reject completes the
// container pull and every chunk pull of the same container. A record that
// answers an abandoned read is consumed and dropped.
func (p *Peer) deliver(msg p2p.Message) bool {
	keys := p2p.CorrelationKeys(msg)
	if len(keys) == 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	found := false
	for _, k := range keys {
		found = p.complete(k, msg, nil) || found
	}
	if rej, ok := msg.(*p2p.Reject); ok {
		for k := range p.pending {
			if k.Kind == p2p.KindChunk && k.App == rej.StormApp && k.Container == rej.FullID.ContainerID {
				found = p.complete(k, msg, nil) || found
			}
		}
	}
	if !found {
		for _, k := range keys {
			if k.Kind == p2p.KindRead && p.forgetExpired(k) {
				p.log.Debug("dropping late read answer", zap.Stringer("message", msg))
				return true
			}
		}
	}
	return found
}

// forgetExpired reports whether k was an abandoned read and removes it.
// It must be called with mu held.
func (p *Peer) forgetExpired(k p2p.Key) bool {
	for i, e := range p.expired {
		if e == k {
			p.expired = append(p.expired[:i], p.expired[i+1:]...)
			return true
		}
	}
	return false
}

// complete must be called with mu held.
func (p *Peer) complete(key p2p.Key, resp p2p.Message, err error) bool {
	c, ok := p.pending[key]
	if !ok {
		return false
	}
	delete(p.pending, key)
	c.resp, c.err = resp, err
	close(c.done)
	return true
}

func (p *Peer) fail(err error) {
	cause := ErrPeerClosed
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, session.ErrClosed) {
		cause = fmt.Errorf("%w: %w", ErrPeerClosed, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closeErr = cause
	for k := range p.pending {
		p.complete(k, nil, cause)
	}
}

func (p *Peer) abort(keys []p2p.Key, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		p.complete(k, nil, err)
	}
}

// register joins or creates the pending calls for keys. fresh lists the
// keys nobody has requested yet; the caller must send for those.
func (p *Peer) register(keys []p2p.Key) (calls []*call, fresh []p2p.Key, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil, p.closeErr
	}
	calls = make([]*call, len(keys))
	for i, k := range keys {
		c, ok := p.pending[k]
		if !ok {
			c = &call{done: make(chan struct{})}
			p.pending[k] = c
			fresh = append(fresh, k)
		}
		c.waiters++
		calls[i] = c
	}
	return calls, fresh, nil
}

// release drops this caller's interest. Calls nobody waits for any more
// are forgotten; a late response to them is then unsolicited, except for
// reads, whose late answer is dropped.
func (p *Peer) release(keys []p2p.Key, calls []*call) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, k := range keys {
		c := calls[i]
		c.waiters--
		if c.waiters == 0 && p.pending[k] == c {
			delete(p.pending, k)
			if k.Kind == p2p.KindRead {
				p.expire(k)
			}
		}
	}
}

// expire remembers an unanswered read. It must be called with mu held.
func (p *Peer) expire(k p2p.Key) {
	if len(p.expired) == maxExpiredReads {
		p.expired = p.expired[1:]
	}
	p.expired = append(p.expired, k)
}

// request registers req and sends it unless an identical exchange is
// already in flight.
func (p *Peer) request(ctx context.Context, req p2p.Message) ([]p2p.Key, []*call, error) {
	keys := p2p.RequestKeys(req)
	calls, fresh, err := p.register(keys)
	if err != nil {
		return nil, nil, err
	}
	if len(fresh) > 0 {
		if err := p.send(ctx, req); err != nil {
			p.abort(fresh, err)
			p.release(keys, calls)
			return nil, nil, err
		}
	}
	return keys, calls, nil
}

func wait(ctx context.Context, c *call) (p2p.Message, error) {
	select {
	case <-c.done:
		return c.resp, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// roundTrip sends a single-key request and waits for its response.
func (p *Peer) roundTrip(ctx context.Context, req p2p.Message) (p2p.Message, error) {
	keys, calls, err := p.request(ctx, req)
	if err != nil {
		return nil, err
	}
	defer p.release(keys, calls)
	return wait(ctx, calls[0])
}

func unexpected(resp p2p.Message) error {
	return fmt.Errorf("%w: %s", ErrUnexpectedResponse, resp)
}

func declined(app storm.App, id storm.MesgID) error {
	return fmt.Errorf("%w: %s %s", ErrDeclined, app, id)
}

// ListApps asks which applications the remote peer serves.
func (p *Peer) ListApps(ctx context.Context) ([]storm.App, error) {
	resp, err := p.roundTrip(ctx, &p2p.ListApps{})
	if err != nil {
		return nil, err
	}
	if r, ok := resp.(*p2p.ActiveApps); ok {
		return r.Apps, nil
	}
	return nil, unexpected(resp)
}

// ListTopics asks for the topic ids the remote peer holds under app.
func (p *Peer) ListTopics(ctx context.Context, app storm.App) ([]storm.MesgID, error) {
	resp, err := p.roundTrip(ctx, &p2p.ListTopics{StormApp: app})
	if err != nil {
		return nil, err
	}
	if r, ok := resp.(*p2p.AppTopics); ok {
		return r.Topics, nil
	}
	return nil, unexpected(resp)
}

// ProposeTopic offers t under app. Acceptance is silent: the proposal
// counts as accepted when no Decline arrives within the propose window.
func (p *Peer) ProposeTopic(ctx context.Context, app storm.App, t *storm.Topic) error {
	if t == nil {
		return ErrNilParam
	}
	keys, calls, err := p.request(ctx, &p2p.ProposeTopic{StormApp: app, Topic: *t})
	if err != nil {
		return err
	}
	defer p.release(keys, calls)

	timer := time.NewTimer(p.window)
	defer timer.Stop()
	select {
	case <-calls[0].done:
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	c := calls[0]
	if c.err != nil {
		return c.err
	}
	switch c.resp.(type) {
	case *p2p.Decline:
		return declined(app, t.ID())
	case *p2p.Accept:
		return nil
	default:
		return unexpected(c.resp)
	}
}

// Post sends m under app and waits for Accept or Decline.
func (p *Peer) Post(ctx context.Context, app storm.App, m *storm.Mesg) error {
	if m == nil {
		return ErrNilParam
	}
	resp, err := p.roundTrip(ctx, &p2p.Post{StormApp: app, Mesg: *m})
	if err != nil {
		return err
	}
	switch resp.(type) {
	case *p2p.Accept:
		return nil
	case *p2p.Decline:
		return declined(app, m.ID())
	default:
		return unexpected(resp)
	}
}

// Read fetches the topic or message id under app. The result is a
// *storm.Topic or a *storm.Mesg.
func (p *Peer) Read(ctx context.Context, app storm.App, id storm.MesgID) (storm.Record, error) {
	resp, err := p.roundTrip(ctx, p2p.NewRead(app, id))
	if err != nil {
		return nil, err
	}
	switch r := resp.(type) {
	case *p2p.ProposeTopic:
		return &r.Topic, nil
	case *p2p.Post:
		return &r.Mesg, nil
	case *p2p.Decline:
		return nil, declined(app, id)
	default:
		return nil, unexpected(resp)
	}
}

// Announce tells the remote peer about a container. There is no reply.
func (p *Peer) Announce(ctx context.Context, app storm.App, info storm.ContainerInfo) error {
	return p.send(ctx, &p2p.AnnounceContainer{StormApp: app, Info: info})
}

// PullContainer fetches the manifest of containerID, authorized by the
// message messageID. A Reject yields ErrRejected.
func (p *Peer) PullContainer(ctx context.Context, app storm.App, messageID storm.MesgID, containerID storm.ContainerID) (*storm.Container, error) {
	resp, err := p.roundTrip(ctx, p2p.NewPullContainer(app, messageID, containerID))
	if err != nil {
		return nil, err
	}
	switch r := resp.(type) {
	case *p2p.PushContainer:
		return &r.Container, nil
	case *p2p.Reject:
		return nil, fmt.Errorf("%w: %s", ErrRejected, r.FullID)
	default:
		return nil, unexpected(resp)
	}
}

// PullChunks fetches chunks of containerID. Duplicate ids are requested
// once; the result holds the distinct chunks in first-seen order. Chunks
// already in flight for this peer are awaited rather than requested again.
func (p *Peer) PullChunks(ctx context.Context, app storm.App, messageID storm.MesgID, containerID storm.ContainerID, ids []storm.ChunkID) ([]storm.Chunk, error) {
	seen := make(map[storm.ChunkID]bool, len(ids))
	keys := make([]p2p.Key, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			keys = append(keys, p2p.ChunkKey(app, containerID, id))
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	calls, fresh, err := p.register(keys)
	if err != nil {
		return nil, err
	}
	defer p.release(keys, calls)

	for start := 0; start < len(fresh); start += MaxPullBatch {
		batch := fresh[start:min(start+MaxPullBatch, len(fresh))]
		chunkIDs := make([]storm.ChunkID, len(batch))
		for i, k := range batch {
			chunkIDs[i] = k.Chunk
		}
		if err := p.send(ctx, p2p.NewPullChunk(app, messageID, containerID, chunkIDs...)); err != nil {
			p.abort(fresh[start:], err)
			return nil, err
		}
	}

	chunks := make([]storm.Chunk, len(calls))
	for i, c := range calls {
		resp, err := wait(ctx, c)
		if err != nil {
			return nil, err
		}
		switch r := resp.(type) {
		case *p2p.PushChunk:
			if r.Chunk.ID() != r.ChunkID {
				return nil, fmt.Errorf("%w: %s", storm.ErrChunkMismatch, r.ChunkID)
			}
			chunks[i] = r.Chunk
		case *p2p.Reject:
			return nil, fmt.Errorf("%w: %s", ErrRejected, r.FullID)
		default:
			return nil, unexpected(resp)
		}
	}
	return chunks, nil
}

// Source adapts the peer to a storage.ChunkSource for app.
func (p *Peer) Source(app storm.App) storage.ChunkSource {
	return peerSource{peer: p, app: app}
}

type peerSource struct {
	peer *Peer
	app  storm.App
}

func (s peerSource) FetchChunks(ctx context.Context, messageID storm.MesgID, containerID storm.ContainerID, ids []storm.ChunkID) ([]storm.Chunk, error) {
	return s.peer.PullChunks(ctx, s.app, messageID, containerID, ids)
}

// Fetch pulls container containerID and any chunks local lacks, caches
// both in local and returns the manifest and reassembled payload. The
// payload length must match the declared size.
func (p *Peer) Fetch(ctx context.Context, app storm.App, messageID storm.MesgID, containerID storm.ContainerID, local storage.Store) (*storm.Container, []byte, error) {
	if local == nil {
		return nil, nil, ErrNilParam
	}
	c, err := p.PullContainer(ctx, app, messageID, containerID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := local.PutContainer(c); err != nil {
		return nil, nil, fmt.Errorf("node: cache container: %w", err)
	}

	payload, err := storage.NewResolver(local, p.Source(app)).Resolve(ctx, messageID, c)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(payload)) != c.Size {
		return nil, nil, fmt.Errorf("%w: declared %d, chunks total %d", storm.ErrSizeMismatch, c.Size, len(payload))
	}
	p.log.Info("container fetched",
		zap.Stringer("app", app),
		zap.Stringer("container", storm.ContainerFullID{MessageID: messageID, ContainerID: containerID}),
		zap.Int("bytes", len(payload)))
	return c, payload, nil
}

// Connect dials target, a host:port or a domain resolved through SRV
// records, and wraps the session. The caller runs the returned peer.
func Connect(ctx context.Context, target string, resolver session.DNSResolver, opts ...PeerOption) (*Peer, error) {
	conn, err := session.DialTarget(ctx, target, resolver)
	if err != nil {
		return nil, err
	}
	return NewPeer(conn, opts...), nil
}
