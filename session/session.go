// Package session provides the reliable, ordered, encrypted frame transport
// Storm peers talk over. A session is a TCP (or any net.Conn) stream with an
// ephemeral secp256k1 key agreement followed by ChaCha20-Poly1305 framed
// records. Peers are not authenticated.
package session

import (
	"context"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// MaxFrameLen is the largest plaintext frame. It covers a full 2^24-1 byte
// chunk push and a manifest of 2^19 chunk ids with maximal MIME and info
// strings, plus their envelopes.
const MaxFrameLen = 1<<24 + 1<<18

// HandshakeTimeout bounds the key exchange when the caller's context has no
// deadline.
const HandshakeTimeout = 10 * time.Second

// Session is an ordered, reliable frame transport between two peers.
// Send and Recv may be called concurrently with each other.
type Session interface {
	Send(ctx context.Context, frame []byte) error
	Recv(ctx context.Context) ([]byte, error)
	RemoteAddr() string
	Close() error
}

// Conn is a Session over a net.Conn.
type Conn struct {
	conn net.Conn
	send cipher.AEAD
	recv cipher.AEAD

	sendMu  sync.Mutex
	sendSeq uint64
	recvMu  sync.Mutex
	recvSeq uint64

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// Client runs the initiator side of the handshake over conn.
func Client(ctx context.Context, conn net.Conn) (*Conn, error) {
	return newConn(ctx, conn, true)
}

// Server runs the responder side of the handshake over conn.
func Server(ctx context.Context, conn net.Conn) (*Conn, error) {
	return newConn(ctx, conn, false)
}

func newConn(ctx context.Context, conn net.Conn, initiator bool) (*Conn, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(HandshakeTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	k, err := handshake(conn, initiator)
	stop()
	if err != nil {
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	return &Conn{conn: conn, send: k.send, recv: k.recv}, nil
}

// Dial connects to addr over TCP and runs the initiator handshake.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("session: dial %s: %w", addr, err)
	}
	return Client(ctx, conn)
}

// Pipe returns two connected in-memory sessions.
func Pipe(ctx context.Context) (*Conn, *Conn, error) {
	a, b := net.Pipe()
	type result struct {
		c   *Conn
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := Server(ctx, b)
		ch <- result{c, err}
	}()
	client, err := Client(ctx, a)
	res := <-ch
	if err != nil || res.err != nil {
		_ = a.Close()
		_ = b.Close()
		return nil, nil, errors.Join(err, res.err)
	}
	return client, res.c, nil
}

func nonce(seq uint64) []byte {
	n := make([]byte, chacha20poly1305.NonceSize)
	binary.LittleEndian.PutUint64(n[4:], seq)
	return n
}

// watch arms a deadline for one operation from ctx and returns the
// function that disarms it.
func watch(ctx context.Context, set func(time.Time) error) (func(), error) {
	deadline, _ := ctx.Deadline()
	if err := set(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = set(time.Now()) })
	return func() { stop() }, nil
}

func (c *Conn) opErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%w: %s", ErrClosed, op)
	}
	return fmt.Errorf("session: %s: %w", op, err)
}

// Send encrypts and writes one frame.
func (c *Conn) Send(ctx context.Context, frame []byte) error {
	if len(frame) > MaxFrameLen {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	stop, err := watch(ctx, c.conn.SetWriteDeadline)
	if err != nil {
		return c.opErr(ctx, "send", err)
	}
	defer stop()

	buf := make([]byte, 4, 4+len(frame)+c.send.Overhead())
	buf = c.send.Seal(buf, nonce(c.sendSeq), frame, nil)
	binary.BigEndian.PutUint32(buf, uint32(len(buf)-4))
	c.sendSeq++
	if _, err := c.conn.Write(buf); err != nil {
		return c.opErr(ctx, "send", err)
	}
	return nil
}

// recvErr maps a read failure. A stream the remote side closed reads as
// io.EOF; after a local Close the error wraps ErrClosed.
func (c *Conn) recvErr(ctx context.Context, err error) error {
	if ctx.Err() == nil && !c.closed.Load() &&
		(errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed)) {
		return io.EOF
	}
	return c.opErr(ctx, "recv", err)
}

// Recv reads and decrypts one frame. It returns io.EOF once the remote side
// has closed the session, and an error wrapping ErrClosed after Close.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	stop, err := watch(ctx, c.conn.SetReadDeadline)
	if err != nil {
		return nil, c.recvErr(ctx, err)
	}
	defer stop()

	var hdr [4]byte
	if _, err := io.ReadFull(c.conn, hdr[:]); err != nil {
		return nil, c.recvErr(ctx, err)
	}
	n := int(binary.BigEndian.Uint32(hdr[:]))
	if n < c.recv.Overhead() || n > MaxFrameLen+c.recv.Overhead() {
		return nil, fmt.Errorf("%w: %d byte record", ErrFrameTooLarge, n)
	}
	sealed := make([]byte, n)
	if _, err := io.ReadFull(c.conn, sealed); err != nil {
		return nil, c.opErr(ctx, "recv", err)
	}
	frame, err := c.recv.Open(sealed[:0], nonce(c.recvSeq), sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	c.recvSeq++
	if len(frame) == 0 {
		return nil, nil
	}
	return frame, nil
}

// RemoteAddr returns the peer's network address.
func (c *Conn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Listener accepts inbound sessions.
type Listener struct {
	ln net.Listener
}

// Listen opens a TCP listener on addr.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("session: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// AcceptConn waits for a connection without running the handshake. Servers
// that must not let one slow client hold up the others accept here and call
// Server on a separate goroutine.
func (l *Listener) AcceptConn() (net.Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, fmt.Errorf("%w: listener", ErrClosed)
		}
		return nil, fmt.Errorf("session: accept: %w", err)
	}
	return conn, nil
}

// Accept waits for a connection and runs the responder handshake. A failed
// handshake is returned as an error wrapping ErrHandshake; the listener
// stays usable.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	conn, err := l.AcceptConn()
	if err != nil {
		return nil, err
	}
	hctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()
	return Server(hctx, conn)
}

// Close stops the listener.
func (l *Listener) Close() error { return l.ln.Close() }

var _ Session = (*Conn)(nil)
