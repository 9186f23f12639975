package session

import (
	"bytes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// helloMagic opens every handshake message.
	helloMagic = "STRM"

	// protocolVersion is bumped on incompatible framing changes.
	protocolVersion byte = 1

	pubKeyLen = 33
	helloLen  = len(helloMagic) + 1 + pubKeyLen

	infoInitiator = "storm-session initiator"
	infoResponder = "storm-session responder"
)

// keys holds the per-direction AEADs derived from one handshake.
type keys struct {
	send   cipher.AEAD
	recv   cipher.AEAD
	remote *ec.PublicKey
}

func hello(pub *ec.PublicKey) []byte {
	b := make([]byte, 0, helloLen)
	b = append(b, helloMagic...)
	b = append(b, protocolVersion)
	return append(b, pub.Compressed()...)
}

func parseHello(b []byte) (*ec.PublicKey, error) {
	if !bytes.HasPrefix(b, []byte(helloMagic)) {
		return nil, fmt.Errorf("%w: bad magic", ErrHandshake)
	}
	if v := b[len(helloMagic)]; v != protocolVersion {
		return nil, fmt.Errorf("%w: protocol version %d, want %d", ErrHandshake, v, protocolVersion)
	}
	pub, err := ec.PublicKeyFromBytes(b[len(helloMagic)+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: peer key: %w", ErrHandshake, err)
	}
	return pub, nil
}

// handshake exchanges ephemeral secp256k1 keys over rw. The initiator
// writes first and the responder reads first, so it also works over
// unbuffered pipes.
func handshake(rw io.ReadWriter, initiator bool) (*keys, error) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: generate key: %w", ErrHandshake, err)
	}
	local := hello(priv.PubKey())
	remote := make([]byte, helloLen)

	if initiator {
		if _, err := rw.Write(local); err != nil {
			return nil, fmt.Errorf("%w: write hello: %w", ErrHandshake, err)
		}
		if _, err := io.ReadFull(rw, remote); err != nil {
			return nil, fmt.Errorf("%w: read hello: %w", ErrHandshake, err)
		}
	} else {
		if _, err := io.ReadFull(rw, remote); err != nil {
			return nil, fmt.Errorf("%w: read hello: %w", ErrHandshake, err)
		}
		if _, err := rw.Write(local); err != nil {
			return nil, fmt.Errorf("%w: write hello: %w", ErrHandshake, err)
		}
	}

	peer, err := parseHello(remote)
	if err != nil {
		return nil, err
	}
	shared, err := sharedSecret(priv, peer)
	if err != nil {
		return nil, err
	}

	// The transcript salts both keys so each session gets fresh ones.
	var transcript []byte
	if initiator {
		transcript = append(append(transcript, local...), remote...)
	} else {
		transcript = append(append(transcript, remote...), local...)
	}
	i2r, err := deriveAEAD(shared, transcript, infoInitiator)
	if err != nil {
		return nil, err
	}
	r2i, err := deriveAEAD(shared, transcript, infoResponder)
	if err != nil {
		return nil, err
	}

	if initiator {
		return &keys{send: i2r, recv: r2i, remote: peer}, nil
	}
	return &keys{send: r2i, recv: i2r, remote: peer}, nil
}

// sharedSecret returns the x-coordinate of priv*pub, zero-padded to 32 bytes.
func sharedSecret(priv *ec.PrivateKey, pub *ec.PublicKey) ([]byte, error) {
	point, err := priv.DeriveSharedSecret(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: ECDH: %w", ErrHandshake, err)
	}
	x := point.X.Bytes()
	out := make([]byte, 32)
	copy(out[32-len(x):], x)
	return out, nil
}

func deriveAEAD(secret, salt []byte, info string) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("%w: derive key: %w", ErrHandshake, err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	return aead, nil
}
