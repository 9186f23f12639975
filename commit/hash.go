package commit

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// HashSize is the length of every commitment digest in bytes.
const HashSize = 32

// Hash is a 32-byte commitment digest. The typed identifiers in package storm
// are all defined over it.
type Hash [HashSize]byte

// HashFromBytes copies b into a Hash. b must be exactly HashSize bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: got %d bytes", ErrInvalidHashLen, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a 64-character hex string.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %w", ErrInvalidHex, err)
	}
	return HashFromBytes(b)
}

// Bytes returns a copy of the digest.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// String returns the lowercase hex form of the digest.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Compare orders hashes lexicographically by their bytes.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// IsZero reports whether every byte of the digest is zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}
