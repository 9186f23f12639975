// Package commit implements tagged (domain-separated) SHA-256 commitments.
//
// A tag is derived from an ASCII label:
//
//	tag_hash = SHA256(label)
//	commit   = SHA256(tag_hash || tag_hash || message)
//
// The first 64 bytes are exactly one SHA-256 block, so the hash state after
// absorbing them (the midstate) is computed once per tag and cloned for every
// commitment.
package commit

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding"
	"hash"

	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
)

// marshaled sha256 state layout: 4-byte magic, 8 big-endian state words,
// 64-byte block buffer, 8-byte length.
const (
	stateMagicLen = 4
	midstateLen   = 32
)

// Tag is a precomputed domain-separation prefix. It is immutable after
// NewTag returns and safe for concurrent use.
type Tag struct {
	label string
	state []byte
}

// NewTag derives the tag midstate for label.
func NewTag(label string) (*Tag, error) {
	if label == "" {
		return nil, ErrEmptyTag
	}
	tagHash := bsvhash.Sha256([]byte(label))

	h := sha256.New()
	h.Write(tagHash)
	h.Write(tagHash)

	state, err := h.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &Tag{label: label, state: state}, nil
}

// MustTag is like NewTag but panics on error. It is intended for package-level
// tag constants built from literal labels.
func MustTag(label string) *Tag {
	t, err := NewTag(label)
	if err != nil {
		panic(err)
	}
	return t
}

// Label returns the ASCII label the tag was derived from.
func (t *Tag) Label() string { return t.label }

// Midstate returns the SHA-256 state words after absorbing
// tag_hash || tag_hash, serialized big-endian.
func (t *Tag) Midstate() [midstateLen]byte {
	var m [midstateLen]byte
	copy(m[:], t.state[stateMagicLen:stateMagicLen+midstateLen])
	return m
}

// Engine returns a fresh hash positioned right after the tag prefix. Writes
// to it continue the tagged hash; Sum produces the commitment.
func (t *Tag) Engine() hash.Hash {
	h := sha256.New()
	if err := h.(encoding.BinaryUnmarshaler).UnmarshalBinary(t.state); err != nil {
		// The state was produced by MarshalBinary of the same implementation.
		panic("commit: corrupt tag midstate: " + err.Error())
	}
	return h
}

// Commit returns the tagged hash of msg.
func (t *Tag) Commit(msg []byte) Hash {
	e := t.Engine()
	e.Write(msg)
	var out Hash
	copy(out[:], e.Sum(nil))
	return out
}

// Verify recomputes the commitment of msg and compares it with h.
func (t *Tag) Verify(h Hash, msg []byte) bool {
	c := t.Commit(msg)
	return subtle.ConstantTimeCompare(c[:], h[:]) == 1
}
