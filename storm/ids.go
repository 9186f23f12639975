package storm

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/stormnet/storm-go/commit"
	"github.com/stormnet/storm-go/strict"
)

// Domain-separation labels. They are part of the wire protocol and must not
// change.
const (
	TagChunk     = "storm:chunk"
	TagContainer = "storm:container"
	TagMessage   = "storm:message"
)

// ContainerHRP is the bech32 human-readable part of container ids.
const ContainerHRP = "storm"

var (
	chunkTag     = commit.MustTag(TagChunk)
	containerTag = commit.MustTag(TagContainer)
	mesgTag      = commit.MustTag(TagMessage)
)

// ChunkID identifies a chunk by the tagged hash of its serialization.
type ChunkID commit.Hash

// ContainerID identifies a container manifest.
type ContainerID commit.Hash

// MesgID identifies a topic or a message.
type MesgID commit.Hash

// CommitChunkID commits data under the chunk tag.
func CommitChunkID(data []byte) ChunkID { return ChunkID(chunkTag.Commit(data)) }

// CommitContainerID commits data under the container tag.
func CommitContainerID(data []byte) ContainerID { return ContainerID(containerTag.Commit(data)) }

// CommitMesgID commits data under the message tag.
func CommitMesgID(data []byte) MesgID { return MesgID(mesgTag.Commit(data)) }

// commitEncoder streams v's strict encoding into tag's engine.
func commitEncoder(tag *commit.Tag, v strict.Encoder) (commit.Hash, error) {
	e := tag.Engine()
	w := strict.NewWriter(e)
	v.EncodeStrict(w)
	if err := w.Err(); err != nil {
		return commit.Hash{}, err
	}
	var out commit.Hash
	copy(out[:], e.Sum(nil))
	return out, nil
}

func (id ChunkID) String() string { return commit.Hash(id).String() }
func (id ChunkID) Bytes() []byte { return commit.Hash(id).Bytes() }
func (id ChunkID) Compare(o ChunkID) int { return commit.Hash(id).Compare(commit.Hash(o)) }
func (id ChunkID) IsZero() bool { return commit.Hash(id).IsZero() }
func (id ChunkID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ChunkID) UnmarshalText(text []byte) error {
	h, err := commit.HashFromHex(string(text))
	if err != nil {
		return fmt.Errorf("%w: chunk id: %w", ErrInvalidID, err)
	}
	*id = ChunkID(h)
	return nil
}

func (id MesgID) String() string { return commit.Hash(id).String() }
func (id MesgID) Bytes() []byte { return commit.Hash(id).Bytes() }
func (id MesgID) Compare(o MesgID) int { return commit.Hash(id).Compare(commit.Hash(o)) }
func (id MesgID) IsZero() bool { return commit.Hash(id).IsZero() }
func (id MesgID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *MesgID) UnmarshalText(text []byte) error {
	h, err := commit.HashFromHex(string(text))
	if err != nil {
		return fmt.Errorf("%w: message id: %w", ErrInvalidID, err)
	}
	*id = MesgID(h)
	return nil
}

// String returns the hex form. Use Bech32 for out-of-band sharing.
func (id ContainerID) String() string { return commit.Hash(id).String() }
func (id ContainerID) Bytes() []byte { return commit.Hash(id).Bytes() }
func (id ContainerID) Compare(o ContainerID) int {
	return commit.Hash(id).Compare(commit.Hash(o))
}
func (id ContainerID) IsZero() bool { return commit.Hash(id).IsZero() }

// Bech32 returns the checksummed "storm1..." form of the id.
func (id ContainerID) Bech32() string {
	s, err := bech32.EncodeFromBase256(ContainerHRP, id[:])
	if err != nil {
		// 32 bytes under a fixed HRP always fits the bech32 length limit.
		panic("storm: bech32 encode: " + err.Error())
	}
	return s
}

// MarshalText encodes the id in bech32.
func (id ContainerID) MarshalText() ([]byte, error) { return []byte(id.Bech32()), nil }

// UnmarshalText accepts the bech32 form.
func (id *ContainerID) UnmarshalText(text []byte) error {
	parsed, err := ParseContainerID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseContainerID decodes a bech32 container id, validating the checksum and
// the "storm" human-readable part. bech32m strings are rejected.
func ParseContainerID(s string) (ContainerID, error) {
	hrp, data5, version, err := bech32.DecodeGeneric(s)
	if err != nil {
		return ContainerID{}, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	// bech32m checksums are valid for DecodeGeneric but not for container ids.
	if version != bech32.Version0 {
		return ContainerID{}, fmt.Errorf("%w: not a bech32 checksum", ErrInvalidID)
	}
	if hrp != ContainerHRP {
		return ContainerID{}, fmt.Errorf("%w: got %q", ErrWrongHRP, hrp)
	}
	data, err := bech32.ConvertBits(data5, 5, 8, false)
	if err != nil {
		return ContainerID{}, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	h, err := commit.HashFromBytes(data)
	if err != nil {
		return ContainerID{}, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}
	return ContainerID(h), nil
}

// ContainerIDFromHex parses the hex form produced by String.
func ContainerIDFromHex(s string) (ContainerID, error) {
	h, err := commit.HashFromHex(s)
	if err != nil {
		return ContainerID{}, fmt.Errorf("%w: container id: %w", ErrInvalidID, err)
	}
	return ContainerID(h), nil
}

// ChunkIDFromHex parses a hex chunk id.
func ChunkIDFromHex(s string) (ChunkID, error) {
	var id ChunkID
	err := id.UnmarshalText([]byte(s))
	return id, err
}

// MesgIDFromHex parses a hex message id.
func MesgIDFromHex(s string) (MesgID, error) {
	var id MesgID
	err := id.UnmarshalText([]byte(s))
	return id, err
}

// ChunkFullID locates a chunk within a container.
type ChunkFullID struct {
	ContainerID ContainerID
	ChunkID     ChunkID
}

// String renders "chunk@container".
func (f ChunkFullID) String() string {
	return fmt.Sprintf("%s@%s", f.ChunkID, f.ContainerID)
}

// ContainerFullID names a container together with the message that grants
// access to it.
type ContainerFullID struct {
	MessageID   MesgID
	ContainerID ContainerID
}

// String renders "container@message".
func (f ContainerFullID) String() string {
	return fmt.Sprintf("%s@%s", f.ContainerID, f.MessageID)
}

// EncodeStrict writes message id then container id.
func (f ContainerFullID) EncodeStrict(w *strict.Writer) {
	w.Raw(f.MessageID[:])
	w.Raw(f.ContainerID[:])
}

// DecodeStrict reads a ContainerFullID.
func (f *ContainerFullID) DecodeStrict(r *strict.Reader) {
	f.MessageID = MesgID(r.Array32())
	f.ContainerID = ContainerID(r.Array32())
}

// Helpers shared by the model and the wire codec.

// WriteChunkID writes a raw 32-byte id.
func WriteChunkID(w *strict.Writer, id ChunkID) { w.Raw(id[:]) }

// ReadChunkID reads a raw 32-byte id.
func ReadChunkID(r *strict.Reader) ChunkID { return ChunkID(r.Array32()) }

// WriteContainerID writes a raw 32-byte id.
func WriteContainerID(w *strict.Writer, id ContainerID) { w.Raw(id[:]) }

// ReadContainerID reads a raw 32-byte id.
func ReadContainerID(r *strict.Reader) ContainerID { return ContainerID(r.Array32()) }

// WriteMesgID writes a raw 32-byte id.
func WriteMesgID(w *strict.Writer, id MesgID) { w.Raw(id[:]) }

// ReadMesgID reads a raw 32-byte id.
func ReadMesgID(r *strict.Reader) MesgID { return MesgID(r.Array32()) }

// WriteApp writes an application code.
func WriteApp(w *strict.Writer, app App) { w.U16(app.Code()) }

// ReadApp reads an application code. Every code is valid.
func ReadApp(r *strict.Reader) App { return AppFromCode(r.U16()) }
