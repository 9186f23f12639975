package storm

import (
	"fmt"
	"unicode/utf8"

	"github.com/stormnet/storm-go/strict"
)

const (
	// ContainerVersion is the only manifest version defined so far.
	ContainerVersion uint16 = 0

	// MaxContainerChunks bounds the manifest to 2^19 chunk references so the
	// serialized index (32 bytes per id) stays below 2^24 bytes. Together with
	// 24-bit chunks this caps a container at 2^43 bytes.
	MaxContainerChunks = 1 << 19

	// chunkIDSize is the encoded size of one chunk reference.
	chunkIDSize = 32
)

// Container is the manifest of one logical payload split into chunks. It
// stores chunk identifiers only; chunk bytes live in a store.
type Container struct {
	// Version of the manifest format.
	Version uint16
	// MIME type of the payload. ASCII only.
	MIME string
	// Info is a free-form UTF-8 description.
	Info string
	// Size is the payload length, expected to equal the sum of the chunk
	// lengths. The core does not enforce it; see CheckSize.
	Size uint64
	// Chunks lists chunk ids in payload order. Duplicates are allowed.
	Chunks []ChunkID
}

// ContainerOption customizes containers built by Split and SplitStream.
type ContainerOption func(*Container)

// WithMIME sets the container MIME type.
func WithMIME(mime string) ContainerOption {
	return func(c *Container) { c.MIME = mime }
}

// WithInfo sets the container description.
func WithInfo(info string) ContainerOption {
	return func(c *Container) { c.Info = info }
}

// Validate checks the structural limits of the manifest.
func (c *Container) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil container", ErrInvalidContainer)
	}
	if len(c.Chunks) > MaxContainerChunks {
		return fmt.Errorf("%w: %d chunk references, max %d", ErrTooLargeData, len(c.Chunks), MaxContainerChunks)
	}
	if len(c.MIME) > strict.MaxLen16 || len(c.Info) > strict.MaxLen16 {
		return fmt.Errorf("%w: mime or info longer than %d bytes", ErrTooLargeData, strict.MaxLen16)
	}
	if !isASCII(c.MIME) {
		return fmt.Errorf("%w: mime type %q is not ASCII", ErrInvalidContainer, c.MIME)
	}
	if !utf8.ValidString(c.Info) {
		return fmt.Errorf("%w: info is not valid UTF-8", ErrInvalidContainer)
	}
	return nil
}

// ID returns the container identifier: the tagged hash of the full
// serialization, so any field change, including chunk order, changes it.
// A container that fails Validate has the zero id.
func (c *Container) ID() ContainerID {
	if c.Validate() != nil {
		return ContainerID{}
	}
	h, err := commitEncoder(containerTag, c)
	if err != nil {
		return ContainerID{}
	}
	return ContainerID(h)
}

// CheckSize reports ErrSizeMismatch if the chunk lengths do not add up to
// Size. chunks must be in manifest order.
func (c *Container) CheckSize(chunks []Chunk) error {
	var total uint64
	for _, ch := range chunks {
		total += uint64(ch.Len())
	}
	if total != c.Size {
		return fmt.Errorf("%w: declared %d, chunks total %d", ErrSizeMismatch, c.Size, total)
	}
	return nil
}

// EncodeStrict writes version, mime, info, size and the chunk list.
func (c *Container) EncodeStrict(w *strict.Writer) {
	w.U16(c.Version)
	w.String16(c.MIME)
	w.String16(c.Info)
	w.U64(c.Size)
	w.Len24(len(c.Chunks))
	for _, id := range c.Chunks {
		WriteChunkID(w, id)
	}
}

// DecodeStrict reads a manifest and enforces MaxContainerChunks, the ASCII
// MIME type and UTF-8 info.
func (c *Container) DecodeStrict(r *strict.Reader) {
	c.Version = r.U16()
	c.MIME = r.String16()
	c.Info = r.String16()
	c.Size = r.U64()
	n := r.Count24(chunkIDSize)
	if n > MaxContainerChunks {
		r.Fail(fmt.Errorf("%w: %d chunk references, max %d", ErrTooLargeData, n, MaxContainerChunks))
		return
	}
	c.Chunks = nil
	if n > 0 {
		c.Chunks = make([]ChunkID, n)
		for i := range c.Chunks {
			c.Chunks[i] = ReadChunkID(r)
		}
	}
	if r.Err() != nil {
		return
	}
	if !isASCII(c.MIME) {
		r.Fail(fmt.Errorf("%w: mime type is not ASCII", strict.ErrInvalidString))
	}
	if !utf8.ValidString(c.Info) {
		r.Fail(fmt.Errorf("%w: info is not UTF-8", strict.ErrInvalidString))
	}
}

// ContainerInfo announces a container without its chunk list.
type ContainerInfo struct {
	FullID     ContainerFullID
	Version    uint16
	MIME       string
	Info       string
	Size       uint64
	ChunkCount uint32
}

// NewContainerInfo summarizes c as referenced by message messageID.
func NewContainerInfo(messageID MesgID, c *Container) ContainerInfo {
	return ContainerInfo{
		FullID:     ContainerFullID{MessageID: messageID, ContainerID: c.ID()},
		Version:    c.Version,
		MIME:       c.MIME,
		Info:       c.Info,
		Size:       c.Size,
		ChunkCount: uint32(len(c.Chunks)),
	}
}

// EncodeStrict writes the announcement.
func (i *ContainerInfo) EncodeStrict(w *strict.Writer) {
	i.FullID.EncodeStrict(w)
	w.U16(i.Version)
	w.String16(i.MIME)
	w.String16(i.Info)
	w.U64(i.Size)
	w.U24(i.ChunkCount)
}

// DecodeStrict reads the announcement.
func (i *ContainerInfo) DecodeStrict(r *strict.Reader) {
	i.FullID.DecodeStrict(r)
	i.Version = r.U16()
	i.MIME = r.String16()
	i.Info = r.String16()
	i.Size = r.U64()
	i.ChunkCount = r.U24()
	if r.Err() == nil && i.ChunkCount > MaxContainerChunks {
		r.Fail(fmt.Errorf("%w: %d chunk references, max %d", ErrTooLargeData, i.ChunkCount, MaxContainerChunks))
	}
}

// String renders the announcement for logs.
func (i ContainerInfo) String() string {
	return fmt.Sprintf("%s, %s, %d bytes in %d chunks", i.FullID, i.MIME, i.Size, i.ChunkCount)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
