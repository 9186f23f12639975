package storm

import (
	"fmt"
	"slices"

	"github.com/stormnet/storm-go/strict"
)

const (
	// MaxBodyLen is the largest topic or message body.
	MaxBodyLen = strict.MaxLen16

	// MaxAttachments is the largest number of distinct containers one topic
	// or message can reference.
	MaxAttachments = strict.MaxLen16
)

// Record is implemented by Topic and Mesg.
type Record interface {
	ID() MesgID
	Attachments() []ContainerID
	References(id ContainerID) bool
}

// Topic is a thread root: an opaque body plus container attachments.
// Attachments form a set; constructors sort and deduplicate them.
type Topic struct {
	Body         []byte
	ContainerIDs []ContainerID
}

// NewTopic builds a topic. It fails with ErrTooLargeData when the body or
// the attachment set exceeds its capacity.
func NewTopic(body []byte, ids ...ContainerID) (*Topic, error) {
	t := &Topic{
		Body:         cloneBytes(body),
		ContainerIDs: strict.SortedSet(ids, ContainerID.Compare),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks body and attachment capacities.
func (t *Topic) Validate() error {
	return validateRecord(t.Body, t.ContainerIDs)
}

// ID returns the tagged hash of the topic. Invalid topics have the zero id.
func (t *Topic) ID() MesgID {
	if t.Validate() != nil {
		return MesgID{}
	}
	h, err := commitEncoder(mesgTag, t)
	if err != nil {
		return MesgID{}
	}
	return MesgID(h)
}

// Attachments returns the referenced containers.
func (t *Topic) Attachments() []ContainerID { return t.ContainerIDs }

// References reports whether the topic attaches container id.
func (t *Topic) References(id ContainerID) bool { return slices.Contains(t.ContainerIDs, id) }

// EncodeStrict writes the body and the sorted attachment set.
func (t *Topic) EncodeStrict(w *strict.Writer) {
	w.Bytes16(t.Body)
	strict.WriteSet16(w, t.ContainerIDs, ContainerID.Compare, WriteContainerID)
}

// DecodeStrict reads a topic, rejecting unsorted or repeated attachments.
func (t *Topic) DecodeStrict(r *strict.Reader) {
	t.Body = r.Bytes16()
	t.ContainerIDs = strict.ReadSet16(r, 32, ContainerID.Compare, ReadContainerID)
}

// Mesg is a reply to a topic or another message.
type Mesg struct {
	ParentID     MesgID
	Body         []byte
	ContainerIDs []ContainerID
}

// Reply builds a message answering parent. Whether parent exists is for the
// receiving peer to decide.
func Reply(parent MesgID, body []byte, ids ...ContainerID) (*Mesg, error) {
	m := &Mesg{
		ParentID:     parent,
		Body:         cloneBytes(body),
		ContainerIDs: strict.SortedSet(ids, ContainerID.Compare),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks body and attachment capacities.
func (m *Mesg) Validate() error {
	return validateRecord(m.Body, m.ContainerIDs)
}

// ID returns the tagged hash of the message. Invalid messages have the zero id.
func (m *Mesg) ID() MesgID {
	if m.Validate() != nil {
		return MesgID{}
	}
	h, err := commitEncoder(mesgTag, m)
	if err != nil {
		return MesgID{}
	}
	return MesgID(h)
}

// Attachments returns the referenced containers.
func (m *Mesg) Attachments() []ContainerID { return m.ContainerIDs }

// References reports whether the message attaches container id.
func (m *Mesg) References(id ContainerID) bool { return slices.Contains(m.ContainerIDs, id) }

// EncodeStrict writes the parent id followed by the topic layout.
func (m *Mesg) EncodeStrict(w *strict.Writer) {
	WriteMesgID(w, m.ParentID)
	w.Bytes16(m.Body)
	strict.WriteSet16(w, m.ContainerIDs, ContainerID.Compare, WriteContainerID)
}

// DecodeStrict reads a message, rejecting unsorted or repeated attachments.
func (m *Mesg) DecodeStrict(r *strict.Reader) {
	m.ParentID = ReadMesgID(r)
	m.Body = r.Bytes16()
	m.ContainerIDs = strict.ReadSet16(r, 32, ContainerID.Compare, ReadContainerID)
}

func validateRecord(body []byte, ids []ContainerID) error {
	if len(body) > MaxBodyLen {
		return fmt.Errorf("%w: body of %d bytes, max %d", ErrTooLargeData, len(body), MaxBodyLen)
	}
	if len(ids) > MaxAttachments && len(strict.SortedSet(ids, ContainerID.Compare)) > MaxAttachments {
		return fmt.Errorf("%w: more than %d attachments", ErrTooLargeData, MaxAttachments)
	}
	return nil
}

var (
	_ Record = (*Topic)(nil)
	_ Record = (*Mesg)(nil)
)
