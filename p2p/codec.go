package p2p

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/stormnet/storm-go/strict"
)

// Unmarshaller decodes frames by type code. It is built once and is
// read-only afterwards, so it is safe for concurrent use.
type Unmarshaller struct {
	factories map[Type]func() Message
}

var (
	unmarshallerOnce sync.Once
	unmarshaller     *Unmarshaller
)

// DefaultUnmarshaller returns the process-wide decoder for the wire table.
func DefaultUnmarshaller() *Unmarshaller {
	unmarshallerOnce.Do(func() {
		unmarshaller = &Unmarshaller{factories: map[Type]func() Message{
			TypeListApps:          func() Message { return new(ListApps) },
			TypeActiveApps:        func() Message { return new(ActiveApps) },
			TypeListTopics:        func() Message { return new(ListTopics) },
			TypeAppTopics:         func() Message { return new(AppTopics) },
			TypeProposeTopic:      func() Message { return new(ProposeTopic) },
			TypePost:              func() Message { return new(Post) },
			TypeRead:              func() Message { return new(Read) },
			TypeDecline:           func() Message { return new(Decline) },
			TypeAccept:            func() Message { return new(Accept) },
			TypePullContainer:     func() Message { return new(PullContainer) },
			TypeAnnounceContainer: func() Message { return new(AnnounceContainer) },
			TypeReject:            func() Message { return new(Reject) },
			TypePushContainer:     func() Message { return new(PushContainer) },
			TypePullChunk:         func() Message { return new(PullChunk) },
			TypePushChunk:         func() Message { return new(PushChunk) },
		}}
	})
	return unmarshaller
}

// Types lists the registered type codes in ascending order.
func (u *Unmarshaller) Types() []Type {
	out := make([]Type, 0, len(u.factories))
	for t := range u.factories {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Unmarshal decodes one frame: a u16 type code followed by the variant.
func (u *Unmarshaller) Unmarshal(frame []byte) (Message, error) {
	r := strict.NewReader(frame)
	t := Type(r.U16())
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	newMsg, ok := u.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	msg := newMsg()
	msg.DecodeStrict(r)
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedFrame, t, err)
	}
	return msg, nil
}

// Marshal encodes msg as one frame.
func Marshal(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	w := strict.NewWriter(&buf)
	w.U16(uint16(msg.Type()))
	msg.EncodeStrict(w)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("p2p: encode %s: %w", msg.Type(), err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a frame with the default unmarshaller.
func Unmarshal(frame []byte) (Message, error) {
	return DefaultUnmarshaller().Unmarshal(frame)
}
