package storage

import (
	"bytes"
	"fmt"

	"github.com/stormnet/storm-go/storm"
	"github.com/stormnet/storm-go/strict"
)

const (
	recordTopic uint8 = 1
	recordMesg  uint8 = 2
)

// storedRecord is the at-rest form of a topic or message: a kind byte, the
// application code and the strict encoding of the record.
type storedRecord struct {
	app    storm.App
	record storm.Record
}

func (s *storedRecord) EncodeStrict(w *strict.Writer) {
	switch rec := s.record.(type) {
	case *storm.Topic:
		w.U8(recordTopic)
		storm.WriteApp(w, s.app)
		rec.EncodeStrict(w)
	case *storm.Mesg:
		w.U8(recordMesg)
		storm.WriteApp(w, s.app)
		rec.EncodeStrict(w)
	default:
		w.Fail(fmt.Errorf("%w: record type %T", ErrCorrupt, s.record))
	}
}

func (s *storedRecord) DecodeStrict(r *strict.Reader) {
	kind := r.U8()
	s.app = storm.ReadApp(r)
	switch kind {
	case recordTopic:
		t := new(storm.Topic)
		t.DecodeStrict(r)
		s.record = t
	case recordMesg:
		m := new(storm.Mesg)
		m.DecodeStrict(r)
		s.record = m
	default:
		r.Fail(fmt.Errorf("%w: record kind %d", ErrCorrupt, kind))
	}
}

func encodeRecord(app storm.App, rec storm.Record) ([]byte, error) {
	return strict.Serialize(&storedRecord{app: app, record: rec})
}

func decodeRecord(data []byte) (storm.App, storm.Record, error) {
	var s storedRecord
	if err := strict.Deserialize(data, &s); err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return s.app, s.record, nil
}

// cloneRecord returns a deep copy so callers cannot mutate stored state.
func cloneRecord(rec storm.Record) storm.Record {
	switch r := rec.(type) {
	case *storm.Topic:
		return &storm.Topic{Body: bytes.Clone(r.Body), ContainerIDs: append([]storm.ContainerID(nil), r.ContainerIDs...)}
	case *storm.Mesg:
		return &storm.Mesg{ParentID: r.ParentID, Body: bytes.Clone(r.Body), ContainerIDs: append([]storm.ContainerID(nil), r.ContainerIDs...)}
	default:
		return rec
	}
}

func cloneContainer(c *storm.Container) *storm.Container {
	out := *c
	out.Chunks = append([]storm.ChunkID(nil), c.Chunks...)
	return &out
}
