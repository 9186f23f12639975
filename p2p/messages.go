package p2p

import (
	"fmt"
	"strings"

	"github.com/stormnet/storm-go/storm"
	"github.com/stormnet/storm-go/strict"
)

// Message is one variant of the wire message set. App is total: the
// discovery pair belongs to the system application, every other variant
// carries the application it was sent for.
type Message interface {
	Type() Type
	App() storm.App
	String() string
	strict.Encoder
	strict.Decoder
}

// ListApps asks a peer which applications it serves.
type ListApps struct{}

func (*ListApps) Type() Type { return TypeListApps }
func (*ListApps) App() storm.App { return storm.AppSystem }
func (*ListApps) String() string { return "list_apps" }
func (*ListApps) EncodeStrict(*strict.Writer) {}
func (*ListApps) DecodeStrict(*strict.Reader) {}

// ActiveApps answers ListApps.
type ActiveApps struct {
	Apps []storm.App
}

func (*ActiveApps) Type() Type { return TypeActiveApps }
func (*ActiveApps) App() storm.App { return storm.AppSystem }

func (m *ActiveApps) String() string {
	names := make([]string, len(m.Apps))
	for i, a := range m.Apps {
		names[i] = a.String()
	}
	return fmt.Sprintf("active_apps(%s)", strings.Join(names, ", "))
}

func (m *ActiveApps) EncodeStrict(w *strict.Writer) {
	strict.WriteSet16(w, m.Apps, storm.App.Compare, storm.WriteApp)
}

func (m *ActiveApps) DecodeStrict(r *strict.Reader) {
	m.Apps = strict.ReadSet16(r, 2, storm.App.Compare, storm.ReadApp)
}

// ListTopics asks for the topics a peer knows under one application.
type ListTopics struct {
	StormApp storm.App
}

func (*ListTopics) Type() Type { return TypeListTopics }
func (m *ListTopics) App() storm.App { return m.StormApp }
func (m *ListTopics) String() string { return fmt.Sprintf("list_topics(%s)", m.StormApp) }
func (m *ListTopics) EncodeStrict(w *strict.Writer) { storm.WriteApp(w, m.StormApp) }
func (m *ListTopics) DecodeStrict(r *strict.Reader) { m.StormApp = storm.ReadApp(r) }

// AppTopics answers ListTopics.
type AppTopics struct {
	StormApp storm.App
	Topics   []storm.MesgID
}

func (*AppTopics) Type() Type { return TypeAppTopics }
func (m *AppTopics) App() storm.App { return m.StormApp }

func (m *AppTopics) String() string {
	return fmt.Sprintf("app_topics(%s, %d topics)", m.StormApp, len(m.Topics))
}

func (m *AppTopics) EncodeStrict(w *strict.Writer) {
	storm.WriteApp(w, m.StormApp)
	strict.WriteSet16(w, m.Topics, storm.MesgID.Compare, storm.WriteMesgID)
}

func (m *AppTopics) DecodeStrict(r *strict.Reader) {
	m.StormApp = storm.ReadApp(r)
	m.Topics = strict.ReadSet16(r, 32, storm.MesgID.Compare, storm.ReadMesgID)
}

// ProposeTopic offers a new topic. Acceptance is silent; a refusal comes
// back as Decline. It also answers Read when the requested id is a topic.
type ProposeTopic struct {
	StormApp storm.App
	Topic    storm.Topic
}

// NewTopic builds a topic and wraps it in a proposal for app.
func NewTopic(app storm.App, body []byte, ids ...storm.ContainerID) (*ProposeTopic, error) {
	t, err := storm.NewTopic(body, ids...)
	if err != nil {
		return nil, err
	}
	return &ProposeTopic{StormApp: app, Topic: *t}, nil
}

func (*ProposeTopic) Type() Type { return TypeProposeTopic }
func (m *ProposeTopic) App() storm.App { return m.StormApp }

func (m *ProposeTopic) String() string {
	return fmt.Sprintf("propose_topic(%s, %s)", m.StormApp, m.Topic.ID())
}

func (m *ProposeTopic) EncodeStrict(w *strict.Writer) {
	storm.WriteApp(w, m.StormApp)
	m.Topic.EncodeStrict(w)
}

func (m *ProposeTopic) DecodeStrict(r *strict.Reader) {
	m.StormApp = storm.ReadApp(r)
	m.Topic.DecodeStrict(r)
}

// Post delivers a message. It is answered by Accept or Decline, and it is
// itself the answer to a Read.
type Post struct {
	StormApp storm.App
	Mesg     storm.Mesg
}

func (*Post) Type() Type { return TypePost }
func (m *Post) App() storm.App { return m.StormApp }
func (m *Post) String() string { return fmt.Sprintf("post(%s, %s)", m.StormApp, m.Mesg.ID()) }

func (m *Post) EncodeStrict(w *strict.Writer) {
	storm.WriteApp(w, m.StormApp)
	m.Mesg.EncodeStrict(w)
}

func (m *Post) DecodeStrict(r *strict.Reader) {
	m.StormApp = storm.ReadApp(r)
	m.Mesg.DecodeStrict(r)
}

// appMesgID is the payload shared by Read, Decline and Accept.
type appMesgID struct {
	StormApp storm.App
	ID       storm.MesgID
}

func (m *appMesgID) App() storm.App { return m.StormApp }

func (m *appMesgID) EncodeStrict(w *strict.Writer) {
	storm.WriteApp(w, m.StormApp)
	storm.WriteMesgID(w, m.ID)
}

func (m *appMesgID) DecodeStrict(r *strict.Reader) {
	m.StormApp = storm.ReadApp(r)
	m.ID = storm.ReadMesgID(r)
}

// Read asks for a topic or message by id.
type Read struct{ appMesgID }

// Decline refuses a proposal, a post or a read.
type Decline struct{ appMesgID }

// Accept acknowledges a post.
type Accept struct{ appMesgID }

// NewRead builds a Read for id under app.
func NewRead(app storm.App, id storm.MesgID) *Read {
	return &Read{appMesgID{StormApp: app, ID: id}}
}

// NewDecline builds a Decline for id under app.
func NewDecline(app storm.App, id storm.MesgID) *Decline {
	return &Decline{appMesgID{StormApp: app, ID: id}}
}

// NewAccept builds an Accept for id under app.
func NewAccept(app storm.App, id storm.MesgID) *Accept {
	return &Accept{appMesgID{StormApp: app, ID: id}}
}

func (*Read) Type() Type { return TypeRead }
func (m *Read) String() string { return fmt.Sprintf("read(%s, %s)", m.StormApp, m.ID) }
func (*Decline) Type() Type { return TypeDecline }
func (m *Decline) String() string { return fmt.Sprintf("decline(%s, %s)", m.StormApp, m.ID) }
func (*Accept) Type() Type { return TypeAccept }
func (m *Accept) String() string { return fmt.Sprintf("accept(%s, %s)", m.StormApp, m.ID) }

// appFullID is the payload shared by PullContainer and Reject.
type appFullID struct {
	StormApp storm.App
	FullID   storm.ContainerFullID
}

func (m *appFullID) App() storm.App { return m.StormApp }

func (m *appFullID) EncodeStrict(w *strict.Writer) {
	storm.WriteApp(w, m.StormApp)
	m.FullID.EncodeStrict(w)
}

func (m *appFullID) DecodeStrict(r *strict.Reader) {
	m.StormApp = storm.ReadApp(r)
	m.FullID.DecodeStrict(r)
}

// PullContainer asks for a container manifest. The message id proves the
// requester has a topic or message that attaches the container.
type PullContainer struct{ appFullID }

// Reject refuses a container or chunk pull.
type Reject struct{ appFullID }

// NewPullContainer builds a PullContainer under app.
func NewPullContainer(app storm.App, messageID storm.MesgID, containerID storm.ContainerID) *PullContainer {
	return &PullContainer{appFullID{StormApp: app, FullID: storm.ContainerFullID{MessageID: messageID, ContainerID: containerID}}}
}

// NewReject builds a Reject under app.
func NewReject(app storm.App, messageID storm.MesgID, containerID storm.ContainerID) *Reject {
	return &Reject{appFullID{StormApp: app, FullID: storm.ContainerFullID{MessageID: messageID, ContainerID: containerID}}}
}

func (*PullContainer) Type() Type { return TypePullContainer }

func (m *PullContainer) String() string {
	return fmt.Sprintf("pull_container(%s, %s)", m.StormApp, m.FullID)
}

func (*Reject) Type() Type { return TypeReject }
func (m *Reject) String() string { return fmt.Sprintf("reject(%s, %s)", m.StormApp, m.FullID) }

// AnnounceContainer advertises a container without its chunk list.
type AnnounceContainer struct {
	StormApp storm.App
	Info     storm.ContainerInfo
}

func (*AnnounceContainer) Type() Type { return TypeAnnounceContainer }
func (m *AnnounceContainer) App() storm.App { return m.StormApp }

func (m *AnnounceContainer) String() string {
	return fmt.Sprintf("announce_container(%s, %s)", m.StormApp, m.Info)
}

func (m *AnnounceContainer) EncodeStrict(w *strict.Writer) {
	storm.WriteApp(w, m.StormApp)
	m.Info.EncodeStrict(w)
}

func (m *AnnounceContainer) DecodeStrict(r *strict.Reader) {
	m.StormApp = storm.ReadApp(r)
	m.Info.DecodeStrict(r)
}

// PushContainer answers PullContainer with the manifest.
type PushContainer struct {
	StormApp  storm.App
	Container storm.Container
}

func (*PushContainer) Type() Type { return TypePushContainer }
func (m *PushContainer) App() storm.App { return m.StormApp }

func (m *PushContainer) String() string {
	return fmt.Sprintf("push_container(%s, %s)", m.StormApp, m.Container.ID())
}

func (m *PushContainer) EncodeStrict(w *strict.Writer) {
	storm.WriteApp(w, m.StormApp)
	m.Container.EncodeStrict(w)
}

func (m *PushContainer) DecodeStrict(r *strict.Reader) {
	m.StormApp = storm.ReadApp(r)
	m.Container.DecodeStrict(r)
}

// PullChunk asks for a set of chunks of one container. Each chunk is
// answered by its own PushChunk, or the whole pull by a Reject.
type PullChunk struct {
	StormApp    storm.App
	MessageID   storm.MesgID
	ContainerID storm.ContainerID
	ChunkIDs    []storm.ChunkID
}

// NewPullChunk builds a PullChunk; ids are sorted and deduplicated.
func NewPullChunk(app storm.App, messageID storm.MesgID, containerID storm.ContainerID, ids ...storm.ChunkID) *PullChunk {
	return &PullChunk{
		StormApp:    app,
		MessageID:   messageID,
		ContainerID: containerID,
		ChunkIDs:    strict.SortedSet(ids, storm.ChunkID.Compare),
	}
}

func (*PullChunk) Type() Type { return TypePullChunk }
func (m *PullChunk) App() storm.App { return m.StormApp }

func (m *PullChunk) String() string {
	return fmt.Sprintf("pull_chunk(%s, %s@%s, %d chunks)", m.StormApp, m.ContainerID, m.MessageID, len(m.ChunkIDs))
}

func (m *PullChunk) EncodeStrict(w *strict.Writer) {
	storm.WriteApp(w, m.StormApp)
	storm.WriteMesgID(w, m.MessageID)
	storm.WriteContainerID(w, m.ContainerID)
	strict.WriteSet16(w, m.ChunkIDs, storm.ChunkID.Compare, storm.WriteChunkID)
}

func (m *PullChunk) DecodeStrict(r *strict.Reader) {
	m.StormApp = storm.ReadApp(r)
	m.MessageID = storm.ReadMesgID(r)
	m.ContainerID = storm.ReadContainerID(r)
	m.ChunkIDs = strict.ReadSet16(r, 32, storm.ChunkID.Compare, storm.ReadChunkID)
}

// PushChunk delivers one chunk of a container.
type PushChunk struct {
	StormApp    storm.App
	ContainerID storm.ContainerID
	ChunkID     storm.ChunkID
	Chunk       storm.Chunk
}

func (*PushChunk) Type() Type { return TypePushChunk }
func (m *PushChunk) App() storm.App { return m.StormApp }

func (m *PushChunk) String() string {
	return fmt.Sprintf("push_chunk(%s, %s)", m.StormApp, storm.ChunkFullID{ContainerID: m.ContainerID, ChunkID: m.ChunkID})
}

func (m *PushChunk) EncodeStrict(w *strict.Writer) {
	storm.WriteApp(w, m.StormApp)
	storm.WriteContainerID(w, m.ContainerID)
	storm.WriteChunkID(w, m.ChunkID)
	m.Chunk.EncodeStrict(w)
}

func (m *PushChunk) DecodeStrict(r *strict.Reader) {
	m.StormApp = storm.ReadApp(r)
	m.ContainerID = storm.ReadContainerID(r)
	m.ChunkID = storm.ReadChunkID(r)
	m.Chunk.DecodeStrict(r)
}

var (
	_ Message = (*ListApps)(nil)
	_ Message = (*ActiveApps)(nil)
	_ Message = (*ListTopics)(nil)
	_ Message = (*AppTopics)(nil)
	_ Message = (*ProposeTopic)(nil)
	_ Message = (*Post)(nil)
	_ Message = (*Read)(nil)
	_ Message = (*Decline)(nil)
	_ Message = (*Accept)(nil)
	_ Message = (*PullContainer)(nil)
	_ Message = (*AnnounceContainer)(nil)
	_ Message = (*Reject)(nil)
	_ Message = (*PushContainer)(nil)
	_ Message = (*PullChunk)(nil)
	_ Message = (*PushChunk)(nil)
)
