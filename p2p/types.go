package p2p

import "fmt"

// WireVersion identifies the revision of the type table below. Any change to
// a code or a payload layout bumps it.
const WireVersion = 1

// Type is the 16-bit code that prefixes every frame.
type Type uint16

// Wire type table.
const (
	TypeListApps          Type = 0x0002
	TypeActiveApps        Type = 0x0003
	TypeListTopics        Type = 0x0004
	TypeAppTopics         Type = 0x0005
	TypeProposeTopic      Type = 0x0006
	TypePost              Type = 0x0008
	TypeRead              Type = 0x000a
	TypeDecline           Type = 0x000c
	TypeAccept            Type = 0x000e
	TypePullContainer     Type = 0x0010
	TypeAnnounceContainer Type = 0x0011
	TypeReject            Type = 0x0012
	TypePushContainer     Type = 0x0013
	TypePullChunk         Type = 0x0014
	TypePushChunk         Type = 0x0015
)

var typeNames = map[Type]string{
	TypeListApps:          "list_apps",
	TypeActiveApps:        "active_apps",
	TypeListTopics:        "list_topics",
	TypeAppTopics:         "app_topics",
	TypeProposeTopic:      "propose_topic",
	TypePost:              "post",
	TypeRead:              "read",
	TypeDecline:           "decline",
	TypeAccept:            "accept",
	TypePullContainer:     "pull_container",
	TypeAnnounceContainer: "announce_container",
	TypeReject:            "reject",
	TypePushContainer:     "push_container",
	TypePullChunk:         "pull_chunk",
	TypePushChunk:         "push_chunk",
}

// String returns the snake_case name of the message kind.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(0x%04x)", uint16(t))
}

// Known reports whether t is in the wire table.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}
