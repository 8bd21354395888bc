// Package conversation names the three kinds of chat a message can belong to.
package conversation

import "fmt"

type Kind int

const (
	KindDirect Kind = iota
	KindGroup
	KindCommunity
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindGroup:
		return "group"
	case KindCommunity:
		return "community"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Conversation is closed: only Direct, Group and Community implement it.
type Conversation interface {
	Kind() Kind
	Ref() string // Peer id for Direct, conversation id otherwise
	sealed()
}

// Direct chat seen from one side; Peer is the other participant.
type Direct struct{ Peer string }

type Group struct{ GroupID string }

type Community struct{ CommunityID string }

func (Direct) Kind() Kind    { return KindDirect }
func (Group) Kind() Kind     { return KindGroup }
func (Community) Kind() Kind { return KindCommunity }

func (d Direct) Ref() string    { return d.Peer }
func (g Group) Ref() string     { return g.GroupID }
func (c Community) Ref() string { return c.CommunityID }

func (Direct) sealed()    {}
func (Group) sealed()     {}
func (Community) sealed() {}

// Room is the realtime fan-out channel of a group or community.
func Room(c Conversation) string {
	switch c.Kind() {
	case KindGroup, KindCommunity:
		return c.Kind().String() + ":" + c.Ref()
	}
	return ""
}
