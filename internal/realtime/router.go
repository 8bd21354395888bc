package realtime

import (
	"encoding/json"
	"time"

	"whatschat/internal/conversation"
	"whatschat/internal/entity"
	"whatschat/internal/nlog"
	"whatschat/internal/presence"
)

// MembershipChecker answers whether a user currently belongs to a group or community.
type MembershipChecker interface {
	IsMember(id, userID string) (bool, error)
}

// UserDirectory reads profiles and persists the online flag.
type UserDirectory interface {
	GetUser(id string) (*entity.User, error)
	SetOnline(id string, online bool) error
}

// Router authorizes and fans out realtime events.
// Group and community traffic is only relayed for current members, checked at emit time,
// and the sender is always the user registered on the connection, never what the payload claims.
type Router struct {
	transport   Transport
	registry    *presence.Registry
	users       UserDirectory
	groups      MembershipChecker
	communities MembershipChecker
	logger      nlog.Logger
}

func NewRouter(transport Transport, registry *presence.Registry, users UserDirectory, groups, communities MembershipChecker, logger nlog.Logger) *Router {
	if logger == nil {
		logger = nlog.Nop()
	}
	return &Router{transport, registry, users, groups, communities, logger}
}

// SetMembership replaces the membership checkers. The services that notify the router are
// also its checkers, so they are usually built after it and attached here.
func (r *Router) SetMembership(groups, communities MembershipChecker) {
	r.groups, r.communities = groups, communities
}

func (r *Router) Logf(format string, v ...any) {
	r.logger.Logf(format, v...)
}

func (r *Router) Connected(connID, userID string) {
	r.Logf("Connection %s opened for %s", connID, userID)
}

func (r *Router) Disconnected(connID, userID string) {
	user, offline := r.registry.Unregister(connID)
	r.Logf("Connection %s of %s closed", connID, userID)
	if !offline {
		return
	}
	if err := r.users.SetOnline(user, false); err != nil {
		r.Logf("Could not mark %s offline {%v}", user, err)
	}
	r.broadcastPresence(connID, EventUserOffline, user)
}

func (r *Router) Handle(connID, userID string, f Frame) {
	switch f.Event {
	case EventAddUser:
		r.addUser(connID, userID, f.Data)
	case EventJoinGroup:
		r.join(connID, userID, f.Data, conversation.KindGroup)
	case EventJoinCommunity:
		r.join(connID, userID, f.Data, conversation.KindCommunity)
	case EventLeaveGroup:
		r.leave(connID, f.Data, conversation.KindGroup)
	case EventLeaveCommunity:
		r.leave(connID, f.Data, conversation.KindCommunity)
	case EventSendDirect:
		r.sendDirect(connID, f.Data)
	case EventSendGroup:
		r.sendShared(connID, f.Data, conversation.KindGroup)
	case EventSendCommunity:
		r.sendShared(connID, f.Data, conversation.KindCommunity)
	default:
		r.Logf("Unknown event %q from %s", f.Event, connID)
	}
}

// decodeID accepts an id sent either as a bare JSON string or as {"id": "..."}
func decodeID(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}
	var wrapped struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		return wrapped.ID
	}
	return ""
}

func room(kind conversation.Kind, id string) conversation.Conversation {
	if kind == conversation.KindGroup {
		return conversation.Group{GroupID: id}
	}
	return conversation.Community{CommunityID: id}
}

func (r *Router) checker(kind conversation.Kind) MembershipChecker {
	if kind == conversation.KindGroup {
		return r.groups
	}
	return r.communities
}

func (r *Router) isMember(kind conversation.Kind, id, userID string) bool {
	ok, err := r.checker(kind).IsMember(id, userID)
	if err != nil {
		r.Logf("Membership check of %s in %s %s failed {%v}", userID, kind, id, err)
		return false
	}
	return ok
}

func (r *Router) broadcastPresence(connID, event, userID string) {
	f, err := NewFrame(event, userID)
	if err != nil {
		return
	}
	r.transport.BroadcastExcept(connID, f)
}

func (r *Router) addUser(connID, userID string, data json.RawMessage) {
	if claimed := decodeID(data); claimed != "" && claimed != userID {
		r.Logf("Connection %s of %s tried to register as %s, ignored", connID, userID, claimed)
		return
	}
	if old, replaced := r.registry.Register(userID, connID); replaced {
		r.Logf("%s moved from connection %s to %s", userID, old, connID)
	}
	if err := r.users.SetOnline(userID, true); err != nil {
		r.Logf("Could not mark %s online {%v}", userID, err)
	}
	r.broadcastPresence(connID, EventUserOnline, userID)
}

func (r *Router) join(connID, userID string, data json.RawMessage, kind conversation.Kind) {
	id := decodeID(data)
	if id == "" || !r.isMember(kind, id, userID) {
		return
	}
	r.transport.Join(connID, conversation.Room(room(kind, id)))
}

func (r *Router) leave(connID string, data json.RawMessage, kind conversation.Kind) {
	if id := decodeID(data); id != "" {
		r.transport.Leave(connID, conversation.Room(room(kind, id)))
	}
}

func (r *Router) sendDirect(connID string, data json.RawMessage) {
	sender, ok := r.registry.UserOf(connID)
	if !ok {
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	to, _ := payload["to"].(string)
	target, online := r.registry.Lookup(to)
	if to == "" || !online {
		return
	}
	payload["from"] = sender
	f, err := NewFrame(EventDirectReceived, payload)
	if err != nil {
		return
	}
	r.transport.EmitTo(target, f)
}

func (r *Router) sendShared(connID string, data json.RawMessage, kind conversation.Kind) {
	sender, ok := r.registry.UserOf(connID)
	if !ok {
		return
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	key, event := "groupId", EventGroupReceived
	if kind == conversation.KindCommunity {
		key, event = "communityId", EventCommunityReceived
	}
	id, _ := payload[key].(string)
	if id == "" || !r.isMember(kind, id, sender) {
		return
	}
	payload["from"] = sender
	f, err := NewFrame(event, payload)
	if err != nil {
		return
	}
	r.transport.EmitToRoom(conversation.Room(room(kind, id)), connID, f)
}

// ConversationMessage relays a message written through the REST surface to the conversation's room.
func (r *Router) ConversationMessage(conv conversation.Conversation, msg *entity.Message) {
	payload := map[string]any{
		"from":        msg.SenderID,
		"msg":         msg.Content,
		"messageType": msg.Kind,
		"createdAt":   msg.CreatedAt.Format(time.RFC3339Nano),
	}
	if sender, err := r.users.GetUser(msg.SenderID); err == nil {
		payload["senderName"] = sender.Name
		payload["senderAvatar"] = sender.Avatar
	}
	var event string
	switch c := conv.(type) {
	case conversation.Group:
		payload["groupId"], event = c.GroupID, EventGroupReceived
	case conversation.Community:
		payload["communityId"], event = c.CommunityID, EventCommunityReceived
	default:
		return
	}
	f, err := NewFrame(event, payload)
	if err != nil {
		return
	}
	r.transport.EmitToRoom(conversation.Room(conv), "", f)
}

// Evict takes every connection of the user out of the conversation's room,
// including replaced tabs and sockets that never announced themselves.
func (r *Router) Evict(conv conversation.Conversation, userID string) {
	r.transport.LeaveUser(userID, conversation.Room(conv))
}
