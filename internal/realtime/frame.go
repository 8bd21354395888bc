package realtime

import "encoding/json"

// Client -> server events
const (
	EventAddUser        = "add-user"
	EventJoinGroup      = "join-group"
	EventJoinCommunity  = "join-community"
	EventLeaveGroup     = "leave-group"
	EventLeaveCommunity = "leave-community"
	EventSendDirect     = "send-msg"
	EventSendGroup      = "send-group-msg"
	EventSendCommunity  = "send-community-msg"
)

// Server -> client events (names kept as the web client expects them)
const (
	EventDirectReceived    = "msg-recieve"
	EventGroupReceived     = "group-msg-recieve"
	EventCommunityReceived = "community-msg-recieve"
	EventUserOnline        = "user-online"
	EventUserOffline       = "user-offline"
)

// Frame is the unit exchanged on a websocket, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewFrame(event string, data any) (Frame, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: payload}, nil
}

// Transport delivers frames to connections and rooms. Every method is best effort.
type Transport interface {
	Join(connID, room string)
	Leave(connID, room string)
	LeaveUser(userID, room string) // Every connection of the user, registered or not
	EmitToRoom(room, exceptConnID string, f Frame) // exceptConnID may be empty
	EmitTo(connID string, f Frame)
	BroadcastExcept(connID string, f Frame)
}

// EventHandler receives what a Transport reads from its connections.
type EventHandler interface {
	Connected(connID, userID string)
	Handle(connID, userID string, f Frame)
	Disconnected(connID, userID string)
}
