package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"whatschat/internal/conversation"
	"whatschat/internal/entity"
	"whatschat/internal/presence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	kind   string // "room", "to", "broadcast"
	target string
	except string
	frame  Frame
}

type fakeTransport struct {
	lock   sync.Mutex
	rooms  map[string]map[string]bool
	owners map[string]string // conn id -> user id
	out    []emitted
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{rooms: make(map[string]map[string]bool), owners: make(map[string]string)}
}

// own records which user a connection was authenticated as
func (f *fakeTransport) own(connID, userID string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.owners[connID] = userID
}

func (f *fakeTransport) Join(connID, room string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.rooms[room] == nil {
		f.rooms[room] = make(map[string]bool)
	}
	f.rooms[room][connID] = true
}

func (f *fakeTransport) Leave(connID, room string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	delete(f.rooms[room], connID)
}

func (f *fakeTransport) LeaveUser(userID, room string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for connID := range f.rooms[room] {
		if f.owners[connID] == userID {
			delete(f.rooms[room], connID)
		}
	}
}

func (f *fakeTransport) EmitToRoom(room, except string, fr Frame) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.out = append(f.out, emitted{"room", room, except, fr})
}

func (f *fakeTransport) EmitTo(connID string, fr Frame) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.out = append(f.out, emitted{"to", connID, "", fr})
}

func (f *fakeTransport) BroadcastExcept(connID string, fr Frame) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.out = append(f.out, emitted{"broadcast", "", connID, fr})
}

func (f *fakeTransport) inRoom(connID, room string) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.rooms[room][connID]
}

func (f *fakeTransport) events() []emitted {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]emitted(nil), f.out...)
}

type fakeMembers map[string]map[string]bool // conversation id -> user ids

func (m fakeMembers) IsMember(id, userID string) (bool, error) {
	if id == "broken" {
		return false, errors.New("db down")
	}
	return m[id][userID], nil
}

type fakeUsers struct {
	lock   sync.Mutex
	online map[string]bool
}

func (u *fakeUsers) GetUser(id string) (*entity.User, error) {
	return &entity.User{ID: id, Name: "name-" + id, Avatar: "av-" + id}, nil
}

func (u *fakeUsers) SetOnline(id string, online bool) error {
	u.lock.Lock()
	defer u.lock.Unlock()
	u.online[id] = online
	return nil
}

func (u *fakeUsers) isOnline(id string) bool {
	u.lock.Lock()
	defer u.lock.Unlock()
	return u.online[id]
}

type routerFixture struct {
	router    *Router
	transport *fakeTransport
	registry  *presence.Registry
	users     *fakeUsers
	members   fakeMembers
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		transport: newFakeTransport(),
		registry:  presence.NewRegistry(),
		users:     &fakeUsers{online: map[string]bool{}},
		members: fakeMembers{
			"g1": {"alice": true, "bob": true},
			"c1": {"alice": true},
		},
	}
	f.router = NewRouter(f.transport, f.registry, f.users, f.members, f.members, nil)
	return f
}

func frame(t *testing.T, event string, data any) Frame {
	t.Helper()
	f, err := NewFrame(event, data)
	require.NoError(t, err)
	return f
}

func decode(t *testing.T, f Frame) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(f.Data, &m))
	return m
}

func TestAddUserMarksOnlineAndBroadcasts(t *testing.T) {
	f := newRouterFixture()
	f.router.Handle("c-alice", "alice", frame(t, EventAddUser, "alice"))

	conn, ok := f.registry.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c-alice", conn)
	assert.True(t, f.users.isOnline("alice"))

	out := f.transport.events()
	require.Len(t, out, 1)
	assert.Equal(t, "broadcast", out[0].kind)
	assert.Equal(t, "c-alice", out[0].except)
	assert.Equal(t, EventUserOnline, out[0].frame.Event)
	assert.JSONEq(t, `"alice"`, string(out[0].frame.Data))
}

func TestAddUserCannotImpersonate(t *testing.T) {
	f := newRouterFixture()
	f.router.Handle("c-mallory", "mallory", frame(t, EventAddUser, "alice"))

	_, ok := f.registry.Lookup("alice")
	assert.False(t, ok)
	assert.Empty(t, f.transport.events())
}

func TestDisconnectOfStaleConnectionKeepsUserOnline(t *testing.T) {
	f := newRouterFixture()
	f.router.Handle("old", "alice", frame(t, EventAddUser, "alice"))
	f.router.Handle("new", "alice", frame(t, EventAddUser, "alice"))

	f.router.Disconnected("old", "alice")
	assert.True(t, f.users.isOnline("alice"))
	for _, e := range f.transport.events() {
		assert.NotEqual(t, EventUserOffline, e.frame.Event)
	}

	f.router.Disconnected("new", "alice")
	assert.False(t, f.users.isOnline("alice"))
	out := f.transport.events()
	last := out[len(out)-1]
	assert.Equal(t, EventUserOffline, last.frame.Event)
	assert.Equal(t, "new", last.except)
}

func TestJoinRequiresMembership(t *testing.T) {
	f := newRouterFixture()
	f.router.Handle("c-alice", "alice", frame(t, EventJoinGroup, "g1"))
	f.router.Handle("c-carol", "carol", frame(t, EventJoinGroup, "g1"))
	f.router.Handle("c-bob", "bob", frame(t, EventJoinCommunity, "c1"))
	f.router.Handle("c-alice", "alice", frame(t, EventJoinCommunity, map[string]string{"id": "c1"}))
	f.router.Handle("c-alice", "alice", frame(t, EventJoinGroup, "broken"))

	assert.True(t, f.transport.inRoom("c-alice", "group:g1"))
	assert.False(t, f.transport.inRoom("c-carol", "group:g1"))
	assert.False(t, f.transport.inRoom("c-bob", "community:c1"))
	assert.True(t, f.transport.inRoom("c-alice", "community:c1"))
	assert.False(t, f.transport.inRoom("c-alice", "group:broken"))

	f.router.Handle("c-alice", "alice", frame(t, EventLeaveGroup, "g1"))
	assert.False(t, f.transport.inRoom("c-alice", "group:g1"))
}

func TestGroupMessageUsesRegisteredSender(t *testing.T) {
	f := newRouterFixture()
	f.router.Handle("c-bob", "bob", frame(t, EventAddUser, "bob"))

	f.router.Handle("c-bob", "bob", frame(t, EventSendGroup, map[string]any{"groupId": "g1", "from": "alice", "msg": "hi"}))

	out := f.transport.events()
	last := out[len(out)-1]
	assert.Equal(t, "room", last.kind)
	assert.Equal(t, "group:g1", last.target)
	assert.Equal(t, "c-bob", last.except)
	assert.Equal(t, EventGroupReceived, last.frame.Event)
	payload := decode(t, last.frame)
	assert.Equal(t, "bob", payload["from"])
	assert.Equal(t, "hi", payload["msg"])
}

func TestUnauthorizedRelaysAreDropped(t *testing.T) {
	f := newRouterFixture()
	// Not registered: no identity, nothing relayed
	f.router.Handle("c-alice", "alice", frame(t, EventSendGroup, map[string]any{"groupId": "g1", "msg": "hi"}))
	assert.Empty(t, f.transport.events())

	f.router.Handle("c-carol", "carol", frame(t, EventAddUser, "carol"))
	before := len(f.transport.events())
	f.router.Handle("c-carol", "carol", frame(t, EventSendGroup, map[string]any{"groupId": "g1", "msg": "let me in"}))
	f.router.Handle("c-carol", "carol", frame(t, EventSendCommunity, map[string]any{"communityId": "c1", "msg": "hey"}))
	assert.Len(t, f.transport.events(), before)
}

func TestDirectMessageToOnlineAndOfflineUsers(t *testing.T) {
	f := newRouterFixture()
	f.router.Handle("c-alice", "alice", frame(t, EventAddUser, "alice"))
	f.router.Handle("c-bob", "bob", frame(t, EventAddUser, "bob"))
	before := len(f.transport.events())

	f.router.Handle("c-alice", "alice", frame(t, EventSendDirect, map[string]any{"to": "bob", "msg": "psst", "from": "mallory"}))
	out := f.transport.events()
	require.Len(t, out, before+1)
	assert.Equal(t, "to", out[before].kind)
	assert.Equal(t, "c-bob", out[before].target)
	assert.Equal(t, EventDirectReceived, out[before].frame.Event)
	assert.Equal(t, "alice", decode(t, out[before].frame)["from"])

	f.router.Handle("c-alice", "alice", frame(t, EventSendDirect, map[string]any{"to": "dave", "msg": "anyone?"}))
	assert.Len(t, f.transport.events(), before+1)
}

func TestNotifierFansOutAndEvicts(t *testing.T) {
	f := newRouterFixture()
	f.transport.own("c-bob", "bob")
	f.router.Handle("c-bob", "bob", frame(t, EventAddUser, "bob"))
	f.router.Handle("c-bob", "bob", frame(t, EventJoinGroup, "g1"))

	msg := &entity.Message{ID: "m1", SenderID: "alice", GroupID: "g1", Content: "removed bob", Kind: entity.KindSystem, CreatedAt: time.Now().UTC()}
	f.router.ConversationMessage(conversation.Group{GroupID: "g1"}, msg)

	out := f.transport.events()
	last := out[len(out)-1]
	assert.Equal(t, "group:g1", last.target)
	assert.Equal(t, "", last.except)
	payload := decode(t, last.frame)
	assert.Equal(t, "g1", payload["groupId"])
	assert.Equal(t, "name-alice", payload["senderName"])
	assert.Equal(t, "system", payload["messageType"])

	f.router.Evict(conversation.Group{GroupID: "g1"}, "bob")
	assert.False(t, f.transport.inRoom("c-bob", "group:g1"))
}

func TestEvictRemovesEveryConnectionOfTheUser(t *testing.T) {
	f := newRouterFixture()
	for _, conn := range []string{"c-bob-1", "c-bob-2", "c-bob-silent"} {
		f.transport.own(conn, "bob")
	}
	f.transport.own("c-alice", "alice")

	f.router.Handle("c-bob-1", "bob", frame(t, EventAddUser, "bob"))
	f.router.Handle("c-bob-1", "bob", frame(t, EventJoinGroup, "g1"))
	// second tab replaces the first in the registry
	f.router.Handle("c-bob-2", "bob", frame(t, EventAddUser, "bob"))
	f.router.Handle("c-bob-2", "bob", frame(t, EventJoinGroup, "g1"))
	// joined without ever sending add-user
	f.router.Handle("c-bob-silent", "bob", frame(t, EventJoinGroup, "g1"))
	f.router.Handle("c-alice", "alice", frame(t, EventJoinGroup, "g1"))

	connID, ok := f.registry.Lookup("bob")
	require.True(t, ok)
	require.Equal(t, "c-bob-2", connID)
	for _, conn := range []string{"c-bob-1", "c-bob-2", "c-bob-silent"} {
		require.True(t, f.transport.inRoom(conn, "group:g1"), conn)
	}

	f.router.Evict(conversation.Group{GroupID: "g1"}, "bob")

	for _, conn := range []string{"c-bob-1", "c-bob-2", "c-bob-silent"} {
		assert.False(t, f.transport.inRoom(conn, "group:g1"), conn)
	}
	assert.True(t, f.transport.inRoom("c-alice", "group:g1"))
}

func TestUnknownEventIsIgnored(t *testing.T) {
	f := newRouterFixture()
	f.router.Handle("c1", "alice", Frame{Event: "typing"})
	assert.Empty(t, f.transport.events())
}
