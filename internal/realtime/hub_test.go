package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler joins every connection to "lobby" and relays what it reads there
type echoHandler struct {
	hub  *Hub
	lock sync.Mutex
	conn map[string]string   // user -> latest connection
	all  map[string][]string // user -> every connection
	gone []string
}

func (e *echoHandler) Connected(connID, userID string) {
	e.lock.Lock()
	e.conn[userID] = connID
	e.all[userID] = append(e.all[userID], connID)
	e.lock.Unlock()
	e.hub.Join(connID, "lobby")
}

func (e *echoHandler) Handle(connID, userID string, f Frame) {
	e.hub.EmitToRoom("lobby", connID, f)
}

func (e *echoHandler) Disconnected(connID, userID string) {
	e.lock.Lock()
	e.gone = append(e.gone, userID)
	e.lock.Unlock()
}

func (e *echoHandler) connOf(user string) string {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.conn[user]
}

func (e *echoHandler) connsOf(user string) []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append([]string(nil), e.all[user]...)
}

func startHub(t *testing.T) (*Hub, *echoHandler, string) {
	t.Helper()
	hub := NewHub(nil, nil)
	h := &echoHandler{hub: hub, conn: map[string]string{}, all: map[string][]string{}}
	hub.SetHandler(h)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"?user="+user, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubRelaysWithinRoom(t *testing.T) {
	hub, h, base := startHub(t)
	alice := dial(t, base, "alice")
	bob := dial(t, base, "bob")

	require.Eventually(t, func() bool {
		return h.connOf("alice") != "" && h.connOf("bob") != "" &&
			hub.InRoom(h.connOf("alice"), "lobby") && hub.InRoom(h.connOf("bob"), "lobby")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(Frame{Event: "ping", Data: []byte(`"hello"`)}))

	bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Frame
	require.NoError(t, bob.ReadJSON(&got))
	assert.Equal(t, "ping", got.Event)
	assert.JSONEq(t, `"hello"`, string(got.Data))

	hub.EmitTo(h.connOf("alice"), Frame{Event: "direct", Data: []byte(`1`)})
	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, alice.ReadJSON(&got))
	assert.Equal(t, "direct", got.Event)
}

func TestHubCleansUpOnDisconnect(t *testing.T) {
	hub, h, base := startHub(t)
	alice := dial(t, base, "alice")

	require.Eventually(t, func() bool { return h.connOf("alice") != "" }, 2*time.Second, 10*time.Millisecond)
	connID := h.connOf("alice")
	require.Eventually(t, func() bool { return hub.InRoom(connID, "lobby") }, 2*time.Second, 10*time.Millisecond)

	alice.Close()
	require.Eventually(t, func() bool {
		h.lock.Lock()
		defer h.lock.Unlock()
		return len(h.gone) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, hub.InRoom(connID, "lobby"))

	// Emitting to a closed connection is a no-op
	hub.EmitTo(connID, Frame{Event: "late"})
	hub.BroadcastExcept("", Frame{Event: "late"})
}

func TestHubLeaveUserDropsEveryConnection(t *testing.T) {
	hub, h, base := startHub(t)
	dial(t, base, "bob")
	dial(t, base, "bob")
	dial(t, base, "alice")

	inLobby := func(conns []string) bool {
		for _, c := range conns {
			if !hub.InRoom(c, "lobby") {
				return false
			}
		}
		return true
	}
	require.Eventually(t, func() bool {
		return len(h.connsOf("bob")) == 2 && h.connOf("alice") != "" &&
			inLobby(h.connsOf("bob")) && hub.InRoom(h.connOf("alice"), "lobby")
	}, 2*time.Second, 10*time.Millisecond)

	hub.LeaveUser("bob", "lobby")

	for _, c := range h.connsOf("bob") {
		assert.False(t, hub.InRoom(c, "lobby"))
	}
	assert.True(t, hub.InRoom(h.connOf("alice"), "lobby"))

	hub.LeaveUser("nobody", "lobby")
	hub.LeaveUser("bob", "missing")
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))

	req.Header.Del("Origin")
	assert.True(t, check(req))

	assert.True(t, originChecker(nil)(req))
}
