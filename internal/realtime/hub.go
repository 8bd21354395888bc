package realtime

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"whatschat/internal/nlog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 512 * 1024 // Attachments travel as URLs, avatars as data URLs
	sendBufferSize = 32
)

type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	rooms  map[string]struct{} // Guarded by the hub lock
}

// Hub is the websocket Transport. Each connection has a bounded send buffer;
// when it is full the frame is dropped for that connection.
type Hub struct {
	upgrader websocket.Upgrader
	handler  EventHandler
	logger   nlog.Logger

	lock    sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]*client
	closed  bool
}

// NewHub accepts upgrades from the given origins; an empty list accepts any origin.
func NewHub(allowedOrigins []string, logger nlog.Logger) *Hub {
	if logger == nil {
		logger = nlog.Nop()
	}
	h := &Hub{
		logger:  logger,
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]*client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[u.Scheme+"://"+u.Host]
	}
}

func (h *Hub) SetHandler(handler EventHandler) {
	h.handler = handler
}

func (h *Hub) Logf(format string, v ...any) {
	h.logger.Logf(format, v...)
}

// Serve upgrades the request and runs the connection of userID until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logf("Upgrade failed for %s {%v}", userID, err)
		return
	}
	c := &client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		rooms:  make(map[string]struct{}),
	}
	if !h.register(c) {
		conn.Close()
		return
	}
	if h.handler != nil {
		h.handler.Connected(c.id, userID)
	}
	go c.writeLoop()
	h.readLoop(c)

	h.unregister(c)
	if h.handler != nil {
		h.handler.Disconnected(c.id, userID)
	}
}

func (h *Hub) readLoop(c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logf("Connection %s read error {%v}", c.id, err)
			}
			return
		}
		if f.Event == "" || h.handler == nil {
			continue
		}
		h.handler.Handle(c.id, c.userID, f)
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) register(c *client) bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	for room := range c.rooms {
		h.removeFromRoom(c, room)
	}
	delete(h.clients, c.id)
	close(c.send)
}

// Caller holds the lock
func (h *Hub) removeFromRoom(c *client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Caller holds the lock
func (h *Hub) deliver(c *client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.Logf("Send buffer of %s is full, frame dropped", c.id)
	}
}

func (h *Hub) Join(connID, room string) {
	h.lock.Lock()
	defer h.lock.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*client)
		h.rooms[room] = members
	}
	members[connID] = c
	c.rooms[room] = struct{}{}
}

func (h *Hub) Leave(connID, room string) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if c, ok := h.clients[connID]; ok {
		h.removeFromRoom(c, room)
	}
}

func (h *Hub) LeaveUser(userID, room string) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for _, c := range h.rooms[room] {
		if c.userID == userID {
			h.removeFromRoom(c, room)
		}
	}
}

func (h *Hub) EmitToRoom(room, exceptConnID string, f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	h.lock.RLock()
	defer h.lock.RUnlock()
	for id, c := range h.rooms[room] {
		if id != exceptConnID {
			h.deliver(c, payload)
		}
	}
}

func (h *Hub) EmitTo(connID string, f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	h.lock.RLock()
	defer h.lock.RUnlock()
	if c, ok := h.clients[connID]; ok {
		h.deliver(c, payload)
	}
}

func (h *Hub) BroadcastExcept(connID string, f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	h.lock.RLock()
	defer h.lock.RUnlock()
	for id, c := range h.clients {
		if id != connID {
			h.deliver(c, payload)
		}
	}
}

// InRoom reports whether the connection is currently subscribed to room.
func (h *Hub) InRoom(connID, room string) bool {
	h.lock.RLock()
	defer h.lock.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

// Close refuses new connections and closes the open ones; their Serve calls then return.
func (h *Hub) Close() {
	h.lock.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.lock.Unlock()

	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
	}
}
