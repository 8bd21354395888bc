package handler

import (
	"net/http"
)

// Upgrader runs one websocket connection for an authenticated user
type Upgrader interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string)
}

type WSHandler struct {
	upgrader Upgrader
}

func NewWSHandler(upgrader Upgrader) *WSHandler {
	return &WSHandler{upgrader}
}

func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	h.upgrader.Serve(w, r, userID)
}
