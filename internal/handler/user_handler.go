package handler

import (
	"net/http"

	"whatschat/internal/nlog"
	"whatschat/internal/service"

	"github.com/gorilla/mux"
)

type UserHandler struct {
	userService service.UserService
	logger      nlog.Logger
}

func NewUserHandler(userService service.UserService, logger nlog.Logger) *UserHandler {
	if logger == nil {
		logger = nlog.Nop()
	}
	return &UserHandler{userService, logger}
}

func (h *UserHandler) AllUsers(w http.ResponseWriter, r *http.Request) {
	id, err := actingAs(r, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	users, err := h.userService.GetAllExcept(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	cards := make([]userCard, 0, len(users))
	for _, u := range users {
		cards = append(cards, toCard(u))
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.SearchByEmail(mux.Vars(r)["email"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "user": toCard(user)})
}

func (h *UserHandler) SetAvatar(w http.ResponseWriter, r *http.Request) {
	id, err := actingAs(r, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var request struct {
		Image string `json:"image"`
	}
	if !decode(w, r, &request) {
		return
	}
	user, err := h.userService.SetAvatar(id, request.Image)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"isSet": true, "image": user.Avatar})
}
