/*
 * Copyright (c) 2026 Francesco Biribo'
 *
 * Permission to use, copy, modify, and distribute this software for any purpose with or without fee is hereby granted, provided that the above copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package handler

import (
	"net/http"

	"whatschat/internal/nlog"
	"whatschat/internal/service"

	"github.com/gorilla/mux"
)

type directRequest struct {
	messageRequest
	To string `json:"to"`
}

// Pair of users; in mark-read, From is the counterpart whose messages get read
type pairRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type MessageHandler struct {
	messageService service.MessageService
	logger         nlog.Logger
}

func NewMessageHandler(messageService service.MessageService, logger nlog.Logger) *MessageHandler {
	if logger == nil {
		logger = nlog.Nop()
	}
	return &MessageHandler{messageService, logger}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var request directRequest
	if !decode(w, r, &request) {
		return
	}
	from, err := actingAs(r, request.From)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if _, err := h.messageService.SendDirect(from, request.To, request.input()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"msg": "Message added successfully."})
}

func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	var request pairRequest
	if !decode(w, r, &request) {
		return
	}
	from, err := actingAs(r, request.From)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	messages, err := h.messageService.History(from, request.To)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	userID, err := actingAs(r, mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	contacts, err := h.messageService.Contacts(userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var request pairRequest
	if !decode(w, r, &request) {
		return
	}
	reader, err := actingAs(r, request.To)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.messageService.MarkRead(reader, request.From); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"msg": "Messages marked as read"})
}
