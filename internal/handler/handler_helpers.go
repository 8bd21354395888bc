/*
 * Copyright (c) 2026 Francesco Biribo'
 *
 * Permission to use, copy, modify, and distribute this software for any purpose with or without fee is hereby granted, provided that the above copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"whatschat/internal/entity"
	"whatschat/internal/middleware"
	"whatschat/internal/nlog"
	"whatschat/internal/service"
)

// maxBodySize bounds request bodies; avatars and images travel as data URLs
const maxBodySize = 8 << 20

var errImpersonation = fmt.Errorf("%w: you can only act as yourself", service.ErrUnauthorized)

type envelope struct {
	Status bool   `json:"status"`
	Msg    string `json:"msg"`
}

type success struct {
	Status bool `json:"status"`
}

// Public part of a user, as listed in contact pickers
type userCard struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

func toCard(u *entity.User) userCard {
	return userCard{u.ID, u.Name, u.Email, u.Avatar}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers domain failures with the {status:false,msg} envelope and hides anything else behind a 500
func writeError(w http.ResponseWriter, logger nlog.Logger, err error) {
	if service.IsDomainError(err) {
		writeJSON(w, http.StatusOK, envelope{false, err.Error()})
		return
	}
	logger.Logf("Request failed {%v}", err)
	writeJSON(w, http.StatusInternalServerError, envelope{false, "Internal server error"})
}

// decode reads the JSON body into dst, answering 400 when it is malformed
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{false, "Malformed request body"})
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserFrom(r.Context())
	if !ok {
		middleware.Unauthorized(w)
	}
	return id, ok
}

// actingAs resolves the acting user: a claimed id must match the authenticated one, an empty claim means the caller.
func actingAs(r *http.Request, claimed string) (string, error) {
	id, ok := middleware.UserFrom(r.Context())
	if !ok {
		return "", errImpersonation
	}
	if claimed != "" && claimed != id {
		return "", errImpersonation
	}
	return id, nil
}

// Body of every message-sending call
type messageRequest struct {
	From        string `json:"from"`
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
	FileURL     string `json:"fileUrl"`
	FileName    string `json:"fileName"`
}

func (m messageRequest) input() service.MessageInput {
	return service.MessageInput{
		Content:  m.Message,
		Kind:     entity.MessageKind(m.MessageType),
		FileURL:  m.FileURL,
		FileName: m.FileName,
	}
}

// Optional fields of update-info calls
type infoRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Avatar      *string `json:"avatar"`
}

func (i infoRequest) patch() service.InfoPatch {
	return service.InfoPatch{Name: i.Name, Description: i.Description, Avatar: i.Avatar}
}
