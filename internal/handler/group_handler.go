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

type createGroupRequest struct {
	Name        string   `json:"name"`
	Members     []string `json:"members"`
	Admin       string   `json:"admin"`
	Avatar      string   `json:"avatar"`
	Description string   `json:"description"`
}

type groupInfoRequest struct {
	infoRequest
	GroupID string `json:"groupId"`
}

// Governance call: operatorId acts on userId (or on members, for add-members)
type groupMemberRequest struct {
	GroupID    string   `json:"groupId"`
	UserID     string   `json:"userId"`
	Members    []string `json:"members"`
	OperatorID string   `json:"operatorId"`
}

type groupMessageRequest struct {
	messageRequest
	GroupID string `json:"groupId"`
}

type groupUserRequest struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

type GroupHandler struct {
	groupService service.GroupService
	logger       nlog.Logger
}

func NewGroupHandler(groupService service.GroupService, logger nlog.Logger) *GroupHandler {
	if logger == nil {
		logger = nlog.Nop()
	}
	return &GroupHandler{groupService, logger}
}

func (g *GroupHandler) respondGroup(w http.ResponseWriter, group *service.GroupDetails, err error) {
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "group": group})
}

func (g *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var request createGroupRequest
	if !decode(w, r, &request) {
		return
	}
	creator, err := actingAs(r, request.Admin)
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	group, err := g.groupService.CreateGroup(creator, request.Name, request.Description, request.Avatar, request.Members)
	g.respondGroup(w, group, err)
}

func (g *GroupHandler) GetUserGroups(w http.ResponseWriter, r *http.Request) {
	userID, err := actingAs(r, mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	groups, err := g.groupService.GetUserGroups(userID)
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (g *GroupHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	group, err := g.groupService.GetDetails(mux.Vars(r)["groupId"], userID)
	g.respondGroup(w, group, err)
}

func (g *GroupHandler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	var request groupInfoRequest
	if !decode(w, r, &request) {
		return
	}
	operator, ok := currentUser(w, r)
	if !ok {
		return
	}
	group, err := g.groupService.UpdateInfo(request.GroupID, operator, request.patch())
	g.respondGroup(w, group, err)
}

// governance decodes a membership call and runs op as the authenticated operator
func (g *GroupHandler) governance(w http.ResponseWriter, r *http.Request, op func(request groupMemberRequest, operator string) (*service.GroupDetails, error)) {
	var request groupMemberRequest
	if !decode(w, r, &request) {
		return
	}
	operator, err := actingAs(r, request.OperatorID)
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	group, err := op(request, operator)
	g.respondGroup(w, group, err)
}

func (g *GroupHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	g.governance(w, r, func(request groupMemberRequest, operator string) (*service.GroupDetails, error) {
		return g.groupService.AddMembers(request.GroupID, operator, request.Members)
	})
}

// RemoveMember answers with a null group when the last member left and the group was deleted
func (g *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	g.governance(w, r, func(request groupMemberRequest, operator string) (*service.GroupDetails, error) {
		return g.groupService.RemoveMember(request.GroupID, operator, request.UserID)
	})
}

func (g *GroupHandler) AssignAdmin(w http.ResponseWriter, r *http.Request) {
	g.governance(w, r, func(request groupMemberRequest, operator string) (*service.GroupDetails, error) {
		return g.groupService.AssignAdmin(request.GroupID, operator, request.UserID)
	})
}

func (g *GroupHandler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	g.governance(w, r, func(request groupMemberRequest, operator string) (*service.GroupDetails, error) {
		return g.groupService.RemoveAdmin(request.GroupID, operator, request.UserID)
	})
}

func (g *GroupHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var request groupMessageRequest
	if !decode(w, r, &request) {
		return
	}
	sender, err := actingAs(r, request.From)
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	if _, err := g.groupService.SendMessage(request.GroupID, sender, request.input()); err != nil {
		writeError(w, g.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{true, "Message added successfully."})
}

func (g *GroupHandler) History(w http.ResponseWriter, r *http.Request) {
	var request groupUserRequest
	if !decode(w, r, &request) {
		return
	}
	userID, err := actingAs(r, request.UserID)
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	messages, err := g.groupService.History(request.GroupID, userID)
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (g *GroupHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var request groupUserRequest
	if !decode(w, r, &request) {
		return
	}
	userID, err := actingAs(r, request.UserID)
	if err != nil {
		writeError(w, g.logger, err)
		return
	}
	if err := g.groupService.MarkRead(request.GroupID, userID); err != nil {
		writeError(w, g.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, success{true})
}
