package handler

import (
	"net/http"

	"whatschat/internal/nlog"
	"whatschat/internal/service"

	"github.com/gorilla/mux"
)

type createCommunityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Admin       string `json:"admin"`
	Avatar      string `json:"avatar"`
}

type communityInfoRequest struct {
	infoRequest
	CommunityID string `json:"communityId"`
}

type communityMessageRequest struct {
	messageRequest
	CommunityID string `json:"communityId"`
}

type communityUserRequest struct {
	CommunityID string `json:"communityId"`
	UserID      string `json:"userId"`
}

type CommunityHandler struct {
	communityService service.CommunityService
	logger           nlog.Logger
}

func NewCommunityHandler(communityService service.CommunityService, logger nlog.Logger) *CommunityHandler {
	if logger == nil {
		logger = nlog.Nop()
	}
	return &CommunityHandler{communityService, logger}
}

func (c *CommunityHandler) respondCommunity(w http.ResponseWriter, community *service.CommunityDetails, err error) {
	if err != nil {
		writeError(w, c.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": true, "community": community})
}

// decodeUser reads a {communityId,userId} body and checks userId against the caller
func (c *CommunityHandler) decodeUser(w http.ResponseWriter, r *http.Request) (communityUserRequest, bool) {
	var request communityUserRequest
	if !decode(w, r, &request) {
		return request, false
	}
	userID, err := actingAs(r, request.UserID)
	if err != nil {
		writeError(w, c.logger, err)
		return request, false
	}
	request.UserID = userID
	return request, true
}

func (c *CommunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request createCommunityRequest
	if !decode(w, r, &request) {
		return
	}
	admin, err := actingAs(r, request.Admin)
	if err != nil {
		writeError(w, c.logger, err)
		return
	}
	community, err := c.communityService.CreateCommunity(admin, request.Name, request.Description, request.Avatar)
	c.respondCommunity(w, community, err)
}

func (c *CommunityHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	userID, err := actingAs(r, mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, c.logger, err)
		return
	}
	communities, err := c.communityService.GetAll(userID)
	if err != nil {
		writeError(w, c.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, communities)
}

func (c *CommunityHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	community, err := c.communityService.GetDetails(mux.Vars(r)["communityId"])
	c.respondCommunity(w, community, err)
}

func (c *CommunityHandler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	var request communityInfoRequest
	if !decode(w, r, &request) {
		return
	}
	operator, ok := currentUser(w, r)
	if !ok {
		return
	}
	community, err := c.communityService.UpdateInfo(request.CommunityID, operator, request.patch())
	c.respondCommunity(w, community, err)
}

func (c *CommunityHandler) Join(w http.ResponseWriter, r *http.Request) {
	request, ok := c.decodeUser(w, r)
	if !ok {
		return
	}
	community, err := c.communityService.Join(request.CommunityID, request.UserID)
	c.respondCommunity(w, community, err)
}

func (c *CommunityHandler) Leave(w http.ResponseWriter, r *http.Request) {
	request, ok := c.decodeUser(w, r)
	if !ok {
		return
	}
	community, err := c.communityService.Leave(request.CommunityID, request.UserID)
	c.respondCommunity(w, community, err)
}

func (c *CommunityHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var request communityMessageRequest
	if !decode(w, r, &request) {
		return
	}
	sender, err := actingAs(r, request.From)
	if err != nil {
		writeError(w, c.logger, err)
		return
	}
	if _, err := c.communityService.SendMessage(request.CommunityID, sender, request.input()); err != nil {
		writeError(w, c.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{true, "Message added successfully."})
}

func (c *CommunityHandler) History(w http.ResponseWriter, r *http.Request) {
	request, ok := c.decodeUser(w, r)
	if !ok {
		return
	}
	messages, err := c.communityService.History(request.CommunityID, request.UserID)
	if err != nil {
		writeError(w, c.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (c *CommunityHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	request, ok := c.decodeUser(w, r)
	if !ok {
		return
	}
	if err := c.communityService.MarkRead(request.CommunityID, request.UserID); err != nil {
		writeError(w, c.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, success{true})
}
