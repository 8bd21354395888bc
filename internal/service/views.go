package service

import (
	"time"

	"whatschat/internal/entity"
)

// Member of a group or community, flattened with its join date
type MemberView struct {
	ID       string    `json:"_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Avatar   string    `json:"avatar"`
	IsOnline bool      `json:"isOnline"`
	JoinedAt time.Time `json:"joinedAt"`
}

type GroupDetails struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Avatar      string       `json:"avatar"`
	Admins      []string     `json:"admins"`
	Members     []MemberView `json:"members"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type CommunityDetails struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Avatar      string       `json:"avatar"`
	Admin       string       `json:"admin"`
	Members     []MemberView `json:"members"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// One row of a user's chat list for direct conversations
type ContactSummary struct {
	ID                string    `json:"_id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Avatar            string    `json:"avatar"`
	IsOnline          bool      `json:"isOnline"`
	LastMessage       string    `json:"lastMessage"`
	LastMessageTime   time.Time `json:"lastMessageTime"`
	LastMessageSender string    `json:"lastMessageSender"`
	LastMessageRead   bool      `json:"lastMessageRead"`
	UnreadCount       int64     `json:"unreadCount"`
}

type GroupSummary struct {
	ID                    string     `json:"_id"`
	Name                  string     `json:"name"`
	Description           string     `json:"description"`
	Avatar                string     `json:"avatar"`
	Admins                []string   `json:"admins"`
	Members               []string   `json:"members"`
	IsGroup               bool       `json:"isGroup"`
	LastMessage           *string    `json:"lastMessage"`
	LastMessageTime       *time.Time `json:"lastMessageTime"`
	LastMessageSender     *string    `json:"lastMessageSender"`
	LastMessageSenderName *string    `json:"lastMessageSenderName"`
	UnreadCount           int64      `json:"unreadCount"`
}

type CommunitySummary struct {
	ID                    string     `json:"_id"`
	Name                  string     `json:"name"`
	Description           string     `json:"description"`
	Avatar                string     `json:"avatar"`
	Admin                 string     `json:"admin"`
	IsMember              bool       `json:"isMember"`
	MemberCount           int        `json:"memberCount"`
	IsCommunity           bool       `json:"isCommunity"`
	LastMessage           *string    `json:"lastMessage"`
	LastMessageTime       *time.Time `json:"lastMessageTime"`
	LastMessageSenderName *string    `json:"lastMessageSenderName"`
	UnreadCount           int64      `json:"unreadCount"`
}

// Message as shown in a direct chat
type DirectMessageView struct {
	FromSelf    bool      `json:"fromSelf"`
	Message     string    `json:"message"`
	MessageType string    `json:"messageType"`
	FileURL     string    `json:"fileUrl,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Read        bool      `json:"read"`
}

// Message as shown in a group or community chat
type ConversationMessageView struct {
	FromSelf     bool      `json:"fromSelf"`
	SenderID     string    `json:"senderId"`
	SenderName   string    `json:"senderName"`
	SenderAvatar string    `json:"senderAvatar"`
	Message      string    `json:"message"`
	MessageType  string    `json:"messageType"`
	FileURL      string    `json:"fileUrl,omitempty"`
	FileName     string    `json:"fileName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Optional fields of an update-info call. Nil leaves the field as it is.
type InfoPatch struct {
	Name        *string
	Description *string
	Avatar      *string
}

// Outgoing content of a chat message
type MessageInput struct {
	Content  string
	Kind     entity.MessageKind
	FileURL  string
	FileName string
}

func membersView(users map[string]*entity.User, ids []string, joined map[string]time.Time) []MemberView {
	views := make([]MemberView, 0, len(ids))
	for _, id := range ids {
		v := MemberView{ID: id, JoinedAt: joined[id]}
		if u, ok := users[id]; ok {
			v.Name, v.Email, v.Avatar, v.IsOnline = u.Name, u.Email, u.Avatar, u.IsOnline
		}
		views = append(views, v)
	}
	return views
}

func indexUsers(users []*entity.User) map[string]*entity.User {
	byID := make(map[string]*entity.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID
}
