package service

import (
	"whatschat/internal/conversation"
	"whatschat/internal/entity"
)

// Notifier pushes the effects of REST governance calls to connected clients.
// Calls happen after the corresponding transaction committed.
type Notifier interface {
	ConversationMessage(conv conversation.Conversation, msg *entity.Message)
	Evict(conv conversation.Conversation, userID string)
}

type nopNotifier struct{}

func (nopNotifier) ConversationMessage(conversation.Conversation, *entity.Message) {}
func (nopNotifier) Evict(conversation.Conversation, string)                       {}
