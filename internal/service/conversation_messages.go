package service

import (
	"errors"
	"strings"

	"whatschat/internal/conversation"
	"whatschat/internal/data"
	"whatschat/internal/entity"

	"github.com/google/uuid"
)

func normalizeInput(in MessageInput) (MessageInput, error) {
	if in.Kind == "" {
		in.Kind = entity.KindText
	}
	if !in.Kind.Valid() || in.Kind == entity.KindSystem {
		return in, fail(ErrValidation, "Unsupported message type %q", in.Kind)
	}
	if strings.TrimSpace(in.Content) == "" && in.FileURL == "" {
		return in, fail(ErrValidation, "Message cannot be empty")
	}
	return in, nil
}

func newMessage(now Clock, senderID string, in MessageInput) *entity.Message {
	at := now()
	return &entity.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Content:   in.Content,
		Kind:      in.Kind,
		FileURL:   in.FileURL,
		FileName:  in.FileName,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// sendToConversation persists a member's message in a group or community.
func sendToConversation(storage *data.StorageManager, now Clock, conv conversation.Conversation, senderID string, in MessageInput) (*entity.Message, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}
	if _, err := joinDate(storage, conv, senderID); err != nil {
		return nil, err
	}
	msg := newMessage(now, senderID, in)
	switch c := conv.(type) {
	case conversation.Group:
		msg.GroupID = c.GroupID
	case conversation.Community:
		msg.CommunityID = c.CommunityID
	default:
		return nil, fail(ErrValidation, "Cannot post a %s message here", conv.Kind())
	}
	if err := storage.GetMessageRepository().Create(msg); err != nil {
		return nil, err
	}
	if c, ok := conv.(conversation.Group); ok {
		// Keeps the group near the top of its members' chat lists
		if err := storage.GetGroupRepository().Touch(c.GroupID, msg.CreatedAt); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

func isMember(storage *data.StorageManager, conv conversation.Conversation, userID string) (bool, error) {
	_, err := joinDate(storage, conv, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotMember), errors.Is(err, ErrNotFound):
		return false, nil
	}
	return false, err
}

func conversationViews(storage *data.StorageManager, messages []*entity.Message, userID string) ([]ConversationMessageView, error) {
	senders := dedupe(senderIDs(messages), "")
	users, err := storage.GetUserRepository().GetByIDs(senders)
	if err != nil {
		return nil, err
	}
	byID := indexUsers(users)

	views := make([]ConversationMessageView, 0, len(messages))
	for _, m := range messages {
		v := ConversationMessageView{
			FromSelf:    m.SenderID == userID,
			SenderID:    m.SenderID,
			Message:     m.Content,
			MessageType: string(m.Kind),
			FileURL:     m.FileURL,
			FileName:    m.FileName,
			CreatedAt:   m.CreatedAt,
		}
		if u, ok := byID[m.SenderID]; ok {
			v.SenderName, v.SenderAvatar = u.Name, u.Avatar
		}
		views = append(views, v)
	}
	return views, nil
}

func senderIDs(messages []*entity.Message) []string {
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.SenderID)
	}
	return ids
}
