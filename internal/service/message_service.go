/*
 * Copyright (c) 2026 Francesco Biribo'
 *
 * Permission to use, copy, modify, and distribute this software for any purpose with or without fee is hereby granted, provided that the above copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package service

import (
	"whatschat/internal/conversation"
	"whatschat/internal/data"
	"whatschat/internal/entity"
	"whatschat/internal/nlog"
)

// Service used for direct (one to one) messages
type MessageService interface {
	SendDirect(from, to string, in MessageInput) (*entity.Message, error)
	History(userID, peerID string) ([]DirectMessageView, error) // Every message of the pair, by update time
	Contacts(userID string) ([]ContactSummary, error)           // One row per peer, most recent conversation first
	MarkRead(userID, peerID string) error                       // Marks what peerID sent to userID as read
}

type messageService struct {
	storage    *data.StorageManager
	visibility VisibilityService
	now        Clock
	logger     nlog.Logger
}

func NewMessageService(storage *data.StorageManager, visibility VisibilityService, now Clock, logger nlog.Logger) MessageService {
	if now == nil {
		now = SystemClock
	}
	if logger == nil {
		logger = nlog.Nop()
	}
	return &messageService{storage, visibility, now, logger}
}

func (m *messageService) Logf(format string, v ...any) {
	m.logger.Logf(format, v...)
}

func (m *messageService) SendDirect(from, to string, in MessageInput) (*entity.Message, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, fail(ErrValidation, "Cannot send a message to yourself")
	}
	if _, err := m.storage.GetUserRepository().GetByID(to); err != nil {
		return nil, notFoundOr(err, "Recipient not found")
	}
	msg := newMessage(m.now, from, in)
	msg.RecipientID = to
	if err := m.storage.GetMessageRepository().Create(msg); err != nil {
		m.Logf("Could not store message from %s to %s {%v}", from, to, err)
		return nil, err
	}
	return msg, nil
}

func (m *messageService) History(userID, peerID string) ([]DirectMessageView, error) {
	messages, err := m.visibility.History(conversation.Direct{Peer: peerID}, userID)
	if err != nil {
		return nil, err
	}
	views := make([]DirectMessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, DirectMessageView{
			FromSelf:    msg.SenderID == userID,
			Message:     msg.Content,
			MessageType: string(msg.Kind),
			FileURL:     msg.FileURL,
			FileName:    msg.FileName,
			CreatedAt:   msg.CreatedAt,
			Read:        msg.IsRead,
		})
	}
	return views, nil
}

func (m *messageService) Contacts(userID string) ([]ContactSummary, error) {
	messages, err := m.storage.GetMessageRepository().DirectFor(userID)
	if err != nil {
		return nil, err
	}

	// Newest first, so the first message seen per peer is the last one exchanged
	latest := make(map[string]*entity.Message)
	var peers []string
	for _, msg := range messages {
		peer := msg.RecipientID
		if peer == userID {
			peer = msg.SenderID
		}
		if _, ok := latest[peer]; ok {
			continue
		}
		latest[peer] = msg
		peers = append(peers, peer)
	}

	users, err := m.storage.GetUserRepository().GetByIDs(peers)
	if err != nil {
		return nil, err
	}
	byID := indexUsers(users)

	contacts := make([]ContactSummary, 0, len(peers))
	for _, peer := range peers {
		u, ok := byID[peer]
		if !ok {
			continue
		}
		unread, err := m.visibility.UnreadCount(conversation.Direct{Peer: peer}, userID)
		if err != nil {
			return nil, err
		}
		last := latest[peer]
		contacts = append(contacts, ContactSummary{
			ID:                u.ID,
			Name:              u.Name,
			Email:             u.Email,
			Avatar:            u.Avatar,
			IsOnline:          u.IsOnline,
			LastMessage:       last.Content,
			LastMessageTime:   last.CreatedAt,
			LastMessageSender: last.SenderID,
			LastMessageRead:   last.IsRead,
			UnreadCount:       unread,
		})
	}
	return contacts, nil
}

func (m *messageService) MarkRead(userID, peerID string) error {
	return m.visibility.MarkRead(conversation.Direct{Peer: peerID}, userID)
}
