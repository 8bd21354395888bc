/*
 * Copyright (c) 2026 Francesco Biribo'
 *
 * Permission to use, copy, modify, and distribute this software for any purpose with or without fee is hereby granted, provided that the above copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package repository

import (
	"errors"
	"fmt"
	"time"

	"whatschat/internal/conversation"
	"whatschat/internal/entity"

	"gorm.io/gorm"
)

// This repository is used to store and query messages of every conversation kind.
// Group and community reads take a lower bound on created_at (the reader's join date).
type MessageRepository interface {
	Create(message *entity.Message) error

	Between(a, b string) ([]*entity.Message, error)     // Direct messages of the pair, by update time
	CountUnreadDirect(from, to string) (int64, error)   // Unread messages sent by from to to
	MarkDirectRead(from, to string) (int64, error)      // Flags them as read, returns how many changed
	DirectFor(userID string) ([]*entity.Message, error) // Every direct message the user sent or received, newest first

	InConversation(kind conversation.Kind, id string, since time.Time) ([]*entity.Message, error)
	Latest(kind conversation.Kind, id string, since time.Time) (*entity.Message, error) // nil when there is none
	CountUnread(kind conversation.Kind, id, userID string, lastSeen, since time.Time) (int64, error)
}

// Implementation of the repository on top of gorm (any supported dialect)
type SQLMessageRepository struct {
	db *gorm.DB
}

func NewSQLMessageRepository(db *gorm.DB) MessageRepository {
	return &SQLMessageRepository{db}
}

func targetColumn(kind conversation.Kind) (string, error) {
	switch kind {
	case conversation.KindGroup:
		return "group_id", nil
	case conversation.KindCommunity:
		return "community_id", nil
	}
	return "", fmt.Errorf("no shared message target for %s conversations", kind)
}

func (repo *SQLMessageRepository) Create(message *entity.Message) error {
	return repo.db.Create(message).Error
}

func (repo *SQLMessageRepository) Between(a, b string) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := repo.db.
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a).
		Order("updated_at, created_at").
		Find(&messages).Error
	return messages, err
}

func (repo *SQLMessageRepository) CountUnreadDirect(from, to string) (int64, error) {
	var count int64
	err := repo.db.Model(&entity.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND is_read = ?", from, to, false).
		Count(&count).Error
	return count, err
}

func (repo *SQLMessageRepository) MarkDirectRead(from, to string) (int64, error) {
	// UpdateColumn leaves updated_at untouched
	res := repo.db.Model(&entity.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND is_read = ?", from, to, false).
		UpdateColumn("is_read", true)
	return res.RowsAffected, res.Error
}

func (repo *SQLMessageRepository) DirectFor(userID string) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := repo.db.
		Where("recipient_id <> '' AND (sender_id = ? OR recipient_id = ?)", userID, userID).
		Order("created_at DESC").
		Find(&messages).Error
	return messages, err
}

func (repo *SQLMessageRepository) InConversation(kind conversation.Kind, id string, since time.Time) ([]*entity.Message, error) {
	column, err := targetColumn(kind)
	if err != nil {
		return nil, err
	}
	var messages []*entity.Message
	err = repo.db.
		Where(column+" = ? AND created_at >= ?", id, since).
		Order("updated_at, created_at").
		Find(&messages).Error
	return messages, err
}

func (repo *SQLMessageRepository) Latest(kind conversation.Kind, id string, since time.Time) (*entity.Message, error) {
	column, err := targetColumn(kind)
	if err != nil {
		return nil, err
	}
	var message entity.Message
	err = repo.db.
		Where(column+" = ? AND created_at >= ?", id, since).
		Order("created_at DESC").
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (repo *SQLMessageRepository) CountUnread(kind conversation.Kind, id, userID string, lastSeen, since time.Time) (int64, error) {
	column, err := targetColumn(kind)
	if err != nil {
		return 0, err
	}
	var count int64
	err = repo.db.Model(&entity.Message{}).
		Where(column+" = ? AND sender_id <> ? AND created_at > ? AND created_at >= ?", id, userID, lastSeen, since).
		Count(&count).Error
	return count, err
}
