/*
 * Copyright (c) 2026 Francesco Biribo'
 *
 * Permission to use, copy, modify, and distribute this software for any purpose with or without fee is hereby granted, provided that the above copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package entity

import "time"

type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindVideo    MessageKind = "video"
	KindDocument MessageKind = "document"
	KindSystem   MessageKind = "system"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindDocument, KindSystem:
		return true
	}
	return false
}

// A message sent to exactly one of: a user, a group, a community.
// The two unused target columns are empty.
type Message struct {
	ID          string      `gorm:"primaryKey;size:36" json:"_id"`
	SenderID    string      `gorm:"not null;index;size:36" json:"sender"`
	RecipientID string      `gorm:"index;size:36" json:"recipient,omitempty"`
	GroupID     string      `gorm:"index;size:36" json:"groupId,omitempty"`
	CommunityID string      `gorm:"index;size:36" json:"communityId,omitempty"`
	Content     string      `gorm:"not null" json:"content"`
	Kind        MessageKind `gorm:"not null;size:16;default:text" json:"messageType"`
	FileURL     string      `json:"fileUrl,omitempty"`
	FileName    string      `json:"fileName,omitempty"`
	IsRead      bool        `gorm:"not null;default:false" json:"read"` // Only meaningful for direct messages
	CreatedAt   time.Time   `gorm:"not null;index" json:"createdAt"`
	UpdatedAt   time.Time   `gorm:"not null" json:"updatedAt"` // Content writes only; read-marking leaves it alone
}

func (m *Message) IsDirect() bool {
	return m.RecipientID != ""
}
