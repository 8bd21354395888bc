/*
 * Copyright (c) 2026 Francesco Biribo'
 *
 * Permission to use, copy, modify, and distribute this software for any purpose with or without fee is hereby granted, provided that the above copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package entity

import (
	"time"

	"gorm.io/gorm"
)

// Admin-governed conversation. Admins are always a subset of Members.
type Group struct {
	ID          string         `gorm:"primaryKey;size:36" json:"_id"`
	Name        string         `gorm:"not null;index" json:"name"` // Not unique
	Description string         `json:"description"`
	Avatar      string         `json:"avatar"`
	CreatedAt   time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"index" json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"` // Set when the last member leaves

	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members"`
	Admins  []GroupAdmin  `gorm:"foreignKey:GroupID" json:"admins"`
}

type GroupMember struct {
	GroupID  string    `gorm:"primaryKey;size:36" json:"-"`
	UserID   string    `gorm:"primaryKey;size:36;index" json:"user"`
	JoinedAt time.Time `gorm:"not null" json:"joinedAt"` // Lower bound of the history this member can read
}

type GroupAdmin struct {
	GroupID string `gorm:"primaryKey;size:36" json:"-"`
	UserID  string `gorm:"primaryKey;size:36" json:"user"`
}

func (g *Group) MemberIDs() []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func (g *Group) AdminIDs() []string {
	ids := make([]string, 0, len(g.Admins))
	for _, a := range g.Admins {
		ids = append(ids, a.UserID)
	}
	return ids
}

func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (g *Group) HasAdmin(userID string) bool {
	for _, a := range g.Admins {
		if a.UserID == userID {
			return true
		}
	}
	return false
}
