/*
 * Copyright (c) 2026 Francesco Biribo'
 *
 * Permission to use, copy, modify, and distribute this software for any purpose with or without fee is hereby granted, provided that the above copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package entity

import "time"

// A registered account
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"_id"`            // Unique identifier
	Name      string    `gorm:"not null;uniqueIndex;size:64" json:"name"` // Display name, unique in the system
	Email     string    `gorm:"not null;uniqueIndex;size:191" json:"email"`
	Avatar    string    `json:"avatar"` // Opaque image string (data URL or URL), stored verbatim
	IsOnline  bool      `gorm:"not null;default:false" json:"isOnline"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Secret UserSecret `gorm:"foreignKey:UserID;references:ID" json:"-"`
}

// Kept apart from User so that plain user reads never load the hash
type UserSecret struct {
	UserID string `gorm:"primaryKey;size:36" json:"-"`
	Hash   string `gorm:"not null" json:"-"` // BCrypt, default cost
}
