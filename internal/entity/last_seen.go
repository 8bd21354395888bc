package entity

import "time"

// Read marker of one member in one group or community. A missing row reads as the zero time.
type LastSeen struct {
	Scope          string    `gorm:"primaryKey;size:16"` // "group" or "community"
	ConversationID string    `gorm:"primaryKey;size:36"`
	UserID         string    `gorm:"primaryKey;size:36"`
	SeenAt         time.Time `gorm:"not null"`
}

func (LastSeen) TableName() string {
	return "last_seen"
}
