package entity

import "time"

// Open-join conversation with a single owning admin.
// The admin is fixed at creation and does not have to stay a member.
type Community struct {
	ID          string    `gorm:"primaryKey;size:36" json:"_id"`
	Name        string    `gorm:"not null;uniqueIndex;size:191" json:"name"`
	Description string    `json:"description"`
	Avatar      string    `json:"avatar"`
	AdminID     string    `gorm:"not null;size:36" json:"admin"`
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Members []CommunityMember `gorm:"foreignKey:CommunityID" json:"members"`
}

type CommunityMember struct {
	CommunityID string    `gorm:"primaryKey;size:36" json:"-"`
	UserID      string    `gorm:"primaryKey;size:36;index" json:"user"`
	JoinedAt    time.Time `gorm:"not null" json:"joinedAt"`
}

func (c *Community) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
