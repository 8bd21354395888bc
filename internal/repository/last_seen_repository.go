package repository

import (
	"errors"
	"time"

	"whatschat/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// This repository keeps the per-member read markers of groups and communities.
type LastSeenRepository interface {
	Get(scope, conversationID, userID string) (time.Time, error)  // Zero time when the member never read
	Set(scope, conversationID, userID string, at time.Time) error // Upsert, last write wins
	SetIfAbsent(scope, conversationID, userID string, at time.Time) error
	Delete(scope, conversationID, userID string) error
}

// Implementation of the repository on top of gorm (any supported dialect)
type SQLLastSeenRepository struct {
	db *gorm.DB
}

func NewSQLLastSeenRepository(db *gorm.DB) LastSeenRepository {
	return &SQLLastSeenRepository{db}
}

var lastSeenKey = []clause.Column{{Name: "scope"}, {Name: "conversation_id"}, {Name: "user_id"}}

func (repo *SQLLastSeenRepository) Get(scope, conversationID, userID string) (time.Time, error) {
	var row entity.LastSeen
	err := repo.db.Where("scope = ? AND conversation_id = ? AND user_id = ?", scope, conversationID, userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return row.SeenAt, nil
}

func (repo *SQLLastSeenRepository) Set(scope, conversationID, userID string, at time.Time) error {
	row := entity.LastSeen{Scope: scope, ConversationID: conversationID, UserID: userID, SeenAt: at}
	return repo.db.Clauses(clause.OnConflict{
		Columns:   lastSeenKey,
		DoUpdates: clause.AssignmentColumns([]string{"seen_at"}),
	}).Create(&row).Error
}

func (repo *SQLLastSeenRepository) SetIfAbsent(scope, conversationID, userID string, at time.Time) error {
	row := entity.LastSeen{Scope: scope, ConversationID: conversationID, UserID: userID, SeenAt: at}
	return repo.db.Clauses(clause.OnConflict{Columns: lastSeenKey, DoNothing: true}).Create(&row).Error
}

func (repo *SQLLastSeenRepository) Delete(scope, conversationID, userID string) error {
	return repo.db.Where("scope = ? AND conversation_id = ? AND user_id = ?", scope, conversationID, userID).Delete(&entity.LastSeen{}).Error
}
