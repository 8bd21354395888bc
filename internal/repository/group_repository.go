/*
 * Copyright (c) 2026 Francesco Biribo'
 *
 * Permission to use, copy, modify, and distribute this software for any purpose with or without fee is hereby granted, provided that the above copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package repository

import (
	"time"

	"whatschat/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// This repository is used to manipulate the groups, their members and their admins.
// A group whose last member is removed is soft-deleted and disappears from every read.
type GroupRepository interface {
	Create(group *entity.Group) error // Inserts a group, WITH its Members and Admins rows

	GetByID(id string) (*entity.Group, error)                 // Retrieves the group with members (by join date) and admins
	LockForUpdate(id string) error                            // Row-locks the group until the transaction ends (no-op on sqlite)
	GetForUser(userID string) ([]*entity.Group, error)        // Retrieves the groups the user is a member of, most recently updated first
	GetMember(id, userID string) (*entity.GroupMember, error) // Retrieves the membership row, gorm.ErrRecordNotFound if absent
	IsAdmin(id, userID string) (bool, error)

	AddMembers(id string, members []entity.GroupMember) error // Adds the rows that are not there yet, existing join dates are kept
	RemoveMember(id, userID string) (int64, error)            // Removes the user from members and admins, returns the members left
	AddAdmin(id, userID string) error
	RemoveAdmin(id, userID string) error
	CountAdmins(id string) (int64, error)
	UpdateInfo(id string, fields map[string]any) error // Updates name/description/avatar
	Touch(id string, at time.Time) error               // Bumps updated_at, so the group moves up in listings
	SoftDelete(id string) error
}

// Implementation of the repository on top of gorm (any supported dialect)
type SQLGroupRepository struct {
	db *gorm.DB
}

func NewSQLGroupRepository(db *gorm.DB) GroupRepository {
	return &SQLGroupRepository{db}
}

func (repo *SQLGroupRepository) Create(group *entity.Group) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(group).Error; err != nil {
			return err
		}
		for i := range group.Members {
			group.Members[i].GroupID = group.ID
		}
		for i := range group.Admins {
			group.Admins[i].GroupID = group.ID
		}
		if len(group.Members) > 0 {
			if err := tx.Create(&group.Members).Error; err != nil {
				return err
			}
		}
		if len(group.Admins) > 0 {
			if err := tx.Create(&group.Admins).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *SQLGroupRepository) GetByID(id string) (*entity.Group, error) {
	var group entity.Group
	err := repo.db.
		Preload("Members", byJoinDate).
		Preload("Admins").
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (repo *SQLGroupRepository) LockForUpdate(id string) error {
	var group entity.Group
	return repo.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		First(&group).Error
}

func (repo *SQLGroupRepository) GetForUser(userID string) ([]*entity.Group, error) {
	var groups []*entity.Group
	err := repo.db.
		Preload("Members", byJoinDate).
		Preload("Admins").
		Where("id IN (?)", repo.db.Model(&entity.GroupMember{}).Select("group_id").Where("user_id = ?", userID)).
		Order("updated_at DESC").
		Find(&groups).Error
	return groups, err
}

func (repo *SQLGroupRepository) GetMember(id, userID string) (*entity.GroupMember, error) {
	var member entity.GroupMember
	if err := repo.db.Where("group_id = ? AND user_id = ?", id, userID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (repo *SQLGroupRepository) IsAdmin(id, userID string) (bool, error) {
	var count int64
	err := repo.db.Model(&entity.GroupAdmin{}).Where("group_id = ? AND user_id = ?", id, userID).Count(&count).Error
	return count > 0, err
}

func (repo *SQLGroupRepository) AddMembers(id string, members []entity.GroupMember) error {
	if len(members) == 0 {
		return nil
	}
	for i := range members {
		members[i].GroupID = id
	}
	return repo.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
}

func (repo *SQLGroupRepository) RemoveMember(id, userID string) (int64, error) {
	var left int64
	err := repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ? AND user_id = ?", id, userID).Delete(&entity.GroupAdmin{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ? AND user_id = ?", id, userID).Delete(&entity.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Model(&entity.GroupMember{}).Where("group_id = ?", id).Count(&left).Error
	})
	return left, err
}

func (repo *SQLGroupRepository) AddAdmin(id, userID string) error {
	return repo.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entity.GroupAdmin{GroupID: id, UserID: userID}).Error
}

func (repo *SQLGroupRepository) RemoveAdmin(id, userID string) error {
	return repo.db.Where("group_id = ? AND user_id = ?", id, userID).Delete(&entity.GroupAdmin{}).Error
}

func (repo *SQLGroupRepository) CountAdmins(id string) (int64, error) {
	var count int64
	err := repo.db.Model(&entity.GroupAdmin{}).Where("group_id = ?", id).Count(&count).Error
	return count, err
}

func (repo *SQLGroupRepository) UpdateInfo(id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return repo.db.Model(&entity.Group{}).Where("id = ?", id).Updates(fields).Error
}

func (repo *SQLGroupRepository) Touch(id string, at time.Time) error {
	return repo.db.Model(&entity.Group{}).Where("id = ?", id).UpdateColumn("updated_at", at).Error
}

func (repo *SQLGroupRepository) SoftDelete(id string) error {
	return repo.db.Where("id = ?", id).Delete(&entity.Group{}).Error
}
