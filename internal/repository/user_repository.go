/*
 * Copyright (c) 2026 Francesco Biribo'
 *
 * Permission to use, copy, modify, and distribute this software for any purpose with or without fee is hereby granted, provided that the above copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package repository

import (
	"whatschat/internal/entity"

	"gorm.io/gorm"
)

// This repository is used to manipulate the users in the system. Users are never hard-deleted.
type UserRepository interface {
	Create(user *entity.User) error // Inserts a user together with its secret

	GetForLogin(email string) (*entity.User, error) // Retrieves the user with the given email, WITH its hashed password

	GetByID(id string) (*entity.User, error)        // Retrieves the user with the given id
	GetByIDs(ids []string) ([]*entity.User, error)  // Retrieves the users with the given ids, unknown ids are skipped
	GetByName(name string) (*entity.User, error)    // Retrieves the user with the given display name
	GetByEmail(email string) (*entity.User, error)  // Retrieves the user with the given email
	GetAllExcept(id string) ([]*entity.User, error) // Retrieves every user but the given one, ordered by name
	SetAvatar(id, avatar string) error              // Replaces the avatar string
	SetOnline(id string, online bool) error         // Updates the presence flag
}

// Implementation of the repository on top of gorm (any supported dialect)
type SQLUserRepository struct {
	db *gorm.DB
}

func NewSQLUserRepository(db *gorm.DB) UserRepository {
	return &SQLUserRepository{db}
}

func (repo *SQLUserRepository) Create(user *entity.User) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Secret").Create(user).Error; err != nil {
			return err
		}
		user.Secret.UserID = user.ID
		return tx.Create(&user.Secret).Error
	})
}

func (repo *SQLUserRepository) GetForLogin(email string) (*entity.User, error) {
	var user entity.User
	if err := repo.db.Preload("Secret").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (repo *SQLUserRepository) GetByID(id string) (*entity.User, error) {
	var user entity.User
	if err := repo.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (repo *SQLUserRepository) GetByIDs(ids []string) ([]*entity.User, error) {
	var users []*entity.User
	if len(ids) == 0 {
		return users, nil
	}
	err := repo.db.Where("id IN ?", ids).Find(&users).Error
	return users, err
}

func (repo *SQLUserRepository) GetByName(name string) (*entity.User, error) {
	var user entity.User
	if err := repo.db.Where("name = ?", name).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (repo *SQLUserRepository) GetByEmail(email string) (*entity.User, error) {
	var user entity.User
	if err := repo.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (repo *SQLUserRepository) GetAllExcept(id string) ([]*entity.User, error) {
	var users []*entity.User
	err := repo.db.Where("id <> ?", id).Order("name").Find(&users).Error
	return users, err
}

func (repo *SQLUserRepository) SetAvatar(id, avatar string) error {
	res := repo.db.Model(&entity.User{}).Where("id = ?", id).Update("avatar", avatar)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (repo *SQLUserRepository) SetOnline(id string, online bool) error {
	return repo.db.Model(&entity.User{}).Where("id = ?", id).UpdateColumn("is_online", online).Error
}
