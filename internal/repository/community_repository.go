package repository

import (
	"whatschat/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// This repository is used to manipulate the communities and their open member lists.
type CommunityRepository interface {
	Create(community *entity.Community) error // Inserts a community, WITH its Members rows

	GetByID(id string) (*entity.Community, error)     // Retrieves the community with its members (by join date)
	GetByName(name string) (*entity.Community, error) // Retrieves the community with the given (unique) name
	GetAll() ([]*entity.Community, error)             // Retrieves every community with its members, ordered by name
	GetMember(id, userID string) (*entity.CommunityMember, error)

	AddMemberIfAbsent(id string, member entity.CommunityMember) (bool, error) // Reports whether a new row was written
	RemoveMember(id, userID string) error
	UpdateInfo(id string, fields map[string]any) error
}

// Implementation of the repository on top of gorm (any supported dialect)
type SQLCommunityRepository struct {
	db *gorm.DB
}

func NewSQLCommunityRepository(db *gorm.DB) CommunityRepository {
	return &SQLCommunityRepository{db}
}

func byJoinDate(db *gorm.DB) *gorm.DB {
	return db.Order("joined_at, user_id")
}

func (repo *SQLCommunityRepository) Create(community *entity.Community) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(community).Error; err != nil {
			return err
		}
		for i := range community.Members {
			community.Members[i].CommunityID = community.ID
		}
		if len(community.Members) > 0 {
			return tx.Create(&community.Members).Error
		}
		return nil
	})
}

func (repo *SQLCommunityRepository) GetByID(id string) (*entity.Community, error) {
	var community entity.Community
	if err := repo.db.Preload("Members", byJoinDate).Where("id = ?", id).First(&community).Error; err != nil {
		return nil, err
	}
	return &community, nil
}

func (repo *SQLCommunityRepository) GetByName(name string) (*entity.Community, error) {
	var community entity.Community
	if err := repo.db.Where("name = ?", name).First(&community).Error; err != nil {
		return nil, err
	}
	return &community, nil
}

func (repo *SQLCommunityRepository) GetAll() ([]*entity.Community, error) {
	var communities []*entity.Community
	err := repo.db.Preload("Members", byJoinDate).Order("name").Find(&communities).Error
	return communities, err
}

func (repo *SQLCommunityRepository) GetMember(id, userID string) (*entity.CommunityMember, error) {
	var member entity.CommunityMember
	if err := repo.db.Where("community_id = ? AND user_id = ?", id, userID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (repo *SQLCommunityRepository) AddMemberIfAbsent(id string, member entity.CommunityMember) (bool, error) {
	member.CommunityID = id
	res := repo.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&member)
	return res.RowsAffected > 0, res.Error
}

func (repo *SQLCommunityRepository) RemoveMember(id, userID string) error {
	return repo.db.Where("community_id = ? AND user_id = ?", id, userID).Delete(&entity.CommunityMember{}).Error
}

func (repo *SQLCommunityRepository) UpdateInfo(id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return repo.db.Model(&entity.Community{}).Where("id = ?", id).Updates(fields).Error
}
