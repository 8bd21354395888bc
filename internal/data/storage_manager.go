package data

import (
	"whatschat/internal/repository"

	"gorm.io/gorm"
)

// StorageManager bundles the repositories that share one database handle.
type StorageManager struct {
	db *gorm.DB

	// Repositories
	userRepo      repository.UserRepository
	groupRepo     repository.GroupRepository
	communityRepo repository.CommunityRepository
	messageRepo   repository.MessageRepository
	lastSeenRepo  repository.LastSeenRepository
}

func NewStorageManager(db *gorm.DB) *StorageManager {
	return &StorageManager{
		db:            db,
		userRepo:      repository.NewSQLUserRepository(db),
		groupRepo:     repository.NewSQLGroupRepository(db),
		communityRepo: repository.NewSQLCommunityRepository(db),
		messageRepo:   repository.NewSQLMessageRepository(db),
		lastSeenRepo:  repository.NewSQLLastSeenRepository(db),
	}
}

// Atomic runs fn against repositories bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
// fn must only use the manager it receives.
func (s *StorageManager) Atomic(fn func(tx *StorageManager) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewStorageManager(tx))
	})
}

func (s *StorageManager) GetUserRepository() repository.UserRepository {
	return s.userRepo
}

func (s *StorageManager) GetGroupRepository() repository.GroupRepository {
	return s.groupRepo
}

func (s *StorageManager) GetCommunityRepository() repository.CommunityRepository {
	return s.communityRepo
}

func (s *StorageManager) GetMessageRepository() repository.MessageRepository {
	return s.messageRepo
}

func (s *StorageManager) GetLastSeenRepository() repository.LastSeenRepository {
	return s.lastSeenRepo
}

// Close releases the underlying connection pool.
func (s *StorageManager) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
