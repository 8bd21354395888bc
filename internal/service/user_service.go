package service

import (
	"strings"

	"whatschat/internal/data"
	"whatschat/internal/entity"
	"whatschat/internal/nlog"
)

// Service used to read and update user profiles and presence
type UserService interface {
	GetUser(id string) (*entity.User, error)
	GetAllExcept(id string) ([]*entity.User, error) // Every other user, used to start new chats
	SearchByEmail(email string) (*entity.User, error)
	SetAvatar(id, image string) (*entity.User, error)
	SetOnline(id string, online bool) error
}

type userService struct {
	storage *data.StorageManager
	logger  nlog.Logger
}

func NewUserService(storage *data.StorageManager, logger nlog.Logger) UserService {
	if logger == nil {
		logger = nlog.Nop()
	}
	return &userService{storage, logger}
}

func (u *userService) Logf(format string, v ...any) {
	u.logger.Logf(format, v...)
}

func (u *userService) GetUser(id string) (*entity.User, error) {
	user, err := u.storage.GetUserRepository().GetByID(id)
	if err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	return user, nil
}

func (u *userService) GetAllExcept(id string) ([]*entity.User, error) {
	return u.storage.GetUserRepository().GetAllExcept(id)
}

func (u *userService) SearchByEmail(email string) (*entity.User, error) {
	user, err := u.storage.GetUserRepository().GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	return user, nil
}

func (u *userService) SetAvatar(id, image string) (*entity.User, error) {
	if image == "" {
		return nil, fail(ErrValidation, "Image cannot be empty")
	}
	if err := u.storage.GetUserRepository().SetAvatar(id, image); err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	u.Logf("User %s changed avatar", id)
	return u.GetUser(id)
}

func (u *userService) SetOnline(id string, online bool) error {
	return u.storage.GetUserRepository().SetOnline(id, online)
}
