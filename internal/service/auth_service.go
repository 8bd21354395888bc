/*
 * Copyright (c) 2026 Francesco Biribo'
 *
 * Permission to use, copy, modify, and distribute this software for any purpose with or without fee is hereby granted, provided that the above copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"whatschat/internal/data"
	"whatschat/internal/entity"
	"whatschat/internal/nlog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// Service used for the user registration and login phases, and for the API tokens handed out at login
type AuthService interface {
	Register(username, email, password string) (*entity.User, error) // Creates a new account, name and email must be unused
	Login(email, password string) (*entity.User, string, error)      // Checks the credentials, returns the user and a signed token
	ParseToken(token string) (string, error)                         // Returns the user id a valid token was issued to
}

type AuthClaims struct {
	jwt.RegisteredClaims
}

type authService struct {
	storage *data.StorageManager
	secret  []byte
	ttl     time.Duration
	now     Clock
	logger  nlog.Logger
}

func NewAuthService(storage *data.StorageManager, secret string, ttl time.Duration, now Clock, logger nlog.Logger) AuthService {
	if now == nil {
		now = SystemClock
	}
	if logger == nil {
		logger = nlog.Nop()
	}
	return &authService{storage, []byte(secret), ttl, now, logger}
}

func (a *authService) Logf(format string, v ...any) {
	a.logger.Logf(format, v...)
}

func (a *authService) Register(username, email, password string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if len([]rune(username)) < minNameLength {
		return nil, fail(ErrValidation, "Username should be at least %d characters", minNameLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fail(ErrValidation, "Email is not valid")
	}
	if len(password) < minPasswordLength {
		return nil, fail(ErrValidation, "Password should be at least %d characters", minPasswordLength)
	}

	users := a.storage.GetUserRepository()
	if _, err := users.GetByName(username); err == nil {
		return nil, fail(ErrValidation, "Username already used")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if _, err := users.GetByEmail(email); err == nil {
		return nil, fail(ErrValidation, "Email already used")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		a.Logf("Could not calculate hash{%v}", err)
		return nil, err
	}
	now := a.now()
	user := &entity.User{
		ID:        uuid.NewString(),
		Name:      username,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
		Secret:    entity.UserSecret{Hash: string(hash)},
	}
	if err := users.Create(user); err != nil {
		a.Logf("Could not register %q {%v}", username, err)
		return nil, err
	}
	a.Logf("User %s registered as %q", user.ID, username)
	return user, nil
}

func (a *authService) Login(email, password string) (*entity.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := a.storage.GetUserRepository().GetForLogin(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", fail(ErrUnauthorized, "Incorrect email or password")
	}
	if err != nil {
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Secret.Hash), []byte(password)); err != nil {
		return nil, "", fail(ErrUnauthorized, "Incorrect email or password")
	}

	now := a.now()
	claims := AuthClaims{jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, "", err
	}
	a.Logf("User %s logged in", user.ID)
	user.Secret = entity.UserSecret{}
	return user, token, nil
}

func (a *authService) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &AuthClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !parsed.Valid {
		return "", fail(ErrUnauthorized, "Invalid token")
	}
	claims := parsed.Claims.(*AuthClaims)
	if claims.Subject == "" {
		return "", fail(ErrUnauthorized, "Invalid token")
	}
	return claims.Subject, nil
}
