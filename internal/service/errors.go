package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotMember    = errors.New("not a member")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("invalid request")
	ErrUnauthorized = errors.New("unauthorized")
)

// domainError carries a client-facing message and unwraps to one of the sentinels above.
type domainError struct {
	kind error
	msg  string
}

func (e *domainError) Error() string { return e.msg }
func (e *domainError) Unwrap() error { return e.kind }

func fail(kind error, format string, v ...any) error {
	return &domainError{kind: kind, msg: fmt.Sprintf(format, v...)}
}

// IsDomainError reports whether err is a client mistake rather than a storage fault.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotMember) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) || errors.Is(err, ErrUnauthorized)
}

// notFoundOr maps gorm's missing-row error to ErrNotFound with msg, and passes anything else through.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(ErrNotFound, "%s", msg)
	}
	return err
}

func notMemberOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(ErrNotMember, "%s", msg)
	}
	return err
}
