package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrRoleNotFound    = errors.New("role not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserKeyNotFound = errors.New("user key not found")

	// ErrInvalidUserKey is returned when a key would be persisted without a
	// user, with an unknown type or with an empty value.
	ErrInvalidUserKey = errors.New("invalid user key")
	// ErrKeyNotActive means the presented key is unknown, consumed or expired.
	ErrKeyNotActive = errors.New("key is invalid or no longer active")

	ErrRegistrationClosed = errors.New("registration is disabled")
	ErrEmailTaken         = errors.New("email already registered")
	ErrEmailUnchanged     = errors.New("new email matches the current one")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is disabled")
	ErrEmailUnconfirmed   = errors.New("email address is not confirmed")
)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
