package service

import (
	"context"
	"errors"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/entity"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AccountStore is the user persistence the account flows need.
type AccountStore interface {
	CreateUser(ctx context.Context, user *entity.User) error
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	GetUserByEmail(ctx context.Context, email string) (*entity.User, error)
	GetUserByID(ctx context.Context, id uint) (*entity.User, error)
}

// KeyLifetimes sets how long each key type stays valid. Zero never expires.
type KeyLifetimes struct {
	EmailActivate time.Duration
	EmailChange   time.Duration
	PasswordReset time.Duration
}

// For returns the lifetime for t.
func (l KeyLifetimes) For(t entity.UserKeyType) time.Duration {
	switch t {
	case entity.UserKeyTypeEmailActivate:
		return l.EmailActivate
	case entity.UserKeyTypeEmailChange:
		return l.EmailChange
	case entity.UserKeyTypePasswordReset:
		return l.PasswordReset
	default:
		return 0
	}
}

// AccountOptions toggles the account flows.
type AccountOptions struct {
	RegistrationEnabled bool
	EmailConfirmation   bool
	Lifetimes           KeyLifetimes
}

// AccountService runs registration, email confirmation, email change,
// password reset and login on top of user keys.
type AccountService struct {
	users    AccountStore
	keys     *UserKeyService
	tokens   *auth.Manager
	notifier KeyNotifier
	opts     AccountOptions
}

// NewAccountService builds an AccountService. A nil notifier logs keys.
func NewAccountService(users AccountStore, keys *UserKeyService, tokens *auth.Manager, notifier KeyNotifier, opts AccountOptions) *AccountService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &AccountService{users: users, keys: keys, tokens: tokens, notifier: notifier, opts: opts}
}

// Register creates a user with the default role. With email confirmation
// on, the account starts unconfirmed and an activation key is sent.
func (s *AccountService) Register(ctx context.Context, email, password, displayName string) (*entity.User, error) {
	if !s.opts.RegistrationEnabled {
		return nil, ErrRegistrationClosed
	}
	email = normaliseEmail(email)
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	status := entity.UserStatusActive
	if s.opts.EmailConfirmation {
		status = entity.UserStatusUnconfirmedEmail
	}
	user := &entity.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
		RoleID:       entity.RoleUser,
		Status:       status,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "status": status.String()}).Info("user registered")

	if status == entity.UserStatusUnconfirmedEmail {
		if err := s.issue(ctx, user, entity.UserKeyTypeEmailActivate); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// ConfirmEmail redeems an activation or email-change key.
func (s *AccountService) ConfirmEmail(ctx context.Context, value string) (*entity.User, error) {
	key, err := s.keys.FindActiveByKey(ctx, value, entity.UserKeyTypeEmailActivate, entity.UserKeyTypeEmailChange)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrKeyNotActive
	}
	user, err := s.keys.User(ctx, key)
	if err != nil {
		return nil, err
	}

	var updates entity.UserUpdates
	switch key.Type {
	case entity.UserKeyTypeEmailActivate:
		status := entity.UserStatusActive
		updates.Status = &status
		user.Status = status
	case entity.UserKeyTypeEmailChange:
		if user.NewEmail == nil {
			if _, err := s.keys.Expire(ctx, key); err != nil {
				return nil, err
			}
			return nil, ErrKeyNotActive
		}
		newEmail := *user.NewEmail
		if err := s.ensureEmailFree(ctx, newEmail); err != nil {
			if _, expireErr := s.keys.Expire(ctx, key); expireErr != nil {
				logrus.WithError(expireErr).WithField("key_id", key.ID).Warn("failed to expire email change key")
			}
			return nil, err
		}
		var cleared *string
		updates.Email = &newEmail
		updates.NewEmail = &cleared
		user.Email = newEmail
		user.NewEmail = nil
	}

	// 先占用密钥，并发兑换只有一个能继续
	if err := s.keys.Redeem(ctx, key); err != nil {
		return nil, err
	}
	if err := s.users.UpdateUser(ctx, user.ID, updates); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "key_type": key.Type.String()}).Info("email confirmed")
	return user, nil
}

// RequestEmailChange stores newEmail as pending and sends a confirmation
// key to it.
func (s *AccountService) RequestEmailChange(ctx context.Context, userID uint, newEmail string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}
	newEmail = normaliseEmail(newEmail)
	if newEmail == user.Email {
		return ErrEmailUnchanged
	}
	if err := s.ensureEmailFree(ctx, newEmail); err != nil {
		return err
	}

	pending := &newEmail
	if err := s.users.UpdateUser(ctx, user.ID, entity.UserUpdates{NewEmail: &pending}); err != nil {
		return err
	}
	user.NewEmail = pending
	return s.issue(ctx, user, entity.UserKeyTypeEmailChange)
}

// RequestPasswordReset sends a reset key. Unknown addresses are ignored so
// the response does not reveal which emails exist.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if isNotFound(err) {
			logrus.Debug("password reset requested for unknown email")
			return nil
		}
		return err
	}
	return s.issue(ctx, user, entity.UserKeyTypePasswordReset)
}

// ResetPassword redeems a reset key and stores the new password.
func (s *AccountService) ResetPassword(ctx context.Context, value, password string) error {
	key, err := s.keys.FindActiveByKey(ctx, value, entity.UserKeyTypePasswordReset)
	if err != nil {
		return err
	}
	if key == nil {
		return ErrKeyNotActive
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.keys.Redeem(ctx, key); err != nil {
		return err
	}
	if err := s.users.UpdateUser(ctx, key.UserID, entity.UserUpdates{PasswordHash: &hash}); err != nil {
		return err
	}
	logrus.WithField("user_id", key.UserID).Info("password reset")
	return nil
}

// Login verifies credentials and issues a session token.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, time.Time, *entity.User, error) {
	user, err := s.users.GetUserByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if isNotFound(err) {
			return "", time.Time{}, nil, ErrInvalidCredentials
		}
		return "", time.Time{}, nil, err
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}
	switch user.Status {
	case entity.UserStatusActive:
	case entity.UserStatusUnconfirmedEmail:
		return "", time.Time{}, nil, ErrEmailUnconfirmed
	default:
		return "", time.Time{}, nil, ErrAccountInactive
	}

	token, expiresAt, err := s.tokens.GenerateToken(user)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expiresAt, user, nil
}

func (s *AccountService) issue(ctx context.Context, user *entity.User, keyType entity.UserKeyType) error {
	key, err := s.keys.GenerateWithTTL(ctx, user.ID, keyType, s.opts.Lifetimes.For(keyType))
	if err != nil {
		return err
	}
	return s.notifier.NotifyUserKey(ctx, user, key)
}

func (s *AccountService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrEmailTaken
	case isNotFound(err):
		return nil
	default:
		return err
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
