package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"gatekeeper/internal/entity"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// keyBytes is the amount of randomness in a generated key.
const keyBytes = 32

// UserKeyStore is the persistence the key service needs.
type UserKeyStore interface {
	GenerateUserKey(ctx context.Context, userID uint, keyType entity.UserKeyType, key string, expireTime *time.Time) (*entity.UserKey, error)
	FindActiveUserKeyByUser(ctx context.Context, userID uint, types ...entity.UserKeyType) (*entity.UserKey, error)
	FindActiveUserKeyByKey(ctx context.Context, key string, types ...entity.UserKeyType) (*entity.UserKey, error)
	GetUserKey(ctx context.Context, id uint) (*entity.UserKey, error)
	ConsumeUserKey(ctx context.Context, key *entity.UserKey) error
	RedeemUserKey(ctx context.Context, key *entity.UserKey) error
	ExpireUserKey(ctx context.Context, key *entity.UserKey) error
	Now() time.Time
}

// UserFinder resolves the user a key belongs to.
type UserFinder interface {
	GetUserByID(ctx context.Context, id uint) (*entity.User, error)
}

// GenerateRandomKey returns 32 random bytes as unpadded base64url.
func GenerateRandomKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// UserKeyService issues, looks up and terminates user keys.
type UserKeyService struct {
	store  UserKeyStore
	users  UserFinder
	newKey func() (string, error)
}

// NewUserKeyService builds a UserKeyService.
func NewUserKeyService(store UserKeyStore, users UserFinder) *UserKeyService {
	return &UserKeyService{store: store, users: users, newKey: GenerateRandomKey}
}

// Now exposes the clock keys are stamped with.
func (s *UserKeyService) Now() time.Time {
	return s.store.Now()
}

// Generate issues a fresh key for (userID, keyType). An active key for the
// same pair is overwritten in place, which invalidates its old value.
// A nil expireTime never expires.
func (s *UserKeyService) Generate(ctx context.Context, userID uint, keyType entity.UserKeyType, expireTime *time.Time) (*entity.UserKey, error) {
	value, err := s.newKey()
	if err != nil {
		return nil, err
	}
	if userID == 0 || !keyType.Valid() || value == "" {
		return nil, ErrInvalidUserKey
	}

	key, err := s.store.GenerateUserKey(ctx, userID, keyType, value, expireTime)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"key_id":   key.ID,
		"key_type": keyType.String(),
	}).Debug("user key generated")
	return key, nil
}

// GenerateWithTTL is Generate with an expiry relative to now. A zero ttl
// never expires.
func (s *UserKeyService) GenerateWithTTL(ctx context.Context, userID uint, keyType entity.UserKeyType, ttl time.Duration) (*entity.UserKey, error) {
	var expireTime *time.Time
	if ttl > 0 {
		t := s.store.Now().Add(ttl)
		expireTime = &t
	}
	return s.Generate(ctx, userID, keyType, expireTime)
}

// FindActiveByUser returns the active key of one of types for a user, or nil.
func (s *UserKeyService) FindActiveByUser(ctx context.Context, userID uint, types ...entity.UserKeyType) (*entity.UserKey, error) {
	return s.store.FindActiveUserKeyByUser(ctx, userID, types...)
}

// FindActiveByKey returns the active key with the given value, or nil.
func (s *UserKeyService) FindActiveByKey(ctx context.Context, key string, types ...entity.UserKeyType) (*entity.UserKey, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	return s.store.FindActiveUserKeyByKey(ctx, key, types...)
}

// Get loads a key by id in any state.
func (s *UserKeyService) Get(ctx context.Context, id uint) (*entity.UserKey, error) {
	key, err := s.store.GetUserKey(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserKeyNotFound
		}
		return nil, err
	}
	return key, nil
}

// Consume marks key as used. Consuming twice overwrites consume_time.
func (s *UserKeyService) Consume(ctx context.Context, key *entity.UserKey) (*entity.UserKey, error) {
	if key == nil {
		return nil, ErrUserKeyNotFound
	}
	if err := s.store.ConsumeUserKey(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Redeem consumes key if it is still active. Losing a concurrent redemption,
// or redeeming a key that is no longer active, returns ErrKeyNotActive.
func (s *UserKeyService) Redeem(ctx context.Context, key *entity.UserKey) error {
	if key == nil {
		return ErrKeyNotActive
	}
	if err := s.store.RedeemUserKey(ctx, key); err != nil {
		if isNotFound(err) {
			return ErrKeyNotActive
		}
		return err
	}
	return nil
}

// Expire invalidates key without marking it used.
func (s *UserKeyService) Expire(ctx context.Context, key *entity.UserKey) (*entity.UserKey, error) {
	if key == nil {
		return nil, ErrUserKeyNotFound
	}
	if err := s.store.ExpireUserKey(ctx, key); err != nil {
		return nil, err
	}
	return key, nil
}

// User loads the owner of key.
func (s *UserKeyService) User(ctx context.Context, key *entity.UserKey) (*entity.User, error) {
	if key == nil {
		return nil, ErrUserKeyNotFound
	}
	user, err := s.users.GetUserByID(ctx, key.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
