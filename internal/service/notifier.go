package service

import (
	"context"
	"gatekeeper/internal/entity"

	"github.com/sirupsen/logrus"
)

// KeyNotifier delivers a freshly issued key to its user, usually by email.
type KeyNotifier interface {
	NotifyUserKey(ctx context.Context, user *entity.User, key *entity.UserKey) error
}

// NotifierFunc adapts a function to KeyNotifier.
type NotifierFunc func(ctx context.Context, user *entity.User, key *entity.UserKey) error

// NotifyUserKey calls f.
func (f NotifierFunc) NotifyUserKey(ctx context.Context, user *entity.User, key *entity.UserKey) error {
	return f(ctx, user, key)
}

// LogNotifier records issued keys in the log instead of sending mail. The
// key value is only written at debug level.
type LogNotifier struct {
	Logger *logrus.Logger
}

// NotifyUserKey implements KeyNotifier.
func (n LogNotifier) NotifyUserKey(_ context.Context, user *entity.User, key *entity.UserKey) error {
	logger := n.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"email":       recipient(user, key),
		"key_type":    key.Type.String(),
		"expire_time": key.ExpireTime,
	})
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		entry = entry.WithField("key", key.Key)
	}
	entry.Info("user key issued")
	return nil
}

// recipient picks the address a key must be sent to: email changes go to
// the pending address.
func recipient(user *entity.User, key *entity.UserKey) string {
	if key.Type == entity.UserKeyTypeEmailChange && user.NewEmail != nil {
		return *user.NewEmail
	}
	return user.Email
}
