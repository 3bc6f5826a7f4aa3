package entity

import "time"

// UserKeyType is the purpose a key was issued for.
type UserKeyType int

const (
	// UserKeyTypeEmailActivate confirms the address given at registration.
	UserKeyTypeEmailActivate UserKeyType = 1
	// UserKeyTypeEmailChange confirms a pending new email address.
	UserKeyTypeEmailChange UserKeyType = 2
	// UserKeyTypePasswordReset authorises a password reset.
	UserKeyTypePasswordReset UserKeyType = 3
)

// Valid reports whether t is one of the known types.
func (t UserKeyType) Valid() bool {
	switch t {
	case UserKeyTypeEmailActivate, UserKeyTypeEmailChange, UserKeyTypePasswordReset:
		return true
	default:
		return false
	}
}

func (t UserKeyType) String() string {
	switch t {
	case UserKeyTypeEmailActivate:
		return "email_activate"
	case UserKeyTypeEmailChange:
		return "email_change"
	case UserKeyTypePasswordReset:
		return "password_reset"
	default:
		return "unknown"
	}
}

// UserKeyState is derived from the two terminal timestamps.
type UserKeyState string

const (
	UserKeyStateActive   UserKeyState = "active"
	UserKeyStateConsumed UserKeyState = "consumed"
	UserKeyStateExpired  UserKeyState = "expired"
)

// UserKey is a single-use, time-bound token tied to a user and a purpose.
// Rows are never deleted; consume and expire only set timestamps.
type UserKey struct {
	ID          uint        `gorm:"primarykey" json:"id"`
	UserID      uint        `gorm:"column:user_id;not null;index:idx_user_key_user_type" json:"user_id"`
	Type        UserKeyType `gorm:"column:type;not null;index:idx_user_key_user_type" json:"type"`
	Key         string      `gorm:"column:key;type:varchar(255);index:idx_user_key_key" json:"key"`
	CreateTime  *time.Time  `gorm:"column:create_time" json:"create_time"`
	ConsumeTime *time.Time  `gorm:"column:consume_time" json:"consume_time"`
	ExpireTime  *time.Time  `gorm:"column:expire_time" json:"expire_time"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// IsActive applies the active rule: not consumed and not past expiry.
func (k *UserKey) IsActive(now time.Time) bool {
	return k.State(now) == UserKeyStateActive
}

// State reports the lifecycle state at now. Consumed wins when both
// terminal timestamps are set.
func (k *UserKey) State(now time.Time) UserKeyState {
	if k.ConsumeTime != nil {
		return UserKeyStateConsumed
	}
	if k.ExpireTime != nil && k.ExpireTime.Before(now) {
		return UserKeyStateExpired
	}
	return UserKeyStateActive
}
