package sql

import (
	"context"
	"errors"
	"fmt"
	"gatekeeper/internal/entity"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// activeUserKeys limits a query to keys of the given types that are not
// consumed and not past expiry at now.
func activeUserKeys(now time.Time, types []entity.UserKeyType) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where(clause.Eq{Column: clause.Column{Name: "consume_time"}, Value: nil}).
			Where(clause.Or(
				clause.Eq{Column: clause.Column{Name: "expire_time"}, Value: nil},
				clause.Gte{Column: clause.Column{Name: "expire_time"}, Value: now},
			))
		if len(types) == 1 {
			return db.Where(clause.Eq{Column: clause.Column{Name: "type"}, Value: int(types[0])})
		}
		values := make([]interface{}, 0, len(types))
		for _, t := range types {
			values = append(values, int(t))
		}
		return db.Where(clause.IN{Column: clause.Column{Name: "type"}, Values: values})
	}
}

func checkKeyTypes(types []entity.UserKeyType) error {
	if len(types) == 0 {
		return fmt.Errorf("at least one key type is required")
	}
	for _, t := range types {
		if !t.Valid() {
			return fmt.Errorf("invalid key type %d", t)
		}
	}
	return nil
}

// GenerateUserKey reuses the active key for (userID, keyType) when one
// exists, overwriting its user, type, create_time, expire_time and key, and
// inserts a new row otherwise. The lookup and write share a transaction and
// the found row is locked; SQLite ignores the lock clause.
func (r *GormRepository) GenerateUserKey(ctx context.Context, userID uint, keyType entity.UserKeyType, key string, expireTime *time.Time) (*entity.UserKey, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}

	var expire *time.Time
	if expireTime != nil {
		t := Truncate(*expireTime)
		expire = &t
	}

	var result entity.UserKey
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.Now()

		var existing entity.UserKey
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(activeUserKeys(now, []entity.UserKeyType{keyType})).
			Where("user_id = ?", userID).
			First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		result = entity.UserKey{
			ID:         existing.ID,
			UserID:     userID,
			Type:       keyType,
			Key:        key,
			CreateTime: &now,
			ExpireTime: expire,
		}
		if !found {
			return tx.Omit(clause.Associations).Create(&result).Error
		}

		var expireValue interface{}
		if expire != nil {
			expireValue = *expire
		}
		return tx.Model(&entity.UserKey{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
			"user_id":     userID,
			"type":        int(keyType),
			"key":         key,
			"create_time": now,
			"expire_time": expireValue,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindActiveUserKeyByUser returns the active key for a user, or nil when
// there is none.
func (r *GormRepository) FindActiveUserKeyByUser(ctx context.Context, userID uint, types ...entity.UserKeyType) (*entity.UserKey, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if err := checkKeyTypes(types); err != nil {
		return nil, err
	}
	return r.firstActive(r.db.WithContext(ctx).Where("user_id = ?", userID), types)
}

// FindActiveUserKeyByKey returns the active key with the given value, or
// nil when there is none.
func (r *GormRepository) FindActiveUserKeyByKey(ctx context.Context, key string, types ...entity.UserKeyType) (*entity.UserKey, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if err := checkKeyTypes(types); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, nil
	}
	return r.firstActive(r.db.WithContext(ctx).Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: trimmed}), types)
}

func (r *GormRepository) firstActive(query *gorm.DB, types []entity.UserKeyType) (*entity.UserKey, error) {
	var key entity.UserKey
	err := query.Scopes(activeUserKeys(r.Now(), types)).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// GetUserKey loads a key by ID regardless of its state.
func (r *GormRepository) GetUserKey(ctx context.Context, id uint) (*entity.UserKey, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid key id")
	}
	var key entity.UserKey
	if err := r.db.WithContext(ctx).First(&key, id).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

// ConsumeUserKey sets consume_time to now. Calling it again overwrites the
// timestamp.
func (r *GormRepository) ConsumeUserKey(ctx context.Context, key *entity.UserKey) error {
	now, err := r.stampUserKey(ctx, key, "consume_time")
	if err != nil {
		return err
	}
	key.ConsumeTime = &now
	return nil
}

// RedeemUserKey consumes key only while it is still active, so of two
// concurrent redemptions at most one succeeds. A key that is already
// consumed, expired or gone yields gorm.ErrRecordNotFound.
func (r *GormRepository) RedeemUserKey(ctx context.Context, key *entity.UserKey) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if key == nil || key.ID == 0 {
		return fmt.Errorf("invalid user key")
	}
	now := r.Now()
	result := r.db.WithContext(ctx).Model(&entity.UserKey{}).
		Where("id = ?", key.ID).
		Scopes(activeUserKeys(now, []entity.UserKeyType{key.Type})).
		Update("consume_time", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	key.ConsumeTime = &now
	return nil
}

// ExpireUserKey sets expire_time to now.
func (r *GormRepository) ExpireUserKey(ctx context.Context, key *entity.UserKey) error {
	now, err := r.stampUserKey(ctx, key, "expire_time")
	if err != nil {
		return err
	}
	key.ExpireTime = &now
	return nil
}

func (r *GormRepository) stampUserKey(ctx context.Context, key *entity.UserKey, column string) (time.Time, error) {
	if r == nil || r.db == nil {
		return time.Time{}, fmt.Errorf("repository not initialised")
	}
	if key == nil || key.ID == 0 {
		return time.Time{}, fmt.Errorf("invalid user key")
	}
	now := r.Now()
	err := r.db.WithContext(ctx).Model(&entity.UserKey{}).Where("id = ?", key.ID).Update(column, now).Error
	return now, err
}
