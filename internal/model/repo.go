package model

import (
	"context"
	"gatekeeper/internal/entity"
	"time"
)

// Repository 定义数据库操作接口
type Repository interface {
	// 角色
	CreateRole(ctx context.Context, role *entity.Role) error
	UpdateRole(ctx context.Context, id uint, updates entity.RoleUpdates) (*entity.Role, error)
	GetRole(ctx context.Context, id uint) (*entity.Role, error)
	ListRoles(ctx context.Context) ([]entity.Role, error)

	// 用户密钥
	GenerateUserKey(ctx context.Context, userID uint, keyType entity.UserKeyType, key string, expireTime *time.Time) (*entity.UserKey, error)
	FindActiveUserKeyByUser(ctx context.Context, userID uint, types ...entity.UserKeyType) (*entity.UserKey, error)
	FindActiveUserKeyByKey(ctx context.Context, key string, types ...entity.UserKeyType) (*entity.UserKey, error)
	GetUserKey(ctx context.Context, id uint) (*entity.UserKey, error)
	ConsumeUserKey(ctx context.Context, key *entity.UserKey) error
	RedeemUserKey(ctx context.Context, key *entity.UserKey) error
	ExpireUserKey(ctx context.Context, key *entity.UserKey) error
	Now() time.Time

	// 用户
	CreateUser(ctx context.Context, user *entity.User) error
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	GetUserByEmail(ctx context.Context, email string) (*entity.User, error)
	GetUserByID(ctx context.Context, id uint) (*entity.User, error)
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.User, *entity.Meta, error)
	CountUsers(ctx context.Context) (int64, error)
}
