package entity

import "time"

// RoleCreateRequest is the payload for creating a role. A non-integer
// can_admin fails JSON binding.
type RoleCreateRequest struct {
	Name     string `json:"name"`
	CanAdmin *int   `json:"can_admin"`
}

// RoleUpdateRequest is the payload for updating a role.
type RoleUpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	CanAdmin *int    `json:"can_admin,omitempty"`
}

// RoleResponse is a role with its resolved permission map.
type RoleResponse struct {
	ID          uint                `json:"id"`
	Name        string              `json:"name"`
	CanAdmin    *int                `json:"can_admin"`
	Permissions map[Permission]bool `json:"permissions"`
	CreateTime  *time.Time          `json:"create_time"`
	UpdateTime  *time.Time          `json:"update_time"`
}

// NewRoleResponse builds the client view of r.
func NewRoleResponse(r *Role) RoleResponse {
	if r == nil {
		return RoleResponse{}
	}
	return RoleResponse{
		ID:          r.ID,
		Name:        r.Name,
		CanAdmin:    r.CanAdmin,
		Permissions: r.PermissionMap(),
		CreateTime:  r.CreateTime,
		UpdateTime:  r.UpdateTime,
	}
}

// UserKeyGenerateRequest issues a key for a user.
type UserKeyGenerateRequest struct {
	UserID     uint        `json:"user_id" binding:"required"`
	Type       UserKeyType `json:"type" binding:"required,oneof=1 2 3"`
	ExpireTime *time.Time  `json:"expire_time"`
}

// UserKeyLookupQuery finds an active key by key value or by user.
type UserKeyLookupQuery struct {
	Key    string `form:"key"`
	UserID uint   `form:"user_id"`
	Types  []int  `form:"type"`
}

// UserKeyResponse is the client view of a key. The key value itself is
// only included right after generation.
type UserKeyResponse struct {
	ID          uint         `json:"id"`
	UserID      uint         `json:"user_id"`
	Type        UserKeyType  `json:"type"`
	TypeName    string       `json:"type_name"`
	Key         string       `json:"key,omitempty"`
	State       UserKeyState `json:"state"`
	CreateTime  *time.Time   `json:"create_time"`
	ConsumeTime *time.Time   `json:"consume_time"`
	ExpireTime  *time.Time   `json:"expire_time"`
}

// NewUserKeyResponse builds the client view of k at now.
func NewUserKeyResponse(k *UserKey, now time.Time, includeKey bool) UserKeyResponse {
	if k == nil {
		return UserKeyResponse{}
	}
	resp := UserKeyResponse{
		ID:          k.ID,
		UserID:      k.UserID,
		Type:        k.Type,
		TypeName:    k.Type.String(),
		State:       k.State(now),
		CreateTime:  k.CreateTime,
		ConsumeTime: k.ConsumeTime,
		ExpireTime:  k.ExpireTime,
	}
	if includeKey {
		resp.Key = k.Key
	}
	return resp
}
