package entity

import "strings"

// RoleUpdates 角色更新字段
type RoleUpdates struct {
	Name     *string
	CanAdmin *int
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u RoleUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Name != nil {
		updates["name"] = strings.TrimSpace(*u.Name)
	}
	if u.CanAdmin != nil {
		updates["can_admin"] = *u.CanAdmin
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u RoleUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// Apply copies the set fields onto r.
func (u RoleUpdates) Apply(r *Role) {
	if u.Name != nil {
		r.Name = strings.TrimSpace(*u.Name)
	}
	if u.CanAdmin != nil {
		v := *u.CanAdmin
		r.CanAdmin = &v
	}
}

// UserUpdates 用户更新字段
type UserUpdates struct {
	Email        *string
	NewEmail     **string
	PasswordHash *string
	DisplayName  *string
	RoleID       *uint
	Status       *UserStatus
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Email != nil {
		updates["email"] = *u.Email
	}
	if u.NewEmail != nil {
		if *u.NewEmail == nil {
			updates["new_email"] = nil
		} else {
			updates["new_email"] = **u.NewEmail
		}
	}
	if u.PasswordHash != nil {
		updates["password_hash"] = *u.PasswordHash
	}
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.RoleID != nil {
		updates["role_id"] = *u.RoleID
	}
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
