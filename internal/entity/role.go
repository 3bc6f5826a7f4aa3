package entity

import (
	"fmt"
	"strings"
	"time"
)

const (
	// RoleAdmin is the seeded administrator role id.
	RoleAdmin uint = 1
	// RoleUser is the seeded default role id for new accounts.
	RoleUser uint = 2
)

// Permission names a boolean can_<permission> flag on Role.
type Permission string

const (
	PermissionAdmin Permission = "admin"
)

// Permissions lists every flag a role carries.
var Permissions = []Permission{PermissionAdmin}

// ParsePermission converts untrusted input into a known permission.
func ParsePermission(value string) (Permission, error) {
	normalised := Permission(strings.ToLower(strings.TrimSpace(value)))
	for _, p := range Permissions {
		if p == normalised {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown permission %q", value)
}

// Role is an access tier. Users reference it through role_id.
type Role struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	Name       string     `gorm:"column:name;type:varchar(255);not null" json:"name" validate:"required,max=255"`
	CreateTime *time.Time `gorm:"column:create_time" json:"create_time"`
	UpdateTime *time.Time `gorm:"column:update_time" json:"update_time"`
	CanAdmin   *int       `gorm:"column:can_admin" json:"can_admin"`

	Users []User `gorm:"foreignKey:RoleID" json:"-"`
}

// CheckPermission reports whether the flag behind p is set.
func (r *Role) CheckPermission(p Permission) bool {
	if r == nil {
		return false
	}
	switch p {
	case PermissionAdmin:
		return flagSet(r.CanAdmin)
	default:
		return false
	}
}

// PermissionMap returns every known permission and whether the role holds it.
func (r *Role) PermissionMap() map[Permission]bool {
	out := make(map[Permission]bool, len(Permissions))
	for _, p := range Permissions {
		out[p] = r.CheckPermission(p)
	}
	return out
}

// Validate checks the user-editable fields before a write.
func (r *Role) Validate() error {
	return validateStruct(r)
}

func flagSet(v *int) bool {
	return v != nil && *v != 0
}

// Flag returns a pointer suitable for a can_* column.
func Flag(enabled bool) *int {
	v := 0
	if enabled {
		v = 1
	}
	return &v
}

// RoleDropdown maps role id to role name for selection lists.
type RoleDropdown map[uint]string

// Clone returns an independent copy.
func (d RoleDropdown) Clone() RoleDropdown {
	out := make(RoleDropdown, len(d))
	for id, name := range d {
		out[id] = name
	}
	return out
}
