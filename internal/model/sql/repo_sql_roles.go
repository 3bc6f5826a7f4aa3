package sql

import (
	"context"
	"fmt"
	"gatekeeper/internal/entity"
	"strings"

	"gorm.io/gorm"
)

// CreateRole validates and inserts a role, stamping create_time.
func (r *GormRepository) CreateRole(ctx context.Context, role *entity.Role) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if role == nil {
		return fmt.Errorf("role is nil")
	}
	role.Name = strings.TrimSpace(role.Name)
	if err := role.Validate(); err != nil {
		return err
	}
	now := r.Now()
	role.CreateTime = &now
	role.UpdateTime = nil
	return r.db.WithContext(ctx).Omit("Users").Create(role).Error
}

// UpdateRole applies updates to an existing role, validates the result and
// stamps update_time. The updated role is returned.
func (r *GormRepository) UpdateRole(ctx context.Context, id uint, updates entity.RoleUpdates) (*entity.Role, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid role id")
	}

	var role entity.Role
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&role, id).Error; err != nil {
			return err
		}
		updates.Apply(&role)
		if err := role.Validate(); err != nil {
			return err
		}

		now := r.Now()
		values := updates.ToMap()
		values["update_time"] = now
		if err := tx.Model(&entity.Role{}).Where("id = ?", id).Updates(values).Error; err != nil {
			return err
		}
		role.UpdateTime = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// GetRole loads a role by ID.
func (r *GormRepository) GetRole(ctx context.Context, id uint) (*entity.Role, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid role id")
	}
	var role entity.Role
	if err := r.db.WithContext(ctx).First(&role, id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles returns every role ordered by id.
func (r *GormRepository) ListRoles(ctx context.Context) ([]entity.Role, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	var roles []entity.Role
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}
