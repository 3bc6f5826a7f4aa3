package service

import (
	"context"
	"fmt"
	"gatekeeper/internal/entity"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// RoleStore is the persistence the role service needs.
type RoleStore interface {
	CreateRole(ctx context.Context, role *entity.Role) error
	UpdateRole(ctx context.Context, id uint, updates entity.RoleUpdates) (*entity.Role, error)
	GetRole(ctx context.Context, id uint) (*entity.Role, error)
	ListRoles(ctx context.Context) ([]entity.Role, error)
}

// UserLister resolves the users that belong to a role.
type UserLister interface {
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.User, *entity.Meta, error)
}

// DropdownCache holds the role dropdown until it is invalidated. Every
// invalidation bumps a generation so a load started before it cannot be
// stored after it.
type DropdownCache struct {
	mu         sync.RWMutex
	data       entity.RoleDropdown
	loaded     bool
	generation uint64
}

// NewDropdownCache returns an empty cache.
func NewDropdownCache() *DropdownCache {
	return &DropdownCache{}
}

// Get returns a copy of the cached dropdown, if any, together with the
// current generation.
func (c *DropdownCache) Get() (entity.RoleDropdown, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return nil, c.generation, false
	}
	return c.data.Clone(), c.generation, true
}

// SetIfCurrent stores d only when no invalidation happened since gen was
// read. It reports whether d was stored.
func (c *DropdownCache) SetIfCurrent(gen uint64, d entity.RoleDropdown) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.data = d.Clone()
	c.loaded = true
	return true
}

// Invalidate drops the cached dropdown; the next read reloads it.
func (c *DropdownCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	c.loaded = false
	c.generation++
}

// RoleService manages roles, permission checks and the role dropdown.
type RoleService struct {
	roles RoleStore
	users UserLister
	cache *DropdownCache
}

// NewRoleService builds a RoleService. A nil cache disables dropdown
// memoisation.
func NewRoleService(roles RoleStore, users UserLister, cache *DropdownCache) *RoleService {
	return &RoleService{roles: roles, users: users, cache: cache}
}

// Create validates and stores a new role.
func (s *RoleService) Create(ctx context.Context, name string, canAdmin *int) (*entity.Role, error) {
	role := &entity.Role{Name: strings.TrimSpace(name), CanAdmin: canAdmin}
	if err := role.Validate(); err != nil {
		return nil, err
	}
	if err := s.roles.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	s.InvalidateDropdown()
	logrus.WithFields(logrus.Fields{"role_id": role.ID, "name": role.Name}).Info("role created")
	return role, nil
}

// Update applies partial changes to a role.
func (s *RoleService) Update(ctx context.Context, id uint, updates entity.RoleUpdates) (*entity.Role, error) {
	role, err := s.roles.UpdateRole(ctx, id, updates)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	s.InvalidateDropdown()
	logrus.WithField("role_id", role.ID).Info("role updated")
	return role, nil
}

// Get loads one role.
func (s *RoleService) Get(ctx context.Context, id uint) (*entity.Role, error) {
	role, err := s.roles.GetRole(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return role, nil
}

// List returns all roles.
func (s *RoleService) List(ctx context.Context) ([]entity.Role, error) {
	return s.roles.ListRoles(ctx)
}

// Dropdown returns every role as id => name, served from the cache when one
// is configured.
func (s *RoleService) Dropdown(ctx context.Context) (entity.RoleDropdown, error) {
	var gen uint64
	if s.cache != nil {
		cached, current, ok := s.cache.Get()
		if ok {
			return cached, nil
		}
		gen = current
	}

	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	dropdown := make(entity.RoleDropdown, len(roles))
	for _, role := range roles {
		dropdown[role.ID] = role.Name
	}

	if s.cache != nil && !s.cache.SetIfCurrent(gen, dropdown) {
		logrus.Debug("role dropdown changed while loading, not cached")
	}
	return dropdown, nil
}

// InvalidateDropdown forces the next Dropdown call to hit storage.
func (s *RoleService) InvalidateDropdown() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

// CheckPermission loads a role and checks one of its flags.
func (s *RoleService) CheckPermission(ctx context.Context, roleID uint, p entity.Permission) (bool, error) {
	role, err := s.Get(ctx, roleID)
	if err != nil {
		return false, err
	}
	return role.CheckPermission(p), nil
}

// Users lists the users assigned to a role.
func (s *RoleService) Users(ctx context.Context, roleID uint, query entity.UserQuery) ([]entity.User, *entity.Meta, error) {
	if _, err := s.Get(ctx, roleID); err != nil {
		return nil, nil, err
	}
	query.RoleID = roleID
	return s.users.ListUsers(ctx, &query)
}
