package model

import (
	"context"
	"errors"
	"fmt"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/config"
	"gatekeeper/internal/entity"
	"strings"

	"gorm.io/gorm"
)

type roleSeed struct {
	ID       uint
	Name     string
	CanAdmin bool
}

var defaultRoles = []roleSeed{
	{ID: entity.RoleAdmin, Name: "Admin", CanAdmin: true},
	{ID: entity.RoleUser, Name: "User", CanAdmin: false},
}

// SeedDefaultRoles creates the Admin and User roles on an empty role table so
// that they receive ids 1 and 2. Existing roles are left alone.
func SeedDefaultRoles(ctx context.Context, repo Repository) error {
	if repo == nil {
		return nil
	}
	existing, err := repo.ListRoles(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, seed := range defaultRoles {
		role := &entity.Role{Name: seed.Name, CanAdmin: entity.Flag(seed.CanAdmin)}
		if err := repo.CreateRole(ctx, role); err != nil {
			return err
		}
		if role.ID != seed.ID {
			return fmt.Errorf("seeded role %q got id %d, expected %d", seed.Name, role.ID, seed.ID)
		}
	}
	return nil
}

// SeedDefaultAdmin creates an active admin account from config when both
// credentials are set and the email is not registered yet.
func SeedDefaultAdmin(ctx context.Context, repo Repository, cfg config.Config) error {
	if repo == nil {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	password := strings.TrimSpace(cfg.AdminPassword)
	if email == "" || password == "" {
		return nil
	}

	_, err := repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return repo.CreateUser(ctx, &entity.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  "Administrator",
		RoleID:       entity.RoleAdmin,
		Status:       entity.UserStatusActive,
	})
}
