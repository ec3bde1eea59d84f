package db

import (
	"context"
	"errors"

	"github.com/geocoder89/tripdesk/internal/config"
	"github.com/geocoder89/tripdesk/internal/domain/role"
	"github.com/geocoder89/tripdesk/internal/domain/user"
	"github.com/geocoder89/tripdesk/internal/security"
)

type AdminSeeder interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, email, passwordHash, name string, base role.Base) (user.User, error)
}

// EnsureAdminUser creates the bootstrap admin account when it does not exist yet.
// notFound is the repository's not-found sentinel.
func EnsureAdminUser(ctx context.Context, users AdminSeeder, notFound error, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	_, err := users.GetByEmail(ctx, cfg.AdminEmail)

	if err == nil {
		return nil
	}

	if !errors.Is(err, notFound) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	_, err = users.Create(ctx, cfg.AdminEmail, hash, cfg.AdminName, role.BaseAdmin)

	return err
}
