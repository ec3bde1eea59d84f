package user

import (
	"errors"
	"time"

	"github.com/geocoder89/tripdesk/internal/domain/role"
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // never expose hash in JSON
	Name         string     `json:"name"`
	Role         role.Base  `json:"role"`
	ActiveRole   *role.Role `json:"activeRole"` // only ever set for admins
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (u User) IsAdmin() bool {
	return u.Role.IsAdmin()
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// RoleSwitch is one audited change of an admin's active role.
type RoleSwitch struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	FromRole  *role.Role `json:"fromRole"`
	ToRole    role.Role  `json:"toRole"`
	CreatedAt time.Time  `json:"createdAt"`
}

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already used")
	ErrNotAdmin   = errors.New("user is not an admin")
)
