package role

import (
	"errors"
	"strings"
)

var ErrInvalidRole = errors.New("invalid role")

// Base is the role an account is created with. It never changes after creation.
type Base string

const (
	BaseManager        Base = "manager"
	BaseProjectManager Base = "pm"
	BaseOperationsKSA  Base = "operations_ksa"
	BaseOperationsUAE  Base = "operations_uae"
	BaseAdmin          Base = "admin"
)

// Role is an effective role: the one that governs what a session may see.
// Admin is deliberately not a Role.
type Role string

const (
	Manager        Role = "manager"
	ProjectManager Role = "pm"
	OperationsKSA  Role = "operations_ksa"
	OperationsUAE  Role = "operations_uae"
)

// All returns the effective roles in a stable order.
func All() []Role {
	return []Role{Manager, ProjectManager, OperationsKSA, OperationsUAE}
}

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.TrimSpace(s)); r {
	case Manager, ProjectManager, OperationsKSA, OperationsUAE:
		return r, nil
	}

	return "", ErrInvalidRole
}

func ParseBase(s string) (Base, error) {
	switch b := Base(strings.TrimSpace(s)); b {
	case BaseManager, BaseProjectManager, BaseOperationsKSA, BaseOperationsUAE, BaseAdmin:
		return b, nil
	}

	return "", ErrInvalidRole
}

func (b Base) IsAdmin() bool {
	return b == BaseAdmin
}

func (b Base) Valid() bool {
	_, err := ParseBase(string(b))
	return err == nil
}

// Role maps a non-admin base role onto the effective role of the same name.
func (b Base) Role() (Role, bool) {
	if b.IsAdmin() {
		return "", false
	}

	r, err := ParseRole(string(b))
	if err != nil {
		return "", false
	}

	return r, true
}

func (b Base) String() string {
	return string(b)
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Home is the landing section for the role. The zero value lands on "/".
func (r Role) Home() string {
	switch r {
	case Manager:
		return "/manager"
	case ProjectManager:
		return "/pm"
	case OperationsKSA, OperationsUAE:
		return "/operations"
	default:
		return "/"
	}
}

// Region is the operations region the role serves, empty for non-operations roles.
func (r Role) Region() string {
	switch r {
	case OperationsKSA:
		return "ksa"
	case OperationsUAE:
		return "uae"
	default:
		return ""
	}
}

func (r Role) String() string {
	return string(r)
}

// Names renders roles for validation messages, e.g. "manager pm operations_ksa operations_uae".
func Names(roles []Role) string {
	parts := make([]string, 0, len(roles))

	for _, r := range roles {
		parts = append(parts, string(r))
	}

	return strings.Join(parts, " ")
}
