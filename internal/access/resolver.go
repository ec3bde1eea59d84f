package access

import (
	"github.com/geocoder89/tripdesk/internal/domain/role"
	"github.com/geocoder89/tripdesk/internal/domain/user"
)

// DefaultAdminRole is what an admin sees before their first role switch.
const DefaultAdminRole = role.Manager

type Resolver struct {
	AdminDefault role.Role
}

func NewResolver(adminDefault role.Role) Resolver {
	if !adminDefault.Valid() {
		adminDefault = DefaultAdminRole
	}

	return Resolver{AdminDefault: adminDefault}
}

// Resolve returns the effective role for u. The bool is false only when there is no user.
func (r Resolver) Resolve(u *user.User) (role.Role, bool) {
	if u == nil {
		return "", false
	}

	if u.Role.IsAdmin() {
		if u.ActiveRole != nil && u.ActiveRole.Valid() {
			return *u.ActiveRole, true
		}

		if r.AdminDefault.Valid() {
			return r.AdminDefault, true
		}

		return DefaultAdminRole, true
	}

	eff, ok := u.Role.Role()
	if !ok {
		// a base role outside the enum is treated as no identity at all
		return "", false
	}

	return eff, true
}

// Subject is what the controller needs to know about the caller.
// The zero value is an anonymous caller.
type Subject struct {
	Role      role.Role
	AdminBase bool
}

func (s Subject) Authenticated() bool {
	return s.Role != ""
}

func (r Resolver) Subject(u *user.User) Subject {
	eff, ok := r.Resolve(u)
	if !ok {
		return Subject{}
	}

	return Subject{Role: eff, AdminBase: u.Role.IsAdmin()}
}
