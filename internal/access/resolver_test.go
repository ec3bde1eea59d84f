package access

import (
	"testing"

	"github.com/geocoder89/tripdesk/internal/domain/role"
	"github.com/geocoder89/tripdesk/internal/domain/user"
)

func rolePtr(r role.Role) *role.Role {
	return &r
}

func TestResolve_NoUser(t *testing.T) {
	r := NewResolver(DefaultAdminRole)

	got, ok := r.Resolve(nil)
	if ok || got != "" {
		t.Fatalf("Resolve(nil) = %q, %v; want empty, false", got, ok)
	}
}

func TestResolve_NonAdminIgnoresActiveRole(t *testing.T) {
	r := NewResolver(DefaultAdminRole)

	bases := []role.Base{role.BaseManager, role.BaseProjectManager, role.BaseOperationsKSA, role.BaseOperationsUAE}
	actives := []*role.Role{nil, rolePtr(role.Manager), rolePtr(role.ProjectManager), rolePtr(role.OperationsKSA), rolePtr(role.OperationsUAE)}

	for _, b := range bases {
		for _, a := range actives {
			u := &user.User{ID: "u1", Role: b, ActiveRole: a}

			got, ok := r.Resolve(u)
			if !ok {
				t.Fatalf("Resolve(%s) not ok", b)
			}

			if string(got) != string(b) {
				t.Errorf("Resolve(role=%s, active=%v) = %q, want %q", b, a, got, b)
			}
		}
	}
}

func TestResolve_AdminUsesActiveRole(t *testing.T) {
	r := NewResolver(DefaultAdminRole)

	for _, want := range role.All() {
		u := &user.User{ID: "a1", Role: role.BaseAdmin, ActiveRole: rolePtr(want)}

		got, ok := r.Resolve(u)
		if !ok || got != want {
			t.Errorf("Resolve(admin, active=%s) = %q, %v", want, got, ok)
		}
	}
}

func TestResolve_AdminDefault(t *testing.T) {
	tests := []struct {
		name     string
		resolver Resolver
		want     role.Role
	}{
		{name: "documented default", resolver: NewResolver(DefaultAdminRole), want: role.Manager},
		{name: "configured pm", resolver: NewResolver(role.ProjectManager), want: role.ProjectManager},
		{name: "invalid config falls back", resolver: NewResolver("admin"), want: DefaultAdminRole},
		{name: "zero resolver", resolver: Resolver{}, want: DefaultAdminRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &user.User{ID: "a1", Role: role.BaseAdmin}

			for i := 0; i < 3; i++ {
				got, ok := tt.resolver.Resolve(u)
				if !ok || got != tt.want {
					t.Fatalf("call %d: Resolve = %q, %v; want %q", i, got, ok, tt.want)
				}
			}
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r := NewResolver(DefaultAdminRole)
	u := &user.User{ID: "a1", Role: role.BaseAdmin, ActiveRole: rolePtr(role.OperationsUAE)}

	first, _ := r.Resolve(u)
	second, _ := r.Resolve(u)

	if first != second {
		t.Fatalf("Resolve not idempotent: %q then %q", first, second)
	}

	if u.ActiveRole == nil || *u.ActiveRole != role.OperationsUAE {
		t.Fatalf("Resolve mutated the user")
	}
}

func TestSubject(t *testing.T) {
	r := NewResolver(DefaultAdminRole)

	if s := r.Subject(nil); s.Authenticated() {
		t.Fatalf("nil user must be anonymous, got %+v", s)
	}

	s := r.Subject(&user.User{ID: "a1", Role: role.BaseAdmin, ActiveRole: rolePtr(role.OperationsKSA)})
	if !s.AdminBase || s.Role != role.OperationsKSA {
		t.Fatalf("unexpected admin subject %+v", s)
	}

	s = r.Subject(&user.User{ID: "u1", Role: "superuser"})
	if s.Authenticated() {
		t.Fatalf("unknown base role must resolve to anonymous, got %+v", s)
	}
}
