package access

import (
	"errors"
	"testing"

	"github.com/geocoder89/tripdesk/internal/domain/role"
	"github.com/geocoder89/tripdesk/internal/domain/user"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()

	routes, err := NewRouteTable(DefaultSections())
	if err != nil {
		t.Fatalf("NewRouteTable: %v", err)
	}

	return NewController(routes)
}

func TestAuthorize_Table(t *testing.T) {
	c := newTestController(t)
	r := NewResolver(DefaultAdminRole)

	tests := []struct {
		name       string
		user       *user.User
		path       string
		want       Outcome
		wantReason error
		redirectTo string
		notify     bool
	}{
		{
			name:       "manager opens pm section",
			user:       &user.User{ID: "m", Role: role.BaseManager},
			path:       "/pm",
			want:       Deny,
			wantReason: ErrForbidden,
			redirectTo: "/manager",
			notify:     true,
		},
		{
			name: "admin as operations_ksa opens operations",
			user: &user.User{ID: "a", Role: role.BaseAdmin, ActiveRole: rolePtr(role.OperationsKSA)},
			path: "/operations/bookings",
			want: Allow,
		},
		{
			name: "admin as operations_ksa opens admin",
			user: &user.User{ID: "a", Role: role.BaseAdmin, ActiveRole: rolePtr(role.OperationsKSA)},
			path: "/admin/users",
			want: Allow,
		},
		{
			name:       "anonymous opens manager",
			user:       nil,
			path:       "/manager",
			want:       Deny,
			wantReason: ErrUnauthenticated,
			redirectTo: "/login",
		},
		{
			name:       "anonymous opens admin",
			path:       "/admin",
			want:       Deny,
			wantReason: ErrUnauthenticated,
			redirectTo: "/login",
		},
		{
			name:       "operations_uae opens pm approvals",
			user:       &user.User{ID: "o", Role: role.BaseOperationsUAE},
			path:       "/pm/approvals/42",
			want:       Deny,
			wantReason: ErrForbidden,
			redirectTo: "/operations",
			notify:     true,
		},
		{
			name:       "pm opens admin",
			user:       &user.User{ID: "p", Role: role.BaseProjectManager},
			path:       "/admin",
			want:       Deny,
			wantReason: ErrForbidden,
			redirectTo: "/pm",
			notify:     true,
		},
		{
			name: "anonymous opens login",
			path: "/login",
			want: Allow,
		},
		{
			name:       "authenticated opens root",
			user:       &user.User{ID: "p", Role: role.BaseProjectManager},
			path:       "/",
			want:       Redirect,
			redirectTo: "/pm",
		},
		{
			name:       "authenticated admin opens login",
			user:       &user.User{ID: "a", Role: role.BaseAdmin},
			path:       "/login",
			want:       Redirect,
			redirectTo: "/manager",
		},
		{
			name:       "unknown path fails closed",
			user:       &user.User{ID: "m", Role: role.BaseManager},
			path:       "/reports",
			want:       Deny,
			wantReason: ErrForbidden,
			redirectTo: "/manager",
			notify:     true,
		},
		{
			name:       "prefix without segment boundary does not match",
			user:       &user.User{ID: "p", Role: role.BaseProjectManager},
			path:       "/pmx",
			want:       Deny,
			wantReason: ErrForbidden,
			redirectTo: "/pm",
			notify:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Authorize(r.Subject(tt.user), tt.path)

			if d.Outcome != tt.want {
				t.Fatalf("outcome = %s, want %s (%+v)", d.Outcome, tt.want, d)
			}

			if tt.wantReason != nil && !errors.Is(d.Reason, tt.wantReason) {
				t.Fatalf("reason = %v, want %v", d.Reason, tt.wantReason)
			}

			if d.RedirectTo != tt.redirectTo {
				t.Fatalf("redirectTo = %q, want %q", d.RedirectTo, tt.redirectTo)
			}

			if d.Notify != tt.notify {
				t.Fatalf("notify = %v, want %v", d.Notify, tt.notify)
			}
		})
	}
}

func TestAuthorize_FailClosed(t *testing.T) {
	c := newTestController(t)

	for _, sec := range c.Routes().Sections() {
		if sec.Public {
			continue
		}

		for _, r := range role.All() {
			if sec.allows(r) {
				continue
			}

			d := c.Authorize(Subject{Role: r}, sec.Path)
			if d.Allowed() {
				t.Errorf("role %s got Allow on %s without being allow-listed", r, sec.Path)
			}
		}
	}
}

func TestAuthorize_AdminOverride(t *testing.T) {
	c := newTestController(t)

	for _, sec := range c.Routes().Sections() {
		if !sec.AdminOnly {
			continue
		}

		for _, r := range role.All() {
			d := c.Authorize(Subject{Role: r, AdminBase: true}, sec.Path)
			if !d.Allowed() {
				t.Errorf("admin as %s denied on admin-only %s: %+v", r, sec.Path, d)
			}
		}
	}
}

func TestAuthorize_AdminImpersonationStillLimited(t *testing.T) {
	c := newTestController(t)

	// the override covers admin-only sections, not other roles' sections
	d := c.Authorize(Subject{Role: role.Manager, AdminBase: true}, "/pm")
	if d.Allowed() {
		t.Fatalf("admin acting as manager should not open /pm")
	}

	if d.RedirectTo != "/manager" {
		t.Fatalf("redirectTo = %q, want /manager", d.RedirectTo)
	}
}

func TestVisible(t *testing.T) {
	c := newTestController(t)

	got := c.Visible(Subject{Role: role.ProjectManager})

	paths := map[string]bool{}
	for _, s := range got {
		paths[s.Path] = true
	}

	if !paths["/pm"] || !paths["/pm/approvals"] {
		t.Fatalf("pm sections missing: %v", paths)
	}

	if paths["/manager"] || paths["/admin"] || paths["/login"] {
		t.Fatalf("unexpected sections visible to pm: %v", paths)
	}

	if len(c.Visible(Subject{})) != 0 {
		t.Fatalf("anonymous subject should see no protected sections")
	}
}

func TestOutcomeZeroValueDenies(t *testing.T) {
	var d Decision
	if d.Allowed() {
		t.Fatalf("zero Decision must not allow")
	}
}
