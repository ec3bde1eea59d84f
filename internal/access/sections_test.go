package access

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/geocoder89/tripdesk/internal/domain/role"
)

func TestRouteTableLookup(t *testing.T) {
	routes, err := NewRouteTable(DefaultSections())
	if err != nil {
		t.Fatalf("NewRouteTable: %v", err)
	}

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{path: "/operations/bookings/7", want: "/operations/bookings", ok: true},
		{path: "/operations", want: "/operations", ok: true},
		{path: "/operations/", want: "/operations", ok: true},
		{path: "operations/budgets", want: "/operations/budgets", ok: true},
		{path: "/manager?tab=drafts", want: "/manager", ok: true},
		{path: "/admin/../pm", want: "/pm", ok: true},
		{path: "/", want: "/", ok: true},
		{path: "/nowhere", ok: false},
	}

	for _, tt := range tests {
		sec, ok := routes.Lookup(tt.path)

		if ok != tt.ok {
			t.Errorf("Lookup(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			continue
		}

		if ok && sec.Path != tt.want {
			t.Errorf("Lookup(%q) = %q, want %q", tt.path, sec.Path, tt.want)
		}
	}
}

func TestNewRouteTableRejectsBadSections(t *testing.T) {
	_, err := NewRouteTable([]Section{{Path: "/a", Allowed: []role.Role{role.Manager}}, {Path: "/a/", Allowed: []role.Role{role.Manager}}})
	if err == nil {
		t.Fatalf("expected duplicate path error")
	}

	_, err = NewRouteTable([]Section{{Path: "/empty"}})
	if err == nil {
		t.Fatalf("expected empty allow-list error")
	}

	_, err = NewRouteTable([]Section{{Path: "/x", Allowed: []role.Role{"admin"}}})
	if !errors.Is(err, role.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestParseRoutes(t *testing.T) {
	data := []byte(`
sections:
  - name: login
    path: /login
    public: true
  - name: ops
    path: /operations
    roles: [operations_ksa, operations_uae]
  - name: admin
    path: /admin
    adminOnly: true
`)

	sections, err := ParseRoutes(data)
	if err != nil {
		t.Fatalf("ParseRoutes: %v", err)
	}

	if len(sections) != 3 {
		t.Fatalf("got %d sections, want 3", len(sections))
	}

	if len(sections[1].Allowed) != 2 || sections[1].Allowed[1] != role.OperationsUAE {
		t.Fatalf("unexpected allow-list %v", sections[1].Allowed)
	}

	if _, err := ParseRoutes([]byte("sections:\n  - path: /x\n    roles: [admin]\n")); !errors.Is(err, role.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for admin in roles, got %v", err)
	}

	if _, err := ParseRoutes([]byte("sections: []\n")); err == nil {
		t.Fatalf("expected error for empty table")
	}
}

func TestLoadRouteTableFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "routes.yaml")

	content := "sections:\n  - path: /pm\n    roles: [pm]\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	routes, err := LoadRouteTable(file)
	if err != nil {
		t.Fatalf("LoadRouteTable: %v", err)
	}

	if _, ok := routes.Lookup("/pm/approvals"); !ok {
		t.Fatalf("expected /pm to govern /pm/approvals")
	}

	if _, err := LoadRouteTable(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestAdminOnlySectionKeepsAllowList(t *testing.T) {
	sections, err := ParseRoutes([]byte("sections:\n  - name: reports\n    path: /reports\n    adminOnly: true\n    roles: [pm]\n"))
	if err != nil {
		t.Fatalf("ParseRoutes: %v", err)
	}

	routes, err := NewRouteTable(sections)
	if err != nil {
		t.Fatalf("NewRouteTable: %v", err)
	}
	c := NewController(routes)

	tests := []struct {
		name string
		subj Subject
		want bool
	}{
		{"listed role", Subject{Role: role.ProjectManager}, true},
		{"unlisted role", Subject{Role: role.Manager}, false},
		{"admin previewing unlisted role", Subject{Role: role.Manager, AdminBase: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Authorize(tt.subj, "/reports")
			if d.Allowed() != tt.want {
				t.Fatalf("Authorize = %v (%v), want allowed=%v", d.Outcome, d.Reason, tt.want)
			}
		})
	}
}
