package access

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/geocoder89/tripdesk/internal/domain/role"
	"gopkg.in/yaml.v3"
)

const LoginPath = "/login"

type Section struct {
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	Allowed   []role.Role `json:"allowed,omitempty"`
	AdminOnly bool        `json:"adminOnly,omitempty"`
	Public    bool        `json:"public,omitempty"`
}

func (s Section) allows(r role.Role) bool {
	for _, a := range s.Allowed {
		if a == r {
			return true
		}
	}
	return false
}

// RouteTable maps route paths to sections. Lookups match the longest path prefix
// on segment boundaries.
type RouteTable struct {
	sections map[string]Section
	ordered  []string // longest path first
}

func NewRouteTable(sections []Section) (*RouteTable, error) {
	t := &RouteTable{sections: make(map[string]Section, len(sections))}

	for _, s := range sections {
		p := cleanPath(s.Path)

		if _, dup := t.sections[p]; dup {
			return nil, fmt.Errorf("duplicate section path %q", p)
		}

		if !s.Public && !s.AdminOnly && len(s.Allowed) == 0 {
			return nil, fmt.Errorf("section %q has an empty allow-list", p)
		}

		for _, r := range s.Allowed {
			if !r.Valid() {
				return nil, fmt.Errorf("section %q: %w: %q", p, role.ErrInvalidRole, r)
			}
		}

		s.Path = p
		if s.Name == "" {
			s.Name = strings.TrimPrefix(p, "/")
		}

		t.sections[p] = s
		t.ordered = append(t.ordered, p)
	}

	sort.SliceStable(t.ordered, func(i, j int) bool {
		return len(t.ordered[i]) > len(t.ordered[j])
	})

	return t, nil
}

// Lookup finds the section that governs p.
func (t *RouteTable) Lookup(p string) (Section, bool) {
	p = cleanPath(p)

	for _, candidate := range t.ordered {
		if candidate == "/" {
			// root only governs itself, never as a prefix
			if p == "/" {
				return t.sections[candidate], true
			}
			continue
		}

		if p == candidate || strings.HasPrefix(p, candidate+"/") {
			return t.sections[candidate], true
		}
	}

	return Section{}, false
}

func (t *RouteTable) Sections() []Section {
	out := make([]Section, 0, len(t.sections))

	for _, s := range t.sections {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)

	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return path.Clean(p)
}

var operations = []role.Role{role.OperationsKSA, role.OperationsUAE}

// DefaultSections is the route table of the travel desk front end.
func DefaultSections() []Section {
	return []Section{
		{Name: "login", Path: LoginPath, Public: true},
		{Name: "root", Path: "/", Public: true},
		{Name: "manager", Path: "/manager", Allowed: []role.Role{role.Manager}},
		{Name: "manager-requests", Path: "/manager/requests", Allowed: []role.Role{role.Manager}},
		{Name: "pm", Path: "/pm", Allowed: []role.Role{role.ProjectManager}},
		{Name: "pm-approvals", Path: "/pm/approvals", Allowed: []role.Role{role.ProjectManager}},
		{Name: "operations", Path: "/operations", Allowed: operations},
		{Name: "operations-bookings", Path: "/operations/bookings", Allowed: operations},
		{Name: "operations-budgets", Path: "/operations/budgets", Allowed: operations},
		{Name: "admin", Path: "/admin", AdminOnly: true},
		{Name: "admin-users", Path: "/admin/users", AdminOnly: true},
		{Name: "admin-role-switches", Path: "/admin/role-switches", AdminOnly: true},
	}
}

type routesFile struct {
	Sections []struct {
		Name      string   `yaml:"name"`
		Path      string   `yaml:"path"`
		Roles     []string `yaml:"roles"`
		AdminOnly bool     `yaml:"adminOnly"`
		Public    bool     `yaml:"public"`
	} `yaml:"sections"`
}

// ParseRoutes reads a YAML route table.
func ParseRoutes(data []byte) ([]Section, error) {
	var f routesFile

	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}

	if len(f.Sections) == 0 {
		return nil, fmt.Errorf("parse routes: no sections defined")
	}

	out := make([]Section, 0, len(f.Sections))

	for _, s := range f.Sections {
		allowed := make([]role.Role, 0, len(s.Roles))

		for _, name := range s.Roles {
			r, err := role.ParseRole(name)
			if err != nil {
				return nil, fmt.Errorf("section %q: %w: %q", s.Path, err, name)
			}
			allowed = append(allowed, r)
		}

		out = append(out, Section{
			Name:      s.Name,
			Path:      s.Path,
			Allowed:   allowed,
			AdminOnly: s.AdminOnly,
			Public:    s.Public,
		})
	}

	return out, nil
}

// LoadRouteTable builds the table from file, or the built-in table when file is empty.
func LoadRouteTable(file string) (*RouteTable, error) {
	if file == "" {
		return NewRouteTable(DefaultSections())
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}

	sections, err := ParseRoutes(data)
	if err != nil {
		return nil, err
	}

	return NewRouteTable(sections)
}
