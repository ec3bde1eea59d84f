package access

type Outcome int

const (
	Deny Outcome = iota // zero value denies
	Allow
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "deny"
	}
}

// Decision is the answer for one navigation. Only Allow lets a request through;
// Deny carries a redirect target and whether the user should see an "access denied"
// notification.
type Decision struct {
	Outcome    Outcome
	Section    string
	Reason     error
	RedirectTo string
	Notify     bool
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

type Controller struct {
	routes *RouteTable
}

func NewController(routes *RouteTable) *Controller {
	return &Controller{routes: routes}
}

func (c *Controller) Routes() *RouteTable {
	return c.routes
}

// Authorize decides what subj gets when opening path. It is cheap and holds no
// state, so callers run it on every navigation with a freshly resolved subject.
func (c *Controller) Authorize(subj Subject, path string) Decision {
	sec, ok := c.routes.Lookup(path)

	if !ok {
		if !subj.Authenticated() {
			return denyAnonymous("")
		}
		return denyForbidden(subj, "")
	}

	if sec.Public {
		if subj.Authenticated() && (sec.Path == "/" || sec.Path == LoginPath) {
			return Decision{Outcome: Redirect, Section: sec.Name, RedirectTo: subj.Role.Home()}
		}
		return Decision{Outcome: Allow, Section: sec.Name}
	}

	if !subj.Authenticated() {
		return denyAnonymous(sec.Name)
	}

	// admins open AdminOnly sections whatever role they are previewing; anyone
	// else still needs the section's allow-list
	if sec.AdminOnly && subj.AdminBase {
		return Decision{Outcome: Allow, Section: sec.Name}
	}

	if sec.allows(subj.Role) {
		return Decision{Outcome: Allow, Section: sec.Name}
	}

	return denyForbidden(subj, sec.Name)
}

// Visible lists the non-public sections subj may open.
func (c *Controller) Visible(subj Subject) []Section {
	var out []Section

	for _, s := range c.routes.Sections() {
		if s.Public {
			continue
		}

		if c.Authorize(subj, s.Path).Allowed() {
			out = append(out, s)
		}
	}

	return out
}

func denyAnonymous(section string) Decision {
	return Decision{
		Outcome:    Deny,
		Section:    section,
		Reason:     ErrUnauthenticated,
		RedirectTo: LoginPath,
	}
}

func denyForbidden(subj Subject, section string) Decision {
	return Decision{
		Outcome:    Deny,
		Section:    section,
		Reason:     ErrForbidden,
		RedirectTo: subj.Role.Home(),
		Notify:     true,
	}
}
