// Package navigation decides whether the current session may open a page.
//
// Guard is a pure function evaluated on every navigation; nothing is cached.
// Table holds the page registrations, one per path.
package navigation

import "github.com/ishworii/jobboard/internal/domain"

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Requirement is a page's access requirement.
type Requirement struct {
	authenticated bool
	role          domain.Role
}

var (
	// None lets anyone open the page.
	None = Requirement{}
	// Authenticated requires a session of any role.
	Authenticated = Requirement{authenticated: true}
)

// RequireRole requires a session with role r.
func RequireRole(r domain.Role) Requirement {
	return Requirement{authenticated: true, role: r}
}

// Role returns the required role, or "" when any session (or none) will do.
func (r Requirement) Role() domain.Role { return r.role }

func (r Requirement) String() string {
	switch {
	case !r.authenticated:
		return "none"
	case r.role == "":
		return "authenticated"
	default:
		return "role:" + string(r.role)
	}
}

// Decision is the guard's verdict: allow, or redirect to RedirectTo.
type Decision struct {
	Allow      bool
	RedirectTo string
}

var allow = Decision{Allow: true}

// Guard evaluates req against the session snapshot sess (nil when
// unauthenticated). Missing sessions go to the login page; sessions with the
// wrong role go home.
func Guard(req Requirement, sess *domain.Session) Decision {
	if !req.authenticated {
		return allow
	}
	if sess == nil {
		return Decision{RedirectTo: LoginPath}
	}
	if req.role != "" && sess.Role != req.role {
		return Decision{RedirectTo: HomePath}
	}
	return allow
}
