package auth

import "strings"

// Predicate is the minimum requirement an identity must meet to reach an endpoint.
type Predicate string

const (
	AnyAuthenticated Predicate = "ANY_AUTHENTICATED"
	UserOrAdmin      Predicate = "USER_OR_ADMIN"
	AdminOnly        Predicate = "ADMIN_ONLY"
)

// Allows reports whether an authenticated identity holding role satisfies p.
// Unknown roles and unknown predicates never satisfy a role check.
func (p Predicate) Allows(role Role) bool {
	switch p {
	case AnyAuthenticated:
		return true
	case UserOrAdmin:
		return role == RoleUser || role == RoleAdmin
	case AdminOnly:
		return role == RoleAdmin
	default:
		return false
	}
}

// Decision is the outcome of evaluating a request against a Policy.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionUnauthenticated
	DecisionForbidden
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// PublicPaths is an allow-list of path prefixes that bypass authentication entirely.
type PublicPaths []string

// Matches reports whether path starts with any configured prefix.
func (pp PublicPaths) Matches(path string) bool {
	for _, prefix := range pp {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Rule binds a route pattern to a Predicate.
//
// Pattern is a path template: "{name}" matches exactly one non-empty segment and a
// trailing "/..." matches the prefix itself plus any subtree. An empty Method matches
// every method.
type Rule struct {
	Method    string
	Pattern   string
	Predicate Predicate
}

func (r Rule) matches(method string, segs []string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	pat := splitPath(r.Pattern)
	subtree := len(pat) > 0 && pat[len(pat)-1] == "..."
	if subtree {
		pat = pat[:len(pat)-1]
		if len(segs) < len(pat) {
			return false
		}
	} else if len(segs) != len(pat) {
		return false
	}
	for i, p := range pat {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			if segs[i] == "" {
				return false
			}
			continue
		}
		if p != segs[i] {
			return false
		}
	}
	return true
}

// Policy is the central route-to-predicate table.
// Rules are evaluated in order and the first match wins; non-public requests that match
// no rule fall back to AnyAuthenticated.
type Policy struct {
	public   PublicPaths
	rules    []Rule
	fallback Predicate
}

// NewPolicy constructs a Policy.
func NewPolicy(public PublicPaths, rules ...Rule) *Policy {
	return &Policy{
		public:   append(PublicPaths(nil), public...),
		rules:    append([]Rule(nil), rules...),
		fallback: AnyAuthenticated,
	}
}

// Public returns the public-prefix allow-list.
func (p *Policy) Public() PublicPaths { return p.public }

// Requirement returns the predicate guarding method+path and false when the path is public.
func (p *Policy) Requirement(method, path string) (Predicate, bool) {
	if p.public.Matches(path) {
		return "", false
	}
	segs := splitPath(path)
	for _, r := range p.rules {
		if r.matches(method, segs) {
			return r.Predicate, true
		}
	}
	return p.fallback, true
}

// Evaluate decides whether a request carrying a may proceed.
func (p *Policy) Evaluate(a Authentication, method, path string) Decision {
	pred, guarded := p.Requirement(method, path)
	if !guarded {
		return DecisionAllow
	}
	id, ok := a.Identity()
	if !ok {
		return DecisionUnauthenticated
	}
	if !pred.Allows(id.Role) {
		return DecisionForbidden
	}
	return DecisionAllow
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
