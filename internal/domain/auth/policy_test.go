package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testPolicy() *Policy {
	return NewPolicy(
		PublicPaths{"/api/v1/auth/", "/healthz"},
		Rule{Method: "GET", Pattern: "/api/v1/me", Predicate: AnyAuthenticated},
		Rule{Pattern: "/api/v1/user/...", Predicate: UserOrAdmin},
		Rule{Method: "DELETE", Pattern: "/api/v1/admin/users/{id}", Predicate: AdminOnly},
		Rule{Pattern: "/api/v1/admin/...", Predicate: AdminOnly},
	)
}

func authnWithRole(r Role) Authentication {
	return Authenticated(Identity{Username: "someone", Role: r})
}

func TestPredicate_Allows(t *testing.T) {
	tests := []struct {
		pred Predicate
		role Role
		want bool
	}{
		{AnyAuthenticated, RoleUser, true},
		{AnyAuthenticated, RoleAdmin, true},
		{AnyAuthenticated, Role("ROOT"), true},
		{UserOrAdmin, RoleUser, true},
		{UserOrAdmin, RoleAdmin, true},
		{UserOrAdmin, Role("ROOT"), false},
		{UserOrAdmin, Role(""), false},
		{AdminOnly, RoleAdmin, true},
		{AdminOnly, RoleUser, false},
		{AdminOnly, Role("admin"), false},
		{Predicate("SOMETHING"), RoleAdmin, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.pred)+"/"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pred.Allows(tt.role))
		})
	}
}

func TestPublicPaths_Matches(t *testing.T) {
	pp := PublicPaths{"/api/v1/auth/", "", "/healthz"}
	assert.True(t, pp.Matches("/api/v1/auth/authenticate"))
	assert.True(t, pp.Matches("/healthz"))
	assert.False(t, pp.Matches("/api/v1/authx"))
	assert.False(t, pp.Matches("/api/v1/admin/users"))
	assert.False(t, PublicPaths(nil).Matches("/"))
}

func TestPolicy_Evaluate(t *testing.T) {
	p := testPolicy()
	anon := Anonymous("missing bearer token")

	tests := []struct {
		name   string
		authn  Authentication
		method string
		path   string
		want   Decision
	}{
		{"public path anonymous", anon, "POST", "/api/v1/auth/register", DecisionAllow},
		{"public path ignores identity", authnWithRole(RoleUser), "GET", "/healthz", DecisionAllow},
		{"me anonymous", anon, "GET", "/api/v1/me", DecisionUnauthenticated},
		{"me user", authnWithRole(RoleUser), "GET", "/api/v1/me", DecisionAllow},
		{"me unknown role still authenticated", authnWithRole(Role("ROOT")), "GET", "/api/v1/me", DecisionAllow},
		{"user route as user", authnWithRole(RoleUser), "GET", "/api/v1/user/profile", DecisionAllow},
		{"user route as admin", authnWithRole(RoleAdmin), "GET", "/api/v1/user/dashboard", DecisionAllow},
		{"user route unknown role", authnWithRole(Role("ROOT")), "GET", "/api/v1/user/profile", DecisionForbidden},
		{"user subtree root", authnWithRole(RoleUser), "GET", "/api/v1/user", DecisionAllow},
		{"admin route as user", authnWithRole(RoleUser), "GET", "/api/v1/admin/users", DecisionForbidden},
		{"admin route as admin", authnWithRole(RoleAdmin), "GET", "/api/v1/admin/dashboard", DecisionAllow},
		{"admin delete as user", authnWithRole(RoleUser), "DELETE", "/api/v1/admin/users/42", DecisionForbidden},
		{"admin route anonymous", anon, "GET", "/api/v1/admin/users", DecisionUnauthenticated},
		{"unmatched falls back to any authenticated", authnWithRole(RoleUser), "GET", "/api/v1/other", DecisionAllow},
		{"unmatched anonymous", anon, "GET", "/api/v1/other", DecisionUnauthenticated},
		{"trailing slash", authnWithRole(RoleUser), "GET", "/api/v1/admin/", DecisionForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Evaluate(tt.authn, tt.method, tt.path))
		})
	}
}

func TestPolicy_Requirement(t *testing.T) {
	p := testPolicy()

	_, guarded := p.Requirement("GET", "/api/v1/auth/health")
	assert.False(t, guarded)

	pred, guarded := p.Requirement("delete", "/api/v1/admin/users/abc")
	assert.True(t, guarded)
	assert.Equal(t, AdminOnly, pred)

	// Method-scoped rule does not match other methods.
	pred, guarded = p.Requirement("POST", "/api/v1/me")
	assert.True(t, guarded)
	assert.Equal(t, AnyAuthenticated, pred)

	// Single-segment wildcard does not swallow deeper paths.
	r := Rule{Pattern: "/a/{id}", Predicate: AdminOnly}
	assert.True(t, r.matches("GET", splitPath("/a/1")))
	assert.False(t, r.matches("GET", splitPath("/a/1/b")))
	assert.False(t, r.matches("GET", splitPath("/a")))
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "allow", DecisionAllow.String())
	assert.Equal(t, "unauthenticated", DecisionUnauthenticated.String())
	assert.Equal(t, "forbidden", DecisionForbidden.String())
	assert.Equal(t, "unknown", Decision(99).String())
}
