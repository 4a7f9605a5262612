package auth

import "context"

// Decision is the outcome of a role-based access check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Requirement declares what an operation needs from the caller.
type Requirement struct {
	authenticated bool
	anyOf         []string
}

// Public requires nothing; anonymous callers are allowed.
func Public() Requirement { return Requirement{} }

// Authenticated requires a principal with any role set.
func Authenticated() Requirement { return Requirement{authenticated: true} }

// AnyRole requires a principal holding at least one of roles.
func AnyRole(roles ...string) Requirement {
	return Requirement{authenticated: true, anyOf: NewRoleSet(roles...).Names()}
}

// NeedsPrincipal reports whether anonymous callers are denied.
func (r Requirement) NeedsPrincipal() bool { return r.authenticated }

// Roles returns the accepted role names (empty when any principal will do).
func (r Requirement) Roles() []string {
	out := make([]string, len(r.anyOf))
	copy(out, r.anyOf)
	return out
}

// Decide is a pure predicate over the caller's identity (present or not)
// and the operation's requirement.
func Decide(id Identity, present bool, req Requirement) Decision {
	if !req.authenticated {
		return Allow
	}
	if !present {
		return Deny
	}
	if len(req.anyOf) == 0 {
		return Allow
	}
	if id.Roles.Intersects(req.anyOf...) {
		return Allow
	}
	return Deny
}

// DecideContext evaluates req against the identity attached to ctx.
func DecideContext(ctx context.Context, req Requirement) Decision {
	id, ok := IdentityFromContext(ctx)
	return Decide(id, ok, req)
}
