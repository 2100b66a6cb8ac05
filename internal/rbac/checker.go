package rbac

import (
	"context"
	"strings"
)

// Checker answers permission questions against a role table.
type Checker struct {
	rules map[Role][]Perm
}

// NewChecker uses DefaultRules when rules is nil.
func NewChecker(rules map[Role][]Perm) *Checker {
	if rules == nil {
		rules = DefaultRules
	}
	return &Checker{rules: rules}
}

func (c *Checker) Has(role Role, perm Perm) bool {
	for _, granted := range c.rules[role] {
		if granted.covers(perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role Role, perms ...Perm) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func (p Perm) covers(want Perm) bool {
	if p == "*" || p == want {
		return true
	}
	prefix, wild := strings.CutSuffix(string(p), "*")
	return wild && strings.HasPrefix(string(want), prefix)
}

type roleKey struct{}

func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFromContext returns "" when no verified role is present.
func RoleFromContext(ctx context.Context) Role {
	r, _ := ctx.Value(roleKey{}).(Role)
	return r
}
