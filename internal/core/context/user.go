// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Role codes used across the portal.
const (
	RoleClient         = "client"
	RoleAgent          = "agent"
	RoleAdministrateur = "administrateur"
)

// UserContext contains authenticated user information.
type UserContext struct {
	UserID      string
	Email       string
	DisplayName string
	Roles       []string
	// CodeClient is the invoicing code for client users (empty for staff).
	CodeClient string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsStaff returns true when the user holds the agent or administrateur role.
func IsStaff(ctx context.Context) bool {
	return HasRole(ctx, RoleAgent) || HasRole(ctx, RoleAdministrateur)
}
