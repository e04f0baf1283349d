package middleware

import (
	"context"

	"go-wiki-engine/internal/auth"
)

// contextKey defines a custom type for context keys to avoid collisions.
type contextKey string

const userContextKey = contextKey("user")

// GetUser retrieves the authenticated user from the request context.
func GetUser(ctx context.Context) *auth.User {
	if user, ok := ctx.Value(userContextKey).(*auth.User); ok {
		return user
	}
	// Return an anonymous user if no user is found in the context.
	return auth.Anonymous()
}

// SetUser adds the user to the request context.
func SetUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
