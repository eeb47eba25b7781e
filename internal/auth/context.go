// Package auth carries the authenticated customer through the request context.
package auth

import "context"

type contextKey struct{}

// WithUserID returns a copy of ctx carrying the customer id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFrom returns the customer id, or 0 for an anonymous request.
func UserIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(contextKey{}).(int64)
	return id
}
