// Package identity carries the ambient authenticated user on the request
// context. The audit emitter reads it to attribute log entries; when no user
// is set, entries are recorded with a null user id.
package identity

import "context"

type ctxKey struct{}

// WithAuthenticatedUser returns a context carrying the given user id.
func WithAuthenticatedUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// AuthenticatedUser returns the ambient user id, or nil if none is set.
func AuthenticatedUser(ctx context.Context) *string {
	if userID, ok := ctx.Value(ctxKey{}).(string); ok {
		return &userID
	}
	return nil
}
