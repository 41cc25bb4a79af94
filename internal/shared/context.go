// Package shared carries request-scoped values across middleware and handlers.
package shared

import "context"

type contextKey string

const identityKey contextKey = "identity"

// Identity describes the authenticated actor attached to a request.
type Identity struct {
	UserID int64
	Email  string
}

// ContextWithIdentity stores the identity in the context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the identity from the context, or nil when
// the request is unauthenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}
