// ABOUTME: Request-scoped principal carried through context.Context
// ABOUTME: The relay assumes identity is established by the surrounding application

package auth

import "context"

// Principal is the authenticated identity attached to every relay request.
// Session management and user records live outside this service; all the
// relay needs is a stable user ID.
type Principal struct {
	UserID string
}

type contextKey struct{}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext extracts the principal, or nil if the request is
// unauthenticated.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(contextKey{}).(*Principal)
	return p
}
