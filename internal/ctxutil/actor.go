// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// CallerKey is the context key for the caller identity.
// Exported so it can be used consistently across packages.
type CallerKey struct{}

// WithCaller returns a context with the caller identity embedded.
// The caller identity is recorded on audit entries written for operations
// executed under this context.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, CallerKey{}, caller)
}

// CallerFromContext returns the caller identity from context, or empty string if not set.
func CallerFromContext(ctx context.Context) string {
	if v := ctx.Value(CallerKey{}); v != nil {
		return v.(string)
	}
	return ""
}
