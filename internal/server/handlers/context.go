package handlers

import (
	"context"
	"strconv"

	"insurance-management/backend/internal/session/domain"
)

type contextKey int

const identityKey contextKey = iota

// WithIdentity attaches the validated identity to ctx.
func WithIdentity(ctx context.Context, view domain.View) context.Context {
	return context.WithValue(ctx, identityKey, view)
}

// IdentityFrom returns the identity attached by the auth middleware.
func IdentityFrom(ctx context.Context) (domain.View, bool) {
	view, ok := ctx.Value(identityKey).(domain.View)
	return view, ok
}

func userIDOf(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
