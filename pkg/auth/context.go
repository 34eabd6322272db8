package auth

import (
	"context"
)

// contextKey is an unexported type for context keys in this package.
type contextKey int

const userKey contextKey = iota

// ContextWithUser returns a copy of ctx carrying user.
func ContextWithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user attached to ctx, if any.
//
// Example:
//
//	user, ok := auth.UserFromContext(ctx)
//	if !ok {
//	    return sserr.New(sserr.CodePermissionDenied, "no user in context")
//	}
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userKey).(User)
	return user, ok
}

// MustUserFromContext is like [UserFromContext] but panics when ctx
// carries no user. Use it only where a user is guaranteed.
func MustUserFromContext(ctx context.Context) User {
	user, ok := UserFromContext(ctx)
	if !ok {
		panic("auth: no user in context")
	}
	return user
}

// UserIDFromContext returns the id of the user attached to ctx, or an
// empty string.
func UserIDFromContext(ctx context.Context) string {
	user, _ := UserFromContext(ctx)
	return user.ID
}
