package usercontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// UserContextKey is the request context key for the authenticated user ID.
type UserContextKey struct{}

// AdminContextKey is the request context key for the admin flag.
type AdminContextKey struct{}

// WithUserID stores the user ID in the context.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserContextKey{}, userID)
}

// WithAdmin stores the admin flag in the context.
func WithAdmin(ctx context.Context, admin bool) context.Context {
	return context.WithValue(ctx, AdminContextKey{}, admin)
}

// UserIDFromContext returns the user ID from context, if set.
func UserIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(UserContextKey{})
	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// IsAdmin reports whether the context user carries the admin flag.
func IsAdmin(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	admin, _ := ctx.Value(AdminContextKey{}).(bool)
	return admin
}
