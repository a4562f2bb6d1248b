package utils

import (
	"context"
	"time"
)

type contextKey string

const (
	ContextUserIDKey  contextKey = "userID"
	ContextGuardIDKey contextKey = "guardID"
	ContextRoleKey    contextKey = "role"
)

// SubjectData is what an identity lookup yields for a request. GuardID is
// empty for accounts that are not linked to a guard (admins, dispatchers).
type SubjectData struct {
	UserID    string
	GuardID   string
	Role      string
	ExpiresAt time.Time
}

func WithSubject(ctx context.Context, s SubjectData) context.Context {
	ctx = context.WithValue(ctx, ContextUserIDKey, s.UserID)
	ctx = context.WithValue(ctx, ContextRoleKey, s.Role)
	if s.GuardID != "" {
		ctx = context.WithValue(ctx, ContextGuardIDKey, s.GuardID)
	}
	return ctx
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID := ctx.Value(ContextUserIDKey)
	userIDStr, ok := userID.(string)
	return userIDStr, ok
}

func GetGuardIDFromContext(ctx context.Context) (string, bool) {
	guardID, ok := ctx.Value(ContextGuardIDKey).(string)
	return guardID, ok && guardID != ""
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(ContextRoleKey).(string)
	return role, ok
}
