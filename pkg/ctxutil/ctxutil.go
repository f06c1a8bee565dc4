package ctxutil

import (
	"context"
)

type ctxKey string

const (
	actorKey     ctxKey = "actor"
	requestIDKey ctxKey = "request_id"
)

// Role names recognized by the lifecycle endpoints.
const (
	RoleIssuer = "issuer"
	RoleSystem = "system"
)

// Actor is the identity on whose behalf a call runs.
type Actor struct {
	ID   string
	Role string
}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromCtx extracts the actor from the context.
// Returns false if the value is missing or has an empty ID.
func ActorFromCtx(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	if !ok || a.ID == "" {
		return Actor{}, false
	}
	return a, true
}

// ActorIDOr returns the actor ID in ctx, or fallback when absent.
func ActorIDOr(ctx context.Context, fallback string) string {
	if a, ok := ActorFromCtx(ctx); ok {
		return a.ID
	}
	return fallback
}

// HasRole reports whether the context actor has one of the given roles.
func HasRole(ctx context.Context, roles ...string) bool {
	a, ok := ActorFromCtx(ctx)
	if !ok {
		return false
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx extracts the request ID from the context.
// Returns an empty string if absent.
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
