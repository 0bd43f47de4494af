package middleware

import (
	"context"

	"github.com/angelmondragon/miyf-books/pkg/types"
)

type contextKey string

const ctxActor contextKey = "actor"

// ActorFromContext returns the resolved caller, if the request was authenticated.
func ActorFromContext(ctx context.Context) (types.Actor, bool) {
	if ctx == nil {
		return types.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(types.Actor)
	return actor, ok
}

// UserIDFromContext returns the caller's uid or "".
func UserIDFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return actor.UID
}

// WithActor injects the resolved caller into the context.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}
