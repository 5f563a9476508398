package domain

import "context"

// SystemActor is recorded when no actor travels with the request.
const SystemActor = "system"

type actorKey struct{}

// ContextWithActor returns a copy of ctx carrying the actor reference used for audit records.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored in ctx or SystemActor.
func ActorFromContext(ctx context.Context) string {
	actor, ok := ctx.Value(actorKey{}).(string)
	if !ok || actor == "" {
		return SystemActor
	}

	return actor
}
