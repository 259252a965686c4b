package shared

import "context"

// Role describes what part of the chain an actor works for.
type Role string

const (
	// RoleAdmin may call any endpoint.
	RoleAdmin Role = "admin"
	// RoleWarehouse progresses transfer orders (confirm, ship, cancel).
	RoleWarehouse Role = "warehouse"
	// RoleStore creates orders, withdraws them and confirms receipt.
	RoleStore Role = "store"
)

// Actor identifies the authenticated caller.
type Actor struct {
	ID         int64
	Name       string
	Role       Role
	LocationID int64
}

// Is reports whether the actor holds the role. Admin passes every check.
func (a Actor) Is(role Role) bool {
	return a.Role == role || a.Role == RoleAdmin
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
