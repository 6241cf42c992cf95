package ports

import "context"

// OwnershipResolver answers whether an actor is entitled to a specific
// resource. The mapping rule is resource-type-specific and declared by the
// embedding application; the core only asks the question.
type OwnershipResolver interface {
	Entitled(ctx context.Context, actorID, resourceType, resourceID string) (bool, error)
}
