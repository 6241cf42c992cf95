package usecase

import (
	"context"
	"sync"
)

// OwnershipRule decides whether an actor owns a specific resource id of one
// resource type.
type OwnershipRule func(actorID, resourceID string) bool

// RuleOwnershipResolver maps resource types to ownership rules. Resource
// types without a declared rule default to "not entitled": the audit core
// has no way to invent an ownership mapping, so the embedding application
// must declare one per resource type it wants self-service trails for.
type RuleOwnershipResolver struct {
	mu    sync.RWMutex
	rules map[string]OwnershipRule
}

func NewRuleOwnershipResolver() *RuleOwnershipResolver {
	r := &RuleOwnershipResolver{rules: make(map[string]OwnershipRule)}
	// A user resource is owned by the actor with the same identity.
	r.Register("user", func(actorID, resourceID string) bool {
		return actorID == resourceID
	})
	return r
}

func (r *RuleOwnershipResolver) Register(resourceType string, rule OwnershipRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[resourceType] = rule
}

func (r *RuleOwnershipResolver) Entitled(_ context.Context, actorID, resourceType, resourceID string) (bool, error) {
	r.mu.RLock()
	rule, ok := r.rules[resourceType]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return rule(actorID, resourceID), nil
}
