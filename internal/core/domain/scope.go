package domain

// AccessScope is the single access-control abstraction for all read
// operations. It has exactly two variants: Unrestricted (privileged
// requesters see everything) and OwnedBy (the requester sees only entries
// whose actor is their own identity). It is applied once, before filters
// are evaluated, so a requester can never widen their view by omitting or
// forging a filter.
type AccessScope struct {
	owner        string
	unrestricted bool
}

func Unrestricted() AccessScope {
	return AccessScope{unrestricted: true}
}

func OwnedBy(actorID string) AccessScope {
	return AccessScope{owner: actorID}
}

func (s AccessScope) Privileged() bool { return s.unrestricted }

// Validate rejects an owned scope with no requester identity. Such a scope
// is not privileged, yet forcing an empty actor filter would match every
// actor, so it must never reach a filter.
func (s AccessScope) Validate() error {
	if !s.unrestricted && s.owner == "" {
		return Forbiddenf("requester identity is required")
	}
	return nil
}

// Owner returns the forced actor identity and true for OwnedBy scopes.
func (s AccessScope) Owner() (string, bool) {
	if s.unrestricted {
		return "", false
	}
	return s.owner, true
}
