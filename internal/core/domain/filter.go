package domain

import "time"

const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 10000
)

// QueryFilter narrows a read over the log. All fields are optional and
// intersect with AND semantics. The time range is half-open: [Start, End).
type QueryFilter struct {
	TenantID     string
	ActorID      string
	ActionType   string
	ActionScope  ActionScope
	ResourceType string
	ResourceID   string
	Start        time.Time
	End          time.Time
	Limit        int
	Offset       int

	// Ascending flips ordering to oldest-first; used by trail
	// reconstruction. Default ordering is most recent first.
	Ascending bool
}

// Normalize validates the filter and clamps pagination. Limits outside
// [1, MaxQueryLimit] are clamped rather than rejected; a negative offset and
// an inverted time range are validation errors.
func (f QueryFilter) Normalize() (QueryFilter, error) {
	if f.Offset < 0 {
		return QueryFilter{}, Validationf("offset must be >= 0")
	}
	if f.ActionScope != "" && !f.ActionScope.Valid() {
		return QueryFilter{}, Validationf("action_scope must be one of GLOBAL, TENANT, USER")
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return QueryFilter{}, Validationf("end_time must not precede start_time")
	}
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
	return f, nil
}

// Scoped applies an access scope to the filter before any storage access.
// For OwnedBy scopes the actor filter is overwritten with the requester's
// own identity regardless of what was passed in.
func (f QueryFilter) Scoped(scope AccessScope) QueryFilter {
	if owner, ok := scope.Owner(); ok {
		f.ActorID = owner
	}
	return f
}
