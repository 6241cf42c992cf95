package usecase

import (
	"context"
	"strings"

	"github.com/smartattend/auditlog/internal/core/domain"
	"github.com/smartattend/auditlog/internal/core/ports"
)

// QueryService serves all read paths over the log: filtered queries, single
// lookups, per-resource trails, and justification search. The access scope
// is applied once, before filters, so a requester can never widen their
// view past it.
type QueryService struct {
	repo      ports.AuditLogRepository
	ownership ports.OwnershipResolver
}

func NewQueryService(repo ports.AuditLogRepository, ownership ports.OwnershipResolver) *QueryService {
	return &QueryService{repo: repo, ownership: ownership}
}

func (s *QueryService) Query(ctx context.Context, filter domain.QueryFilter, scope domain.AccessScope) ([]domain.AuditLogEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter.Scoped(scope))
}

func (s *QueryService) GetByID(ctx context.Context, id string, scope domain.AccessScope) (domain.AuditLogEntry, error) {
	if err := scope.Validate(); err != nil {
		return domain.AuditLogEntry{}, err
	}
	if id == "" {
		return domain.AuditLogEntry{}, domain.Validationf("id is required")
	}
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.AuditLogEntry{}, err
	}
	if owner, ok := scope.Owner(); ok && entry.ActorID != owner {
		return domain.AuditLogEntry{}, domain.Forbiddenf("entry %s belongs to another actor", id)
	}
	return entry, nil
}

// TrailFor reconstructs the chronological history of one resource, oldest
// first. Non-privileged requesters must be entitled to the resource; the
// entitlement rule is resource-type-specific and declared by the embedding
// application via the ownership resolver.
func (s *QueryService) TrailFor(ctx context.Context, resourceType, resourceID string, scope domain.AccessScope) ([]domain.AuditLogEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if resourceType == "" {
		return nil, domain.Validationf("resource_type is required")
	}
	if resourceID == "" {
		return nil, domain.Validationf("resource_id is required")
	}

	if owner, ok := scope.Owner(); ok {
		entitled, err := s.ownership.Entitled(ctx, owner, resourceType, resourceID)
		if err != nil {
			return nil, err
		}
		if !entitled {
			return nil, domain.Forbiddenf("not entitled to %s/%s", resourceType, resourceID)
		}
	}

	filter, err := domain.QueryFilter{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Limit:        domain.MaxQueryLimit,
		Ascending:    true,
	}.Normalize()
	if err != nil {
		return nil, err
	}
	// The trail is the resource's full history; the entitlement check above
	// replaces actor scoping, which would hide other actors' changes to the
	// same resource. Histories longer than one read are paged, never
	// truncated.
	var trail []domain.AuditLogEntry
	for {
		batch, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		trail = append(trail, batch...)
		if len(batch) < filter.Limit {
			return trail, nil
		}
		filter.Offset += len(batch)
	}
}

// SearchJustification is privileged-only: free text can surface entries
// across actors.
func (s *QueryService) SearchJustification(ctx context.Context, tenantID, text string, limit int, scope domain.AccessScope) ([]domain.AuditLogEntry, error) {
	if !scope.Privileged() {
		return nil, domain.Forbiddenf("justification search requires unrestricted access")
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.Validationf("search text is required")
	}
	if limit <= 0 {
		limit = domain.DefaultQueryLimit
	}
	if limit > domain.MaxQueryLimit {
		limit = domain.MaxQueryLimit
	}
	return s.repo.SearchJustification(ctx, tenantID, text, limit)
}
