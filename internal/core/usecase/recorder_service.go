package usecase

import (
	"context"
	"errors"

	"github.com/smartattend/auditlog/internal/core/domain"
	"github.com/smartattend/auditlog/internal/core/ports"
)

// RecorderService is the only write path into the audit log. It validates
// the candidate, checks state snapshots against any registered snapshot
// schema, and delegates the atomic sequence/checksum assignment to the
// repository. Retried candidates get a fresh sequence and timestamp; the
// log, not the caller, is the source of truth for "did this happen".
type RecorderService struct {
	repo    ports.AuditLogRepository
	schemas *SnapshotSchemaService
}

func NewRecorderService(repo ports.AuditLogRepository, schemas *SnapshotSchemaService) *RecorderService {
	return &RecorderService{repo: repo, schemas: schemas}
}

func (s *RecorderService) Append(ctx context.Context, candidate domain.EntryCandidate) (domain.AuditLogEntry, error) {
	if err := candidate.Validate(); err != nil {
		return domain.AuditLogEntry{}, err
	}

	if s.schemas != nil {
		if candidate.BeforeState != nil {
			if err := s.schemas.Validate(ctx, candidate.TenantID, candidate.ResourceType, candidate.BeforeState); err != nil {
				return domain.AuditLogEntry{}, wrapSchemaError("before_state", err)
			}
		}
		if candidate.AfterState != nil {
			if err := s.schemas.Validate(ctx, candidate.TenantID, candidate.ResourceType, candidate.AfterState); err != nil {
				return domain.AuditLogEntry{}, wrapSchemaError("after_state", err)
			}
		}
	}

	return s.repo.Append(ctx, candidate)
}

func wrapSchemaError(field string, err error) error {
	var violation *domain.ErrSchemaViolation
	if errors.As(err, &violation) {
		return domain.Validationf("%s: %s", field, violation.Error())
	}
	return err
}
