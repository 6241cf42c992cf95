package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/smartattend/auditlog/internal/core/domain"
	"github.com/smartattend/auditlog/internal/core/ports"
)

// IntegrityService recomputes checksums and chain linkage. Verification
// failures are results, never errors: the caller decides how to escalate,
// and a critical alert is enqueued so escalation cannot be forgotten.
type IntegrityService struct {
	repo   ports.AuditLogRepository
	alerts ports.AlertOutboxRepository
}

func NewIntegrityService(repo ports.AuditLogRepository, alerts ports.AlertOutboxRepository) *IntegrityService {
	return &IntegrityService{repo: repo, alerts: alerts}
}

// VerifyEntry checks one entry: its checksum must be reproducible from its
// stored fields, and its prev_checksum must equal the checksum of the entry
// at sequence-1 in the same chain scope. Unknown ids fail with NotFound.
func (s *IntegrityService) VerifyEntry(ctx context.Context, id string) (domain.IntegrityReport, error) {
	if id == "" {
		return domain.IntegrityReport{}, domain.Validationf("id is required")
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.IntegrityReport{}, err
	}

	expectedPrev := ""
	if entry.Sequence > 1 {
		predecessor, err := s.repo.GetBySequence(ctx, entry.ChainScope, entry.Sequence-1)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				// A missing predecessor is itself an integrity finding,
				// not a lookup failure. The entry's own checksum is still
				// recomputed against its stored prev_checksum, so a
				// self-consistent orphan reports valid but not intact.
				recomputed := domain.ComputeChecksum(entry, entry.PrevChecksum)
				report := domain.IntegrityReport{
					EntryID:            entry.ID,
					ChainScope:         entry.ChainScope,
					Sequence:           entry.Sequence,
					Valid:              recomputed == entry.Checksum,
					RecomputedChecksum: recomputed,
					ChainIntact:        false,
					Details:            []string{fmt.Sprintf("predecessor at sequence %d is missing", entry.Sequence-1)},
				}
				s.raiseAlert(ctx, domain.AlertKindIntegrityViolation, entry.TenantID, report)
				return report, nil
			}
			return domain.IntegrityReport{}, err
		}
		expectedPrev = predecessor.Checksum
	}

	verdict := domain.VerifyEntry(entry, expectedPrev)
	report := domain.IntegrityReport{
		EntryID:            entry.ID,
		ChainScope:         entry.ChainScope,
		Sequence:           entry.Sequence,
		Valid:              verdict.Valid,
		RecomputedChecksum: verdict.Recomputed,
		ChainIntact:        verdict.PrevMatch,
	}
	if !verdict.Valid {
		report.Details = append(report.Details, "stored checksum does not match recomputed checksum")
	}
	if !verdict.PrevMatch {
		report.Details = append(report.Details, "prev_checksum does not match predecessor")
	}
	if !verdict.Valid || !verdict.PrevMatch {
		s.raiseAlert(ctx, domain.AlertKindIntegrityViolation, entry.TenantID, report)
	}
	return report, nil
}

const chainWalkBatchSize = 500

// VerifyChain walks an entire chain in sequence order, checking density,
// linkage and self-consistency of every entry.
func (s *IntegrityService) VerifyChain(ctx context.Context, chainScope string) (domain.ChainReport, error) {
	if chainScope == "" {
		return domain.ChainReport{}, domain.Validationf("chain_scope is required")
	}

	report := domain.ChainReport{ChainScope: chainScope, Intact: true}
	expectedSequence := int64(1)
	expectedPrev := ""
	afterSequence := int64(0)

	for {
		batch, err := s.repo.ListChain(ctx, chainScope, afterSequence, chainWalkBatchSize)
		if err != nil {
			return domain.ChainReport{}, err
		}
		if len(batch) == 0 {
			break
		}

		for _, entry := range batch {
			report.Entries++
			broken := false
			if entry.Sequence != expectedSequence {
				broken = true
				report.Details = append(report.Details, fmt.Sprintf("expected sequence %d, found %d", expectedSequence, entry.Sequence))
				// Resynchronize so one gap is reported once.
				expectedSequence = entry.Sequence
			}

			verdict := domain.VerifyEntry(entry, expectedPrev)
			if !verdict.Valid {
				broken = true
				report.Details = append(report.Details, fmt.Sprintf("sequence %d: checksum mismatch", entry.Sequence))
			}
			if !verdict.PrevMatch {
				broken = true
				report.Details = append(report.Details, fmt.Sprintf("sequence %d: broken link to predecessor", entry.Sequence))
			}
			// An entry with several defects is still one broken sequence.
			if broken {
				report.Intact = false
				report.BrokenSequences = append(report.BrokenSequences, entry.Sequence)
			}

			expectedPrev = entry.Checksum
			expectedSequence = entry.Sequence + 1
			afterSequence = entry.Sequence
		}
	}

	if report.Entries == 0 {
		return domain.ChainReport{}, domain.NotFoundf("chain %s has no entries", chainScope)
	}
	if !report.Intact {
		s.raiseAlert(ctx, domain.AlertKindChainBroken, "", report)
	}
	return report, nil
}

// raiseAlert enqueues a critical alert; failure to enqueue is logged, never
// propagated, so verification results always reach the caller.
func (s *IntegrityService) raiseAlert(ctx context.Context, kind, tenantID string, payload any) {
	if s.alerts == nil {
		return
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal %s alert: %v", kind, err)
		return
	}
	err = s.alerts.Enqueue(ctx, domain.AlertEnvelope{
		EventID:    uuid.NewString(),
		Kind:       kind,
		Severity:   "critical",
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
		Payload:    encoded,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("enqueue %s alert: %v", kind, err)
	}
}
