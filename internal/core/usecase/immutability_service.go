package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/smartattend/auditlog/internal/core/domain"
	"github.com/smartattend/auditlog/internal/core/ports"
)

// ImmutabilityService proves, on demand, that the storage-level write-once
// guard actually holds: it appends a probe entry and then attempts to
// mutate and delete it directly. Both attempts must be rejected by the
// store. An attempt that unexpectedly succeeds is reported as a failed
// check and raises a critical alert; it is never silently swallowed.
type ImmutabilityService struct {
	repo   ports.AuditLogRepository
	alerts ports.AlertOutboxRepository
}

func NewImmutabilityService(repo ports.AuditLogRepository, alerts ports.AlertOutboxRepository) *ImmutabilityService {
	return &ImmutabilityService{repo: repo, alerts: alerts}
}

func (s *ImmutabilityService) SelfTest(ctx context.Context) (domain.ImmutabilityReport, error) {
	probe, err := s.repo.Append(ctx, domain.EntryCandidate{
		ActorID:       "audit-self-test",
		ActionType:    "IMMUTABILITY_PROBE",
		ActionScope:   domain.ActionScopeGlobal,
		ResourceType:  "audit_log",
		ResourceID:    "self",
		Justification: "scheduled immutability self-test",
	})
	if err != nil {
		return domain.ImmutabilityReport{}, err
	}

	report := domain.ImmutabilityReport{
		Passed:    true,
		ProbeID:   probe.ID,
		CheckedAt: time.Now().UTC(),
	}

	if err := s.repo.TryUpdate(ctx, probe.ID); err != nil {
		report.Details = append(report.Details, fmt.Sprintf("update rejected: %v", err))
	} else {
		report.Passed = false
		report.Details = append(report.Details, "update against a persisted entry succeeded")
	}

	if err := s.repo.TryDelete(ctx, probe.ID); err != nil {
		report.Details = append(report.Details, fmt.Sprintf("delete rejected: %v", err))
	} else {
		report.Passed = false
		report.Details = append(report.Details, "delete against a persisted entry succeeded")
	}

	if !report.Passed {
		s.raiseAlert(ctx, report)
	}
	return report, nil
}

func (s *ImmutabilityService) raiseAlert(ctx context.Context, report domain.ImmutabilityReport) {
	if s.alerts == nil {
		return
	}
	encoded, err := json.Marshal(report)
	if err != nil {
		log.Printf("marshal immutability alert: %v", err)
		return
	}
	err = s.alerts.Enqueue(ctx, domain.AlertEnvelope{
		EventID:    uuid.NewString(),
		Kind:       domain.AlertKindImmutabilityFailure,
		Severity:   "critical",
		OccurredAt: time.Now().UTC(),
		Payload:    encoded,
	})
	if err != nil {
		log.Printf("enqueue immutability alert: %v", err)
	}
}
