package usecase

import (
	"context"

	"github.com/smartattend/auditlog/internal/core/domain"
	"github.com/smartattend/auditlog/internal/core/ports"
)

// SummaryService computes privileged-only rollups over the log. It is a
// pure read-side computation; nothing in a summary is invented beyond what
// the entries contain.
type SummaryService struct {
	repo ports.AuditLogRepository
}

func NewSummaryService(repo ports.AuditLogRepository) *SummaryService {
	return &SummaryService{repo: repo}
}

func (s *SummaryService) Summarize(ctx context.Context, window domain.SummaryWindow, scope domain.AccessScope) (domain.Summary, error) {
	if !scope.Privileged() {
		return domain.Summary{}, domain.Forbiddenf("summary requires unrestricted access")
	}
	if err := window.Validate(); err != nil {
		return domain.Summary{}, err
	}
	return s.repo.Summarize(ctx, window)
}
