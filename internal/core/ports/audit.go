package ports

import (
	"context"

	"github.com/smartattend/auditlog/internal/core/domain"
)

// AuditLogRepository is the storage port for the append-only log. The audit
// subsystem exclusively owns this storage; nothing else writes to it.
type AuditLogRepository interface {
	// Append assigns id, sequence, timestamp and checksum, then persists
	// the fully-formed entry in one atomic operation. The tail read and
	// the insert run in the same write transaction so sequences stay
	// dense and prev_checksum always names the true predecessor.
	Append(ctx context.Context, candidate domain.EntryCandidate) (domain.AuditLogEntry, error)

	GetByID(ctx context.Context, id string) (domain.AuditLogEntry, error)
	GetBySequence(ctx context.Context, chainScope string, sequence int64) (domain.AuditLogEntry, error)

	// List returns entries matching the filter, bounded by its limit.
	// The filter is assumed normalized and access-scoped by the caller.
	List(ctx context.Context, filter domain.QueryFilter) ([]domain.AuditLogEntry, error)

	// ListChain pages one chain in ascending sequence order.
	ListChain(ctx context.Context, chainScope string, afterSequence int64, limit int) ([]domain.AuditLogEntry, error)

	// SearchJustification matches free text against the justification
	// field, case-insensitively.
	SearchJustification(ctx context.Context, tenantID, text string, limit int) ([]domain.AuditLogEntry, error)

	Summarize(ctx context.Context, window domain.SummaryWindow) (domain.Summary, error)

	// TryUpdate and TryDelete issue a direct mutation against a persisted
	// entry, bypassing the append path. On a correctly configured store
	// both return a rejection error; a nil return means the immutability
	// guarantee is broken.
	TryUpdate(ctx context.Context, id string) error
	TryDelete(ctx context.Context, id string) error
}
