package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smartattend/auditlog/internal/adapters/sqlite/gormsqlite"
	"github.com/smartattend/auditlog/internal/core/domain"
)

// Timestamps are stored as fixed-width UTC text so that (a) lexicographic
// order equals chronological order and (b) the value round-trips
// byte-exactly, which checksum recomputation depends on.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type auditEntryModel struct {
	ID            string  `gorm:"column:id;primaryKey"`
	ChainScope    string  `gorm:"column:chain_scope;not null"`
	Sequence      int64   `gorm:"column:sequence;not null"`
	Timestamp     string  `gorm:"column:timestamp;not null"`
	TenantID      string  `gorm:"column:tenant_id;not null"`
	ActorID       string  `gorm:"column:actor_id;not null"`
	ActionType    string  `gorm:"column:action_type;not null"`
	ActionScope   string  `gorm:"column:action_scope;not null"`
	ResourceType  string  `gorm:"column:resource_type;not null"`
	ResourceID    string  `gorm:"column:resource_id;not null"`
	BeforeState   *string `gorm:"column:before_state"`
	AfterState    *string `gorm:"column:after_state"`
	Justification string  `gorm:"column:justification;not null"`
	PrevChecksum  *string `gorm:"column:prev_checksum"`
	Checksum      string  `gorm:"column:checksum;not null"`
}

func (auditEntryModel) TableName() string {
	return "audit_entries"
}

// AuditLogRepository is the sole writer of audit_entries. The chain scoping
// mode is fixed at construction; mixing modes against one store would make
// the chain invariant ambiguous.
type AuditLogRepository struct {
	db      *gormsqlite.DB
	scoping domain.ChainScoping
}

func NewAuditLogRepository(db *gormsqlite.DB, scoping domain.ChainScoping) *AuditLogRepository {
	return &AuditLogRepository{db: db, scoping: scoping}
}

func (r *AuditLogRepository) Append(ctx context.Context, candidate domain.EntryCandidate) (domain.AuditLogEntry, error) {
	scope := r.scoping.ScopeFor(candidate.TenantID)
	var persisted domain.AuditLogEntry

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		var tail auditEntryModel
		nextSequence := int64(1)
		prevChecksum := ""

		err := tx.Where("chain_scope = ?", scope).Order("sequence DESC").First(&tail).Error
		switch {
		case err == nil:
			nextSequence = tail.Sequence + 1
			prevChecksum = tail.Checksum
		case errors.Is(err, gorm.ErrRecordNotFound):
			// First entry of the chain.
		default:
			return fmt.Errorf("read chain tail: %w", err)
		}

		entry := domain.AuditLogEntry{
			ID:            uuid.NewString(),
			ChainScope:    scope,
			Sequence:      nextSequence,
			Timestamp:     stampNow(),
			TenantID:      candidate.TenantID,
			ActorID:       candidate.ActorID,
			ActionType:    candidate.ActionType,
			ActionScope:   candidate.ActionScope,
			ResourceType:  candidate.ResourceType,
			ResourceID:    candidate.ResourceID,
			BeforeState:   candidate.BeforeState,
			AfterState:    candidate.AfterState,
			Justification: candidate.Justification,
			PrevChecksum:  prevChecksum,
		}
		entry.Checksum = domain.ComputeChecksum(entry, prevChecksum)

		if err := tx.Create(toModel(entry)).Error; err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}

		persisted = entry
		return nil
	})
	if err != nil {
		return domain.AuditLogEntry{}, domain.Unavailable("append audit entry", err)
	}

	return persisted, nil
}

func (r *AuditLogRepository) GetByID(ctx context.Context, id string) (domain.AuditLogEntry, error) {
	var model auditEntryModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AuditLogEntry{}, domain.NotFoundf("audit entry %s not found", id)
		}
		return domain.AuditLogEntry{}, fmt.Errorf("get audit entry: %w", err)
	}
	return toDomain(model)
}

func (r *AuditLogRepository) GetBySequence(ctx context.Context, chainScope string, sequence int64) (domain.AuditLogEntry, error) {
	var model auditEntryModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("chain_scope = ? AND sequence = ?", chainScope, sequence).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AuditLogEntry{}, domain.NotFoundf("no entry at sequence %d in chain %s", sequence, chainScope)
		}
		return domain.AuditLogEntry{}, fmt.Errorf("get audit entry by sequence: %w", err)
	}
	return toDomain(model)
}

func (r *AuditLogRepository) List(ctx context.Context, filter domain.QueryFilter) ([]domain.AuditLogEntry, error) {
	var models []auditEntryModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&auditEntryModel{})
		if filter.TenantID != "" {
			query = query.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.ActorID != "" {
			query = query.Where("actor_id = ?", filter.ActorID)
		}
		if filter.ActionType != "" {
			query = query.Where("action_type = ?", filter.ActionType)
		}
		if filter.ActionScope != "" {
			query = query.Where("action_scope = ?", string(filter.ActionScope))
		}
		if filter.ResourceType != "" {
			query = query.Where("resource_type = ?", filter.ResourceType)
		}
		if filter.ResourceID != "" {
			query = query.Where("resource_id = ?", filter.ResourceID)
		}
		if !filter.Start.IsZero() {
			query = query.Where("timestamp >= ?", stamp(filter.Start))
		}
		if !filter.End.IsZero() {
			query = query.Where("timestamp < ?", stamp(filter.End))
		}
		order := "timestamp DESC, sequence DESC"
		if filter.Ascending {
			order = "timestamp ASC, sequence ASC"
		}
		return query.Order(order).Limit(filter.Limit).Offset(filter.Offset).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return toDomainSlice(models)
}

func (r *AuditLogRepository) ListChain(ctx context.Context, chainScope string, afterSequence int64, limit int) ([]domain.AuditLogEntry, error) {
	var models []auditEntryModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("chain_scope = ? AND sequence > ?", chainScope, afterSequence).
			Order("sequence ASC").
			Limit(limit).
			Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list chain entries: %w", err)
	}
	return toDomainSlice(models)
}

func (r *AuditLogRepository) SearchJustification(ctx context.Context, tenantID, text string, limit int) ([]domain.AuditLogEntry, error) {
	var models []auditEntryModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&auditEntryModel{}).
			Where("instr(lower(justification), lower(?)) > 0", text)
		if tenantID != "" {
			query = query.Where("tenant_id = ?", tenantID)
		}
		return query.Order("timestamp DESC, sequence DESC").Limit(limit).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("search justifications: %w", err)
	}
	return toDomainSlice(models)
}

func (r *AuditLogRepository) Summarize(ctx context.Context, window domain.SummaryWindow) (domain.Summary, error) {
	summary := domain.Summary{
		ByActionType:  map[string]int64{},
		ByActionScope: map[string]int64{},
		ByActor:       map[string]int64{},
		ByDay:         map[string]int64{},
	}

	type bucketCount struct {
		Bucket string `gorm:"column:bucket"`
		N      int64  `gorm:"column:n"`
	}

	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		base := func() *gorm.DB {
			query := tx.Model(&auditEntryModel{})
			if window.TenantID != "" {
				query = query.Where("tenant_id = ?", window.TenantID)
			}
			if !window.Start.IsZero() {
				query = query.Where("timestamp >= ?", stamp(window.Start))
			}
			if !window.End.IsZero() {
				query = query.Where("timestamp < ?", stamp(window.End))
			}
			return query
		}

		if err := base().Count(&summary.TotalEntries).Error; err != nil {
			return fmt.Errorf("count entries: %w", err)
		}

		groupInto := func(expr string, dest map[string]int64) error {
			var rows []bucketCount
			if err := base().Select(expr + " AS bucket, COUNT(*) AS n").Group("bucket").Scan(&rows).Error; err != nil {
				return err
			}
			for _, row := range rows {
				dest[row.Bucket] = row.N
			}
			return nil
		}

		if err := groupInto("action_type", summary.ByActionType); err != nil {
			return fmt.Errorf("group by action type: %w", err)
		}
		if err := groupInto("action_scope", summary.ByActionScope); err != nil {
			return fmt.Errorf("group by action scope: %w", err)
		}
		if err := groupInto("actor_id", summary.ByActor); err != nil {
			return fmt.Errorf("group by actor: %w", err)
		}
		// Day bucket from the fixed-width stored form: YYYY-MM-DD prefix.
		if err := groupInto("substr(timestamp, 1, 10)", summary.ByDay); err != nil {
			return fmt.Errorf("group by day: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Summary{}, err
	}
	return summary, nil
}

// TryUpdate attempts a direct UPDATE against a persisted entry, bypassing
// the append path. On a correctly migrated store the immutability trigger
// aborts it; a nil error therefore means the guard is broken.
func (r *AuditLogRepository) TryUpdate(ctx context.Context, id string) error {
	return r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Exec("UPDATE audit_entries SET justification = 'tamper probe' WHERE id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NotFoundf("audit entry %s not found", id)
		}
		return nil
	})
}

// TryDelete is the DELETE counterpart of TryUpdate.
func (r *AuditLogRepository) TryDelete(ctx context.Context, id string) error {
	return r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Exec("DELETE FROM audit_entries WHERE id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NotFoundf("audit entry %s not found", id)
		}
		return nil
	})
}

func stampNow() time.Time {
	return time.Now().UTC()
}

func stamp(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func toModel(e domain.AuditLogEntry) *auditEntryModel {
	model := auditEntryModel{
		ID:            e.ID,
		ChainScope:    e.ChainScope,
		Sequence:      e.Sequence,
		Timestamp:     stamp(e.Timestamp),
		TenantID:      e.TenantID,
		ActorID:       e.ActorID,
		ActionType:    e.ActionType,
		ActionScope:   string(e.ActionScope),
		ResourceType:  e.ResourceType,
		ResourceID:    e.ResourceID,
		Justification: e.Justification,
		Checksum:      e.Checksum,
	}
	if e.BeforeState != nil {
		s := string(e.BeforeState)
		model.BeforeState = &s
	}
	if e.AfterState != nil {
		s := string(e.AfterState)
		model.AfterState = &s
	}
	if e.PrevChecksum != "" {
		s := e.PrevChecksum
		model.PrevChecksum = &s
	}
	return &model
}

func toDomain(model auditEntryModel) (domain.AuditLogEntry, error) {
	ts, err := time.Parse(storedTimeLayout, model.Timestamp)
	if err != nil {
		return domain.AuditLogEntry{}, fmt.Errorf("parse stored timestamp %q: %w", model.Timestamp, err)
	}
	entry := domain.AuditLogEntry{
		ID:            model.ID,
		ChainScope:    model.ChainScope,
		Sequence:      model.Sequence,
		Timestamp:     ts,
		TenantID:      model.TenantID,
		ActorID:       model.ActorID,
		ActionType:    model.ActionType,
		ActionScope:   domain.ActionScope(model.ActionScope),
		ResourceType:  model.ResourceType,
		ResourceID:    model.ResourceID,
		Justification: model.Justification,
		Checksum:      model.Checksum,
	}
	if model.BeforeState != nil {
		entry.BeforeState = json.RawMessage(*model.BeforeState)
	}
	if model.AfterState != nil {
		entry.AfterState = json.RawMessage(*model.AfterState)
	}
	if model.PrevChecksum != nil {
		entry.PrevChecksum = *model.PrevChecksum
	}
	return entry, nil
}

func toDomainSlice(models []auditEntryModel) ([]domain.AuditLogEntry, error) {
	entries := make([]domain.AuditLogEntry, 0, len(models))
	for _, model := range models {
		entry, err := toDomain(model)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
