package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/smartattend/auditlog/internal/core/domain"
)

// stubAuditRepo is an in-memory stand-in for the sqlite repository. It keeps
// just enough behavior for the services under test: appended entries get a
// dense sequence and a real chained checksum.
type stubAuditRepo struct {
	entries      []domain.AuditLogEntry
	tailSeq      int64
	tailChecksum string

	lastFilter domain.QueryFilter

	lastSearchTenant string
	lastSearchText   string
	lastSearchLimit  int
	searchResult     []domain.AuditLogEntry

	lastWindow domain.SummaryWindow
	summary    domain.Summary

	appendErr error
	updateErr error
	deleteErr error
}

func (r *stubAuditRepo) Append(_ context.Context, candidate domain.EntryCandidate) (domain.AuditLogEntry, error) {
	if r.appendErr != nil {
		return domain.AuditLogEntry{}, r.appendErr
	}
	prev := r.tailChecksum
	r.tailSeq++
	entry := domain.AuditLogEntry{
		ID:            fmt.Sprintf("entry-%d", r.tailSeq),
		ChainScope:    domain.GlobalChainScope,
		Sequence:      r.tailSeq,
		Timestamp:     time.Now().UTC(),
		TenantID:      candidate.TenantID,
		ActorID:       candidate.ActorID,
		ActionType:    candidate.ActionType,
		ActionScope:   candidate.ActionScope,
		ResourceType:  candidate.ResourceType,
		ResourceID:    candidate.ResourceID,
		BeforeState:   candidate.BeforeState,
		AfterState:    candidate.AfterState,
		Justification: candidate.Justification,
		PrevChecksum:  prev,
	}
	entry.Checksum = domain.ComputeChecksum(entry, prev)
	r.tailChecksum = entry.Checksum
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *stubAuditRepo) GetByID(_ context.Context, id string) (domain.AuditLogEntry, error) {
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.AuditLogEntry{}, domain.NotFoundf("audit entry %s not found", id)
}

func (r *stubAuditRepo) GetBySequence(_ context.Context, chainScope string, sequence int64) (domain.AuditLogEntry, error) {
	for _, e := range r.entries {
		if e.ChainScope == chainScope && e.Sequence == sequence {
			return e, nil
		}
	}
	return domain.AuditLogEntry{}, domain.NotFoundf("no entry at sequence %d in chain %s", sequence, chainScope)
}

func (r *stubAuditRepo) List(_ context.Context, filter domain.QueryFilter) ([]domain.AuditLogEntry, error) {
	r.lastFilter = filter
	var out []domain.AuditLogEntry
	for _, e := range r.entries {
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.ResourceType != "" && e.ResourceType != filter.ResourceType {
			continue
		}
		if filter.ResourceID != "" && e.ResourceID != filter.ResourceID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.Ascending {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].Sequence > out[j].Sequence
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			out = nil
		} else {
			out = out[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *stubAuditRepo) ListChain(_ context.Context, chainScope string, afterSequence int64, limit int) ([]domain.AuditLogEntry, error) {
	var out []domain.AuditLogEntry
	for _, e := range r.entries {
		if e.ChainScope == chainScope && e.Sequence > afterSequence {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubAuditRepo) SearchJustification(_ context.Context, tenantID, text string, limit int) ([]domain.AuditLogEntry, error) {
	r.lastSearchTenant = tenantID
	r.lastSearchText = text
	r.lastSearchLimit = limit
	return r.searchResult, nil
}

func (r *stubAuditRepo) Summarize(_ context.Context, window domain.SummaryWindow) (domain.Summary, error) {
	r.lastWindow = window
	return r.summary, nil
}

func (r *stubAuditRepo) TryUpdate(_ context.Context, id string) error {
	if _, err := r.GetByID(context.Background(), id); err != nil {
		return err
	}
	return r.updateErr
}

func (r *stubAuditRepo) TryDelete(_ context.Context, id string) error {
	if _, err := r.GetByID(context.Background(), id); err != nil {
		return err
	}
	return r.deleteErr
}

// seedChain appends n valid chained entries and returns them.
func (r *stubAuditRepo) seedChain(n int) []domain.AuditLogEntry {
	for i := 0; i < n; i++ {
		_, _ = r.Append(context.Background(), domain.EntryCandidate{
			TenantID:      "tenant-a",
			ActorID:       "user-7",
			ActionType:    "ATTENDANCE_CORRECTED",
			ActionScope:   domain.ActionScopeTenant,
			ResourceType:  "attendance_record",
			ResourceID:    "rec-42",
			Justification: "routine correction",
		})
	}
	return r.entries
}

type stubAlertOutbox struct {
	enqueued  []domain.AlertEnvelope
	pending   []domain.AlertEvent
	delivered []int64
	failed    []int64
	dead      []int64

	lastAttempts int
	lastNextAt   string
	lastErrMsg   string

	enqueueErr error
}

func (o *stubAlertOutbox) Enqueue(_ context.Context, envelope domain.AlertEnvelope) error {
	if o.enqueueErr != nil {
		return o.enqueueErr
	}
	o.enqueued = append(o.enqueued, envelope)
	return nil
}

func (o *stubAlertOutbox) FetchPending(_ context.Context, limit int) ([]domain.AlertEvent, error) {
	if limit > 0 && len(o.pending) > limit {
		return o.pending[:limit], nil
	}
	return o.pending, nil
}

func (o *stubAlertOutbox) MarkDelivered(_ context.Context, id int64) error {
	o.delivered = append(o.delivered, id)
	return nil
}

func (o *stubAlertOutbox) MarkFailed(_ context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error {
	o.failed = append(o.failed, id)
	o.lastAttempts = attempts
	o.lastNextAt = nextAttemptAt
	o.lastErrMsg = errMsg
	return nil
}

func (o *stubAlertOutbox) MarkDead(_ context.Context, id int64, attempts int, errMsg string) error {
	o.dead = append(o.dead, id)
	o.lastAttempts = attempts
	o.lastErrMsg = errMsg
	return nil
}

type stubPublisher struct {
	published []domain.AlertEnvelope
	err       error
}

func (p *stubPublisher) Publish(_ context.Context, envelope domain.AlertEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, envelope)
	return nil
}

type stubKeyRepo struct {
	keys map[string]domain.APIKey

	lastHash string
}

func (r *stubKeyRepo) FindByTokenHash(_ context.Context, tokenHash string) (domain.APIKey, error) {
	r.lastHash = tokenHash
	key, ok := r.keys[tokenHash]
	if !ok {
		return domain.APIKey{}, domain.NotFoundf("api key not found")
	}
	return key, nil
}

func (r *stubKeyRepo) Upsert(_ context.Context, key domain.APIKey) error {
	if r.keys == nil {
		r.keys = map[string]domain.APIKey{}
	}
	r.keys[key.TokenHash] = key
	return nil
}

type stubSchemaRepo struct {
	schemas map[string]domain.SnapshotSchema
}

func schemaKey(tenantID, resourceType string) string {
	return tenantID + "/" + resourceType
}

func (r *stubSchemaRepo) Upsert(_ context.Context, schema domain.SnapshotSchema) (domain.SnapshotSchema, error) {
	if r.schemas == nil {
		r.schemas = map[string]domain.SnapshotSchema{}
	}
	r.schemas[schemaKey(schema.TenantID, schema.ResourceType)] = schema
	return schema, nil
}

func (r *stubSchemaRepo) Get(_ context.Context, tenantID, resourceType string) (domain.SnapshotSchema, error) {
	schema, ok := r.schemas[schemaKey(tenantID, resourceType)]
	if !ok {
		return domain.SnapshotSchema{}, domain.NotFoundf("no schema for %s", resourceType)
	}
	return schema, nil
}

func (r *stubSchemaRepo) Delete(_ context.Context, tenantID, resourceType string) (bool, error) {
	key := schemaKey(tenantID, resourceType)
	if _, ok := r.schemas[key]; !ok {
		return false, nil
	}
	delete(r.schemas, key)
	return true, nil
}
