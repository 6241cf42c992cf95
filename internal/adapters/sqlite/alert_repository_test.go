package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/smartattend/auditlog/internal/core/domain"
)

func testEnvelope(eventID string) domain.AlertEnvelope {
	return domain.AlertEnvelope{
		EventID:    eventID,
		Kind:       domain.AlertKindChainBroken,
		Severity:   "critical",
		TenantID:   "tenant-a",
		OccurredAt: time.Now().UTC().Add(-time.Minute),
		Payload:    json.RawMessage(`{"chain_scope":"global","intact":false}`),
	}
}

func TestAlertOutboxEnqueueFetchDeliver(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertOutboxRepository(newTestDB(t))

	if err := repo.Enqueue(ctx, testEnvelope("evt-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := repo.Enqueue(ctx, testEnvelope("evt-2")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].EventID != "evt-1" {
		t.Errorf("first pending = %s, want evt-1 (FIFO)", pending[0].EventID)
	}

	var envelope domain.AlertEnvelope
	if err := json.Unmarshal(pending[0].PayloadJSON, &envelope); err != nil {
		t.Fatalf("payload does not round-trip: %v", err)
	}
	if envelope.Kind != domain.AlertKindChainBroken {
		t.Errorf("payload kind = %q", envelope.Kind)
	}

	if err := repo.MarkDelivered(ctx, pending[0].ID); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	remaining, err := repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch after delivery: %v", err)
	}
	if len(remaining) != 1 || remaining[0].EventID != "evt-2" {
		t.Fatalf("remaining = %+v, want only evt-2", remaining)
	}
}

func TestAlertOutboxRetryScheduling(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertOutboxRepository(newTestDB(t))

	if err := repo.Enqueue(ctx, testEnvelope("evt-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pending, err := repo.FetchPending(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("fetch: %v, %d rows", err, len(pending))
	}

	// Push the next attempt into the future; the alert must drop out of the
	// pending set until then.
	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339Nano)
	if err := repo.MarkFailed(ctx, pending[0].ID, 1, future, "sink unreachable"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	backedOff, err := repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch after failure: %v", err)
	}
	if len(backedOff) != 0 {
		t.Fatalf("alert still pending while backed off: %+v", backedOff)
	}
}

func TestAlertOutboxDeadLetter(t *testing.T) {
	ctx := context.Background()
	repo := NewAlertOutboxRepository(newTestDB(t))

	if err := repo.Enqueue(ctx, testEnvelope("evt-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	pending, err := repo.FetchPending(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("fetch: %v, %d rows", err, len(pending))
	}

	if err := repo.MarkDead(ctx, pending[0].ID, 5, "gave up"); err != nil {
		t.Fatalf("mark dead: %v", err)
	}
	after, err := repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch after dead-letter: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("dead alert still pending: %+v", after)
	}
}
