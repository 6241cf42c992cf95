package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/smartattend/auditlog/internal/core/domain"
)

const statusSchema = `{
	"type": "object",
	"required": ["status"],
	"properties": {"status": {"type": "string"}}
}`

func TestSchemaUpsertValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewSnapshotSchemaService(&stubSchemaRepo{})

	if _, err := svc.Upsert(ctx, "tenant-a", "attendance_record", json.RawMessage(statusSchema)); err != nil {
		t.Fatalf("upsert valid schema: %v", err)
	}

	_, err := svc.Upsert(ctx, "tenant-a", "", json.RawMessage(statusSchema))
	if domain.KindOf(err) != domain.KindValidation {
		t.Errorf("missing resource type: got %v, want validation", err)
	}

	_, err = svc.Upsert(ctx, "tenant-a", "attendance_record", json.RawMessage(`{broken`))
	if domain.KindOf(err) != domain.KindValidation {
		t.Errorf("malformed json: got %v, want validation", err)
	}

	_, err = svc.Upsert(ctx, "tenant-a", "attendance_record", json.RawMessage(`{"type": "no-such-type"}`))
	if domain.KindOf(err) != domain.KindValidation {
		t.Errorf("uncompilable schema: got %v, want validation", err)
	}
}

func TestSchemaValidateSnapshot(t *testing.T) {
	ctx := context.Background()
	svc := NewSnapshotSchemaService(&stubSchemaRepo{})
	if _, err := svc.Upsert(ctx, "tenant-a", "attendance_record", json.RawMessage(statusSchema)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := svc.Validate(ctx, "tenant-a", "attendance_record", json.RawMessage(`{"status":"present"}`)); err != nil {
		t.Fatalf("conforming snapshot rejected: %v", err)
	}

	err := svc.Validate(ctx, "tenant-a", "attendance_record", json.RawMessage(`{"status":42}`))
	var violation *domain.ErrSchemaViolation
	if !errors.As(err, &violation) {
		t.Fatalf("got %v, want *ErrSchemaViolation", err)
	}
	if len(violation.Errors) == 0 {
		t.Error("violation carries no details")
	}

	// No schema registered for the type: everything passes.
	if err := svc.Validate(ctx, "tenant-a", "grade", json.RawMessage(`{"anything":"goes"}`)); err != nil {
		t.Fatalf("unschema'd type rejected: %v", err)
	}
}

func TestSchemaUpsertInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc := NewSnapshotSchemaService(&stubSchemaRepo{})
	if _, err := svc.Upsert(ctx, "tenant-a", "attendance_record", json.RawMessage(statusSchema)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Prime the cache.
	if err := svc.Validate(ctx, "tenant-a", "attendance_record", json.RawMessage(`{"status":"present"}`)); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	// Replace with a schema that requires a different field.
	if _, err := svc.Upsert(ctx, "tenant-a", "attendance_record", json.RawMessage(`{
		"type": "object",
		"required": ["reason"]
	}`)); err != nil {
		t.Fatalf("replace schema: %v", err)
	}

	if err := svc.Validate(ctx, "tenant-a", "attendance_record", json.RawMessage(`{"status":"present"}`)); err == nil {
		t.Fatal("stale cached schema still in effect after upsert")
	}
}

func TestSchemaDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewSnapshotSchemaService(&stubSchemaRepo{})
	if _, err := svc.Upsert(ctx, "tenant-a", "attendance_record", json.RawMessage(statusSchema)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	deleted, err := svc.Delete(ctx, "tenant-a", "attendance_record")
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v", deleted, err)
	}
	deleted, err = svc.Delete(ctx, "tenant-a", "attendance_record")
	if err != nil || deleted {
		t.Fatalf("second delete = %v, %v, want false", deleted, err)
	}

	// Guard dropped along with the schema.
	if err := svc.Validate(ctx, "tenant-a", "attendance_record", json.RawMessage(`{"status":42}`)); err != nil {
		t.Fatalf("snapshot rejected after schema deletion: %v", err)
	}
}
