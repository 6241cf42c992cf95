package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/smartattend/auditlog/internal/core/domain"
	"github.com/smartattend/auditlog/internal/core/ports"
)

// SnapshotSchemaService manages per-resource-type JSON schemas and validates
// before/after state snapshots against them. Resource types without a
// registered schema accept any valid JSON snapshot.
type SnapshotSchemaService struct {
	repo  ports.SnapshotSchemaRepository
	cache sync.Map // key: "tenantID/resourceType" → *santhosh.Schema
}

func NewSnapshotSchemaService(repo ports.SnapshotSchemaRepository) *SnapshotSchemaService {
	return &SnapshotSchemaService{repo: repo}
}

func (s *SnapshotSchemaService) Upsert(ctx context.Context, tenantID, resourceType string, schemaJSON json.RawMessage) (domain.SnapshotSchema, error) {
	if resourceType == "" {
		return domain.SnapshotSchema{}, domain.Validationf("resource_type is required")
	}
	if !json.Valid(schemaJSON) {
		return domain.SnapshotSchema{}, domain.Validationf("schema must be valid json")
	}
	if err := compilable(schemaJSON); err != nil {
		return domain.SnapshotSchema{}, domain.Validationf("invalid json schema: %v", err)
	}
	s.cache.Delete(tenantID + "/" + resourceType)
	return s.repo.Upsert(ctx, domain.SnapshotSchema{
		TenantID:     tenantID,
		ResourceType: resourceType,
		Schema:       schemaJSON,
	})
}

func (s *SnapshotSchemaService) Get(ctx context.Context, tenantID, resourceType string) (domain.SnapshotSchema, error) {
	if resourceType == "" {
		return domain.SnapshotSchema{}, domain.Validationf("resource_type is required")
	}
	return s.repo.Get(ctx, tenantID, resourceType)
}

func (s *SnapshotSchemaService) Delete(ctx context.Context, tenantID, resourceType string) (bool, error) {
	if resourceType == "" {
		return false, domain.Validationf("resource_type is required")
	}
	s.cache.Delete(tenantID + "/" + resourceType)
	return s.repo.Delete(ctx, tenantID, resourceType)
}

// Validate checks a snapshot against the resource type's schema. No schema
// means the snapshot passes. Returns *domain.ErrSchemaViolation on failure.
func (s *SnapshotSchemaService) Validate(ctx context.Context, tenantID, resourceType string, snapshot json.RawMessage) error {
	cacheKey := tenantID + "/" + resourceType

	if cached, ok := s.cache.Load(cacheKey); ok {
		return runValidation(cached.(*santhosh.Schema), snapshot)
	}

	stored, err := s.repo.Get(ctx, tenantID, resourceType)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil
		}
		return fmt.Errorf("load snapshot schema: %w", err)
	}

	compiled, err := compileSchema(stored.Schema)
	if err != nil {
		return fmt.Errorf("compile snapshot schema: %w", err)
	}
	s.cache.Store(cacheKey, compiled)
	return runValidation(compiled, snapshot)
}

func compileSchema(schemaJSON json.RawMessage) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func runValidation(sch *santhosh.Schema, snapshot json.RawMessage) error {
	var v any
	if err := json.Unmarshal(snapshot, &v); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		if ve, ok := err.(*santhosh.ValidationError); ok {
			return &domain.ErrSchemaViolation{Errors: collectValidationErrors(ve)}
		}
		return &domain.ErrSchemaViolation{Errors: []string{err.Error()}}
	}
	return nil
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}

func compilable(schemaJSON json.RawMessage) error {
	_, err := compileSchema(schemaJSON)
	return err
}
