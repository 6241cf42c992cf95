package ports

import (
	"context"

	"github.com/smartattend/auditlog/internal/core/domain"
)

type SnapshotSchemaRepository interface {
	Upsert(ctx context.Context, schema domain.SnapshotSchema) (domain.SnapshotSchema, error)
	Get(ctx context.Context, tenantID, resourceType string) (domain.SnapshotSchema, error)
	Delete(ctx context.Context, tenantID, resourceType string) (bool, error)
}
