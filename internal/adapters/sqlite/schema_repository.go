package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smartattend/auditlog/internal/adapters/sqlite/gormsqlite"
	"github.com/smartattend/auditlog/internal/core/domain"
)

type snapshotSchemaModel struct {
	TenantID     string    `gorm:"column:tenant_id;primaryKey"`
	ResourceType string    `gorm:"column:resource_type;primaryKey"`
	SchemaJSON   string    `gorm:"column:schema_json;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (snapshotSchemaModel) TableName() string {
	return "snapshot_schemas"
}

type SnapshotSchemaRepository struct {
	db *gormsqlite.DB
}

func NewSnapshotSchemaRepository(db *gormsqlite.DB) *SnapshotSchemaRepository {
	return &SnapshotSchemaRepository{db: db}
}

func (r *SnapshotSchemaRepository) Upsert(ctx context.Context, schema domain.SnapshotSchema) (domain.SnapshotSchema, error) {
	now := time.Now().UTC()
	model := snapshotSchemaModel{
		TenantID:     schema.TenantID,
		ResourceType: schema.ResourceType,
		SchemaJSON:   string(schema.Schema),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "resource_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"schema_json", "updated_at"}),
		}).Create(&model).Error
	})
	if err != nil {
		return domain.SnapshotSchema{}, fmt.Errorf("upsert snapshot schema: %w", err)
	}

	return r.Get(ctx, schema.TenantID, schema.ResourceType)
}

func (r *SnapshotSchemaRepository) Get(ctx context.Context, tenantID, resourceType string) (domain.SnapshotSchema, error) {
	var model snapshotSchemaModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("tenant_id = ? AND resource_type = ?", tenantID, resourceType).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SnapshotSchema{}, domain.NotFoundf("no snapshot schema for resource type %s", resourceType)
		}
		return domain.SnapshotSchema{}, fmt.Errorf("get snapshot schema: %w", err)
	}

	return domain.SnapshotSchema{
		TenantID:     model.TenantID,
		ResourceType: model.ResourceType,
		Schema:       json.RawMessage(model.SchemaJSON),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}, nil
}

func (r *SnapshotSchemaRepository) Delete(ctx context.Context, tenantID, resourceType string) (bool, error) {
	deleted := false
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("tenant_id = ? AND resource_type = ?", tenantID, resourceType).Delete(&snapshotSchemaModel{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete snapshot schema: %w", err)
	}
	return deleted, nil
}
