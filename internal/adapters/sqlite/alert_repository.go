package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smartattend/auditlog/internal/adapters/sqlite/gormsqlite"
	"github.com/smartattend/auditlog/internal/core/domain"
)

type alertEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	TenantID      string     `gorm:"column:tenant_id;not null"`
	Kind          string     `gorm:"column:kind;not null"`
	Severity      string     `gorm:"column:severity;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DeliveredAt   *time.Time `gorm:"column:delivered_at"`
}

func (alertEventModel) TableName() string {
	return "alert_events"
}

type AlertOutboxRepository struct {
	db *gormsqlite.DB
}

func NewAlertOutboxRepository(db *gormsqlite.DB) *AlertOutboxRepository {
	return &AlertOutboxRepository{db: db}
}

func (r *AlertOutboxRepository) Enqueue(ctx context.Context, envelope domain.AlertEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}
	model := alertEventModel{
		EventID:       envelope.EventID,
		TenantID:      envelope.TenantID,
		Kind:          envelope.Kind,
		Severity:      envelope.Severity,
		PayloadJSON:   string(payload),
		Status:        "pending",
		Attempts:      0,
		NextAttemptAt: envelope.OccurredAt,
		LastError:     "",
		CreatedAt:     envelope.OccurredAt,
	}
	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("enqueue alert: %w", err)
	}
	return nil
}

func (r *AlertOutboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []alertEventModel
	now := time.Now().UTC()
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("status = ? AND next_attempt_at <= ?", "pending", now).
			Order("id ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending alerts: %w", err)
	}

	result := make([]domain.AlertEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.AlertEvent{
			ID:            row.ID,
			EventID:       row.EventID,
			TenantID:      row.TenantID,
			Kind:          row.Kind,
			Severity:      row.Severity,
			PayloadJSON:   json.RawMessage(row.PayloadJSON),
			Status:        row.Status,
			Attempts:      row.Attempts,
			NextAttemptAt: row.NextAttemptAt,
			LastError:     row.LastError,
			CreatedAt:     row.CreatedAt,
			DeliveredAt:   row.DeliveredAt,
		})
	}
	return result, nil
}

func (r *AlertOutboxRepository) MarkDelivered(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&alertEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": "delivered", "delivered_at": &now, "last_error": ""}).Error
	})
	if err != nil {
		return fmt.Errorf("mark alert delivered: %w", err)
	}
	return nil
}

func (r *AlertOutboxRepository) MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error {
	parsed, err := time.Parse(time.RFC3339Nano, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("parse next attempt: %w", err)
	}
	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&alertEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"attempts": attempts, "next_attempt_at": parsed, "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark alert failed: %w", err)
	}
	return nil
}

func (r *AlertOutboxRepository) MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error {
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&alertEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": "dead", "attempts": attempts, "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark alert dead: %w", err)
	}
	return nil
}
