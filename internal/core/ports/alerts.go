package ports

import (
	"context"

	"github.com/smartattend/auditlog/internal/core/domain"
)

// AlertOutboxRepository persists alerts for asynchronous delivery.
type AlertOutboxRepository interface {
	Enqueue(ctx context.Context, envelope domain.AlertEnvelope) error
	FetchPending(ctx context.Context, limit int) ([]domain.AlertEvent, error)
	MarkDelivered(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}

// AlertPublisher delivers one alert to a sink (log, webhook, pager).
type AlertPublisher interface {
	Publish(ctx context.Context, envelope domain.AlertEnvelope) error
}
