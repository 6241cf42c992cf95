package events

import (
	"context"
	"log"

	"github.com/smartattend/auditlog/internal/core/domain"
)

// LogPublisher writes alerts to the process log. It is the default sink
// when no webhook is configured, so a broken chain is at least visible in
// the logs.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, alert domain.AlertEnvelope) error {
	log.Printf("audit alert kind=%s severity=%s event_id=%s tenant=%s payload=%s",
		alert.Kind, alert.Severity, alert.EventID, alert.TenantID, string(alert.Payload))
	return nil
}
