package domain

import (
	"encoding/json"
	"time"
)

// Alert kinds raised by the integrity and immutability checks.
const (
	AlertKindIntegrityViolation  = "audit.integrity_violation"
	AlertKindChainBroken         = "audit.chain_broken"
	AlertKindImmutabilityFailure = "audit.immutability_failure"
)

// AlertEnvelope is the payload delivered to alert sinks. Alerts are the one
// outward side effect of the audit subsystem, and they fire only when a
// verification discovers that the log itself can no longer be trusted.
type AlertEnvelope struct {
	EventID    string          `json:"event_id"`
	Kind       string          `json:"kind"`
	Severity   string          `json:"severity"`
	TenantID   string          `json:"tenant_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// AlertEvent is a persisted, to-be-delivered alert. Delivery is asynchronous
// with retry and dead-lettering; the verification path never blocks on a
// sink.
type AlertEvent struct {
	ID            int64
	EventID       string
	TenantID      string
	Kind          string
	Severity      string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DeliveredAt   *time.Time
}
