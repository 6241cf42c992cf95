package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrSchemaViolation is returned when a state snapshot does not conform to
// the resource type's JSON schema. The Errors field carries machine-readable
// details.
type ErrSchemaViolation struct {
	Errors []string
}

func (e *ErrSchemaViolation) Error() string {
	return fmt.Sprintf("snapshot schema validation failed: %s", strings.Join(e.Errors, "; "))
}

// SnapshotSchema holds the JSON Schema document configured for the
// before/after state snapshots of one resource type. Schemas are optional;
// resource types without one accept any valid JSON snapshot.
type SnapshotSchema struct {
	TenantID     string
	ResourceType string
	Schema       json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
