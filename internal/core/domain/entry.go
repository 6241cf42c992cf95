package domain

import (
	"encoding/json"
	"time"
)

// ActionScope determines the visibility rules attached to an entry.
type ActionScope string

const (
	ActionScopeGlobal ActionScope = "GLOBAL"
	ActionScopeTenant ActionScope = "TENANT"
	ActionScopeUser   ActionScope = "USER"
)

func (s ActionScope) Valid() bool {
	switch s {
	case ActionScopeGlobal, ActionScopeTenant, ActionScopeUser:
		return true
	}
	return false
}

// AuditLogEntry is the sole persisted audit entity. Once written it never
// changes: the only legal storage operation against it is append.
//
// BeforeState and AfterState are opaque snapshots; a nil slice means the
// snapshot is absent, which is distinct from an empty document. PrevChecksum
// is empty only for the first entry of a chain.
type AuditLogEntry struct {
	ID            string
	ChainScope    string
	Sequence      int64
	Timestamp     time.Time
	TenantID      string
	ActorID       string
	ActionType    string
	ActionScope   ActionScope
	ResourceType  string
	ResourceID    string
	BeforeState   json.RawMessage
	AfterState    json.RawMessage
	Justification string
	PrevChecksum  string
	Checksum      string
}

// EntryCandidate carries the caller-supplied fields of an append. ID,
// sequence, timestamp and both checksums are system-assigned and therefore
// absent here.
type EntryCandidate struct {
	TenantID      string
	ActorID       string
	ActionType    string
	ActionScope   ActionScope
	ResourceType  string
	ResourceID    string
	BeforeState   json.RawMessage
	AfterState    json.RawMessage
	Justification string
}

func (c EntryCandidate) Validate() error {
	if c.ActorID == "" {
		return Validationf("actor_id is required")
	}
	if c.ActionType == "" {
		return Validationf("action_type is required")
	}
	if !c.ActionScope.Valid() {
		return Validationf("action_scope must be one of GLOBAL, TENANT, USER")
	}
	if c.ResourceType == "" {
		return Validationf("resource_type is required")
	}
	if c.ResourceID == "" {
		return Validationf("resource_id is required")
	}
	if c.BeforeState != nil && !json.Valid(c.BeforeState) {
		return Validationf("before_state must be valid json")
	}
	if c.AfterState != nil && !json.Valid(c.AfterState) {
		return Validationf("after_state must be valid json")
	}
	return nil
}
