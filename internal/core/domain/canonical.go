package domain

import (
	"bytes"
	"strconv"
	"time"
)

// Canonical encoding of an entry's checksummed fields.
//
// Field names are emitted in a fixed sorted order, each as name '=' value,
// joined by the unit separator 0x1F. Absent optional fields are encoded with
// the sentinel byte 0x00 so that "no snapshot" and "empty snapshot" hash
// differently. Timestamps use RFC3339Nano in UTC, sequences base-10. Two
// logically equal entries always canonicalize to byte-identical output,
// which is what makes checksums reproducible across processes.

const (
	canonicalSep      = byte(0x1F)
	canonicalAbsent   = byte(0x00)
	canonicalTimeForm = time.RFC3339Nano
)

// CanonicalBytes returns the checksum input for an entry, excluding the
// checksum and prev_checksum fields (the predecessor checksum is appended
// separately by ComputeChecksum).
func CanonicalBytes(e AuditLogEntry) []byte {
	var buf bytes.Buffer

	field := func(name string, value []byte, present bool) {
		if buf.Len() > 0 {
			buf.WriteByte(canonicalSep)
		}
		buf.WriteString(name)
		buf.WriteByte('=')
		if !present {
			buf.WriteByte(canonicalAbsent)
			return
		}
		buf.Write(value)
	}
	str := func(name, value string) {
		field(name, []byte(value), true)
	}

	// Sorted by field name; keep in sync with the AuditLogEntry struct.
	str("action_scope", string(e.ActionScope))
	str("action_type", e.ActionType)
	str("actor_id", e.ActorID)
	field("after_state", e.AfterState, e.AfterState != nil)
	field("before_state", e.BeforeState, e.BeforeState != nil)
	str("chain_scope", e.ChainScope)
	str("id", e.ID)
	str("justification", e.Justification)
	str("resource_id", e.ResourceID)
	str("resource_type", e.ResourceType)
	str("sequence", strconv.FormatInt(e.Sequence, 10))
	str("tenant_id", e.TenantID)
	str("timestamp", e.Timestamp.UTC().Format(canonicalTimeForm))

	return buf.Bytes()
}
