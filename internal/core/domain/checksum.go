package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// ChainScoping declares which grouping sequence numbers and checksum linkage
// are maintained within. The choice must be fixed per deployment: mixing
// scopes within one store would make "previous entry" ambiguous.
type ChainScoping int

const (
	// ChainGlobal keeps a single chain across all tenants. Any deletion
	// anywhere breaks verification for every later entry.
	ChainGlobal ChainScoping = iota
	// ChainPerTenant keeps one chain per tenant, allowing independent
	// verification (and, on sharded storage, parallel appends) per tenant.
	ChainPerTenant
)

const GlobalChainScope = "global"

// ScopeFor maps a tenant to its chain scope key. Entries without a tenant
// always land on the global chain.
func (s ChainScoping) ScopeFor(tenantID string) string {
	if s == ChainPerTenant && tenantID != "" {
		return "tenant:" + tenantID
	}
	return GlobalChainScope
}

// ComputeChecksum digests the canonical encoding of an entry's fields
// followed by the predecessor's checksum. Pure function, no I/O.
func ComputeChecksum(e AuditLogEntry, prevChecksum string) string {
	h := sha256.New()
	h.Write(CanonicalBytes(e))
	h.Write([]byte(prevChecksum))
	return hex.EncodeToString(h.Sum(nil))
}

// ChecksumVerdict is the structured result of verifying one entry. A
// mismatch is a reportable fact, not a program error.
type ChecksumVerdict struct {
	Valid      bool
	Recomputed string
	PrevMatch  bool
}

// VerifyEntry recomputes the checksum over the stored fields and the stored
// prev_checksum, and separately checks that the stored prev_checksum equals
// the expected predecessor checksum.
func VerifyEntry(e AuditLogEntry, expectedPrev string) ChecksumVerdict {
	recomputed := ComputeChecksum(e, e.PrevChecksum)
	return ChecksumVerdict{
		Valid:      recomputed == e.Checksum,
		Recomputed: recomputed,
		PrevMatch:  e.PrevChecksum == expectedPrev,
	}
}
