package domain

import (
	"encoding/hex"
	"testing"
)

func TestComputeChecksumShape(t *testing.T) {
	sum := ComputeChecksum(sampleEntry(), "")
	if len(sum) != 64 {
		t.Fatalf("checksum length = %d, want 64 hex chars", len(sum))
	}
	if _, err := hex.DecodeString(sum); err != nil {
		t.Fatalf("checksum is not valid hex: %v", err)
	}
}

func TestComputeChecksumDependsOnPredecessor(t *testing.T) {
	e := sampleEntry()
	first := ComputeChecksum(e, "")
	linked := ComputeChecksum(e, first)
	if first == linked {
		t.Fatal("identical fields with different predecessors must hash differently")
	}
}

func TestVerifyEntryValid(t *testing.T) {
	first := sampleEntry()
	first.Checksum = ComputeChecksum(first, "")

	second := sampleEntry()
	second.ID = "e-2"
	second.Sequence = 2
	second.PrevChecksum = first.Checksum
	second.Checksum = ComputeChecksum(second, first.Checksum)

	verdict := VerifyEntry(second, first.Checksum)
	if !verdict.Valid {
		t.Errorf("untampered entry reported invalid, recomputed %s", verdict.Recomputed)
	}
	if !verdict.PrevMatch {
		t.Error("prev_checksum matches the predecessor but PrevMatch is false")
	}
}

func TestVerifyEntryDetectsTamperedField(t *testing.T) {
	e := sampleEntry()
	e.Checksum = ComputeChecksum(e, "")

	e.Justification = "rewritten after the fact"

	verdict := VerifyEntry(e, "")
	if verdict.Valid {
		t.Fatal("tampered entry reported valid")
	}
	if verdict.Recomputed == e.Checksum {
		t.Fatal("recomputed checksum should differ from the stored one")
	}
}

func TestVerifyEntryDetectsBrokenLink(t *testing.T) {
	e := sampleEntry()
	e.PrevChecksum = "deadbeef"
	e.Checksum = ComputeChecksum(e, e.PrevChecksum)

	verdict := VerifyEntry(e, "cafebabe")
	if !verdict.Valid {
		t.Error("entry is self-consistent, Valid should be true")
	}
	if verdict.PrevMatch {
		t.Error("stored prev_checksum disagrees with the predecessor, PrevMatch should be false")
	}
}

func TestChainScopingScopeFor(t *testing.T) {
	cases := []struct {
		scoping  ChainScoping
		tenantID string
		want     string
	}{
		{ChainGlobal, "", GlobalChainScope},
		{ChainGlobal, "tenant-a", GlobalChainScope},
		{ChainPerTenant, "", GlobalChainScope},
		{ChainPerTenant, "tenant-a", "tenant:tenant-a"},
	}
	for _, tc := range cases {
		if got := tc.scoping.ScopeFor(tc.tenantID); got != tc.want {
			t.Errorf("ScopeFor(%q) with scoping %d = %q, want %q", tc.tenantID, tc.scoping, got, tc.want)
		}
	}
}
