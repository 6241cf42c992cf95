package domain

import "time"

// IntegrityReport is the outcome of verifying one entry against its stored
// checksum and its chained predecessor. Integrity failure is data, not an
// exceptional control path.
type IntegrityReport struct {
	EntryID            string   `json:"entry_id"`
	ChainScope         string   `json:"chain_scope"`
	Sequence           int64    `json:"sequence"`
	Valid              bool     `json:"valid"`
	RecomputedChecksum string   `json:"recomputed_checksum"`
	ChainIntact        bool     `json:"chain_intact"`
	Details            []string `json:"details,omitempty"`
}

// ChainReport is the outcome of walking one whole chain in sequence order.
type ChainReport struct {
	ChainScope      string   `json:"chain_scope"`
	Entries         int64    `json:"entries"`
	Intact          bool     `json:"intact"`
	BrokenSequences []int64  `json:"broken_sequences,omitempty"`
	Details         []string `json:"details,omitempty"`
}

// ImmutabilityReport is the outcome of the storage self-test that attempts
// to mutate a persisted entry and expects the attempt to be rejected.
type ImmutabilityReport struct {
	Passed    bool      `json:"passed"`
	ProbeID   string    `json:"probe_id"`
	Details   []string  `json:"details,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// SummaryWindow bounds a summary computation; zero times mean unbounded.
type SummaryWindow struct {
	TenantID string
	Start    time.Time
	End      time.Time
}

func (w SummaryWindow) Validate() error {
	if !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start) {
		return Validationf("end_time must not precede start_time")
	}
	return nil
}

// Summary holds count rollups over entries. It contains nothing that is not
// derivable from the entries themselves.
type Summary struct {
	TotalEntries  int64            `json:"total_entries"`
	ByActionType  map[string]int64 `json:"by_action_type"`
	ByActionScope map[string]int64 `json:"by_action_scope"`
	ByActor       map[string]int64 `json:"by_actor"`
	ByDay         map[string]int64 `json:"by_day"`
}
