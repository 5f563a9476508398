package domain

import "time"

// EntryCommitted is published after a ledger entry has been durably committed.
type EntryCommitted struct {
	EventID    string      `json:"event_id"`
	Actor      string      `json:"actor"`
	Entry      LedgerEntry `json:"entry"`
	OccurredAt time.Time   `json:"occurred_at"`
}
