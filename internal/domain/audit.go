package domain

import "time"

// Audit activities.
const (
	ActivityOpenAccount  = "open_account"
	ActivityChangeStatus = "change_status"
	ActivityDeposit      = "deposit"
	ActivityWithdrawal   = "withdrawal"
	ActivityTransfer     = "transfer"
)

// AuditRecord logs who performed which operation and when.
type AuditRecord struct {
	ID        int64     `json:"id"`
	Actor     string    `json:"actor"`
	Activity  string    `json:"activity"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAuditParams is the input data to append an audit record.
type CreateAuditParams struct {
	Actor     string
	Activity  string
	Detail    string
	CreatedAt time.Time
}
