package domain

import "time"

// BillStatus tracks whether a bill has been settled.
type BillStatus string

const (
	BillUnpaid BillStatus = "UNPAID"
	BillPaid   BillStatus = "PAID"
)

// Bill is a provider-issued invoice. ExternalID is the provider's own
// bill id, unique per account — reconciliation upserts on
// (AccountID, ExternalID).
type Bill struct {
	ID          int64      `json:"id"`
	AccountID   int64      `json:"account_id"`
	ExternalID  string     `json:"external_id"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	DueDate     time.Time  `json:"due_date"`
	Status      BillStatus `json:"status"`
	FetchedAt   time.Time  `json:"fetched_at"`
	PaidAt      time.Time  `json:"paid_at,omitempty"`
}

// Payment records money movement against a bill. Amount is in major
// currency units. Rows are append-only once written by the core.
type Payment struct {
	ID              int64     `json:"id"`
	AccountID       int64     `json:"account_id"`
	PaymentMethodID int64     `json:"payment_method_id,omitempty"`
	BillID          int64     `json:"bill_id,omitempty"`
	Amount          float64   `json:"amount"`
	PaidAt          time.Time `json:"paid_at"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
}
