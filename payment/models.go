package payment

import (
	"time"

	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/types"
)

// Status is the lifecycle state of a payment.
type Status string

const (
	StatusUnposted  Status = "unposted"
	StatusPosted    Status = "posted"
	StatusOnHold    Status = "on_hold"
	StatusReversed  Status = "reversed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known payment status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnposted, StatusPosted, StatusOnHold, StatusReversed, StatusCancelled:
		return true
	}
	return false
}

// Payment is a received remittance. Amount is immutable; Allocated and
// Unallocated always sum to Amount within the penny tolerance, and are
// mutated only by the allocation engine. A payment is posted once its
// unallocated remainder is within a penny of zero.
type Payment struct {
	types.Entity
	ID          id.PaymentID      `json:"id"`
	TenantID    string            `json:"tenant_id"`
	ClientID    string            `json:"client_id"`
	Number      string            `json:"number"`
	Status      Status            `json:"status"`
	Currency    string            `json:"currency"`
	Amount      types.Money       `json:"amount"`
	Allocated   types.Money       `json:"allocated"`
	Unallocated types.Money       `json:"unallocated"`
	ReceivedAt  time.Time         `json:"received_at"`
	PostedAt    *time.Time        `json:"posted_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Balanced reports whether allocated + unallocated still equals amount
// within the penny tolerance.
func (p *Payment) Balanced() bool {
	return p.Allocated.Add(p.Unallocated).WithinPenny(p.Amount)
}

// FullyAllocated reports whether the unallocated remainder is within a
// penny of zero.
func (p *Payment) FullyAllocated() bool {
	return p.Unallocated.NearZero()
}

// Allocation is one immutable, append-only assignment of part of a payment
// to an invoice (and optionally a specific line item). Corrections are made
// by a compensating negative allocation, never by editing a row.
type Allocation struct {
	ID         id.AllocationID `json:"id"`
	TenantID   string          `json:"tenant_id"`
	PaymentID  id.PaymentID    `json:"payment_id"`
	InvoiceID  id.InvoiceID    `json:"invoice_id"`
	LineItemID id.LineItemID   `json:"line_item_id,omitempty"`
	Amount     types.Money     `json:"amount"`
	Sequence   int64           `json:"sequence"`
	CreatedAt  time.Time       `json:"created_at"`
}
