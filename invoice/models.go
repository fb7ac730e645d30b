package invoice

import (
	"time"

	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/types"
)

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusDraft          Status = "draft"
	StatusFinalized      Status = "finalized"
	StatusSent           Status = "sent"
	StatusPartialPayment Status = "partial_payment"
	StatusPaid           Status = "paid"
	StatusDisputed       Status = "disputed"
	StatusOnHold         Status = "on_hold"
	StatusCancelled      Status = "cancelled"
	StatusResolved       Status = "resolved"
)

// Invoice is a client-facing bill with an ordered set of line items.
//
// Total is immutable once the invoice is finalized. Paid and the derived
// balance are mutated only through payment allocations and credit
// applications; no other write path may touch them.
type Invoice struct {
	types.Entity
	ID          id.InvoiceID      `json:"id"`
	TenantID    string            `json:"tenant_id"`
	ClientID    string            `json:"client_id"`
	Number      string            `json:"number"`
	Status      Status            `json:"status"`
	Currency    string            `json:"currency"`
	Total       types.Money       `json:"total"`
	Paid        types.Money       `json:"paid"`
	DueDate     time.Time         `json:"due_date"`
	LineItems   []LineItem        `json:"line_items"`
	FinalizedAt *time.Time        `json:"finalized_at,omitempty"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Balance returns the amount remaining unpaid: total minus paid.
func (inv *Invoice) Balance() types.Money {
	return inv.Total.Subtract(inv.Paid)
}

// ActiveLineItems returns the line items that participate in billing.
func (inv *Invoice) ActiveLineItems() []LineItem {
	items := make([]LineItem, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		if li.Active {
			items = append(items, li)
		}
	}
	return items
}

// LineItem returns a pointer to the line item with the given ID, or nil.
func (inv *Invoice) LineItem(liID id.LineItemID) *LineItem {
	for i := range inv.LineItems {
		if inv.LineItems[i].ID.String() == liID.String() {
			return &inv.LineItems[i]
		}
	}
	return nil
}

// LockPrices marks every line item price immutable. Called on finalization;
// price edits after this point are rejected upstream.
func (inv *Invoice) LockPrices() {
	for i := range inv.LineItems {
		inv.LineItems[i].PriceLocked = true
	}
}

// LineItem is a single billed service on an invoice. It mirrors the invoice
// balance invariant at line granularity: paid never exceeds amount.
type LineItem struct {
	ID             id.LineItemID `json:"id"`
	InvoiceID      id.InvoiceID  `json:"invoice_id"`
	Accession      string        `json:"accession"`
	CPTCode        string        `json:"cpt_code"`
	PatientName    string        `json:"patient_name"`
	Amount         types.Money   `json:"amount"`
	Paid           types.Money   `json:"paid"`
	Active         bool          `json:"active"`
	Disputed       bool          `json:"disputed"`
	NeedsReinvoice bool          `json:"needs_reinvoice"`
	PriceLocked    bool          `json:"price_locked"`
}

// Balance returns the unpaid remainder of this line item.
func (li *LineItem) Balance() types.Money {
	return li.Amount.Subtract(li.Paid)
}

// HistoryRecord is one immutable entry in an invoice's status audit trail.
// Automatic marks transitions driven by the allocation engine rather than
// requested by a caller.
type HistoryRecord struct {
	ID        id.HistoryID `json:"id"`
	InvoiceID id.InvoiceID `json:"invoice_id"`
	From      Status       `json:"from"`
	To        Status       `json:"to"`
	Actor     string       `json:"actor"`
	Note      string       `json:"note,omitempty"`
	Automatic bool         `json:"automatic"`
	At        time.Time    `json:"at"`
}
