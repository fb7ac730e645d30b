package credit

import (
	"time"

	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/types"
)

// Status is the lifecycle state of a credit.
type Status string

const (
	StatusAvailable Status = "available"
	StatusPartial   Status = "partial"
	StatusApplied   Status = "applied"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a credit can never be applied again.
func (s Status) Terminal() bool {
	return s == StatusApplied || s == StatusExpired || s == StatusCancelled
}

// Valid reports whether s is a known credit status.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusPartial, StatusApplied, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// SourceType records where a credit came from.
type SourceType string

const (
	SourceOverpayment SourceType = "overpayment"
	SourceRefund      SourceType = "refund"
	SourceAdjustment  SourceType = "adjustment"
	SourceManual      SourceType = "manual"
	SourceDispute     SourceType = "dispute"
)

// Valid reports whether s is a known credit source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceOverpayment, SourceRefund, SourceAdjustment, SourceManual, SourceDispute:
		return true
	}
	return false
}

// Credit is a client-owned store of value consumable against future invoice
// balances. Amount is the original value; Remaining is decremented by
// applications and never drops below zero. A credit whose ExpiresAt passes
// with remaining value becomes expired and unusable.
type Credit struct {
	types.Entity
	ID           id.CreditID       `json:"id"`
	TenantID     string            `json:"tenant_id"`
	ClientID     string            `json:"client_id"`
	Status       Status            `json:"status"`
	SourceType   SourceType        `json:"source_type"`
	Currency     string            `json:"currency"`
	Amount       types.Money       `json:"amount"`
	Remaining    types.Money       `json:"remaining"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Usable reports whether the credit can still be applied as of now.
func (c *Credit) Usable(now time.Time) bool {
	if c.Status != StatusAvailable && c.Status != StatusPartial {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return c.Remaining.IsPositive()
}

// ExpiredAsOf reports whether the credit's expiry has passed with value left.
func (c *Credit) ExpiredAsOf(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt) &&
		(c.Status == StatusAvailable || c.Status == StatusPartial) &&
		c.Remaining.IsPositive()
}

// Application is one immutable, append-only assignment of part of a credit
// to an invoice (and optionally a specific line item). From the invoice's
// perspective it is indistinguishable from a payment allocation.
type Application struct {
	ID         id.ApplicationID `json:"id"`
	TenantID   string           `json:"tenant_id"`
	CreditID   id.CreditID      `json:"credit_id"`
	InvoiceID  id.InvoiceID     `json:"invoice_id"`
	LineItemID id.LineItemID    `json:"line_item_id,omitempty"`
	Amount     types.Money      `json:"amount"`
	CreatedAt  time.Time        `json:"created_at"`
}
