package dispute

import (
	"time"

	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/types"
)

// Status is the lifecycle state of a dispute.
type Status string

const (
	StatusOpen        Status = "open"
	StatusUnderReview Status = "under_review"
	StatusResolved    Status = "resolved"
	StatusRejected    Status = "rejected"
	StatusEscalated   Status = "escalated"
)

// Terminal reports whether further responses are refused. Reopening a
// closed dispute is not supported; a new dispute must be opened instead.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// Valid reports whether s is a known dispute status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusUnderReview, StatusResolved, StatusRejected, StatusEscalated:
		return true
	}
	return false
}

// ResolutionAction is the caller's decision when responding to a dispute.
type ResolutionAction string

const (
	ActionUnderReview ResolutionAction = "under_review"
	ActionEscalate    ResolutionAction = "escalate"
	ActionResolve     ResolutionAction = "resolve"
	ActionReject      ResolutionAction = "reject"
)

// Valid reports whether a is a known resolution action.
func (a ResolutionAction) Valid() bool {
	switch a {
	case ActionUnderReview, ActionEscalate, ActionResolve, ActionReject:
		return true
	}
	return false
}

// Dispute is a clinic's challenge against an invoice or a specific line
// item on it. Resolution may create a dispute-sourced credit and/or flag
// the line item for re-invoicing.
type Dispute struct {
	types.Entity
	ID             id.DisputeID  `json:"id"`
	TenantID       string        `json:"tenant_id"`
	InvoiceID      id.InvoiceID  `json:"invoice_id"`
	LineItemID     id.LineItemID `json:"line_item_id,omitempty"`
	ClinicID       string        `json:"clinic_id"`
	Status         Status        `json:"status"`
	DisputedAmount types.Money   `json:"disputed_amount"`
	Reason         string        `json:"reason"`
	Messages       []Message     `json:"messages,omitempty"`
	Resolution     string        `json:"resolution,omitempty"`
	ResolvedBy     string        `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
}

// Message is one entry in a dispute's correspondence thread.
type Message struct {
	Author string    `json:"author"`
	Body   string    `json:"body"`
	At     time.Time `json:"at"`
}
