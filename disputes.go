package remit

import (
	"context"

	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/dispute"
	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/types"
)

// DisputeOutcome reports what ResolveDispute committed.
type DisputeOutcome struct {
	Dispute  *dispute.Dispute `json:"dispute"`
	CreditID id.CreditID      `json:"credit_id,omitempty"`
	Credited types.Money      `json:"credited"`
}

// OpenDispute records a clinic's challenge against an invoice. The
// referenced line item is flagged disputed, and the invoice moves to
// disputed when its current status allows it.
func (e *Engine) OpenDispute(ctx context.Context, d *dispute.Dispute) error {
	if d == nil || d.Reason == "" {
		return ErrReasonRequired
	}
	if !d.DisputedAmount.IsPositive() {
		return ErrInvalidAmount
	}

	inv, err := e.store.GetInvoice(ctx, d.InvoiceID)
	if err != nil {
		return err
	}
	if !d.LineItemID.IsNil() && inv.LineItem(d.LineItemID) == nil {
		return ErrLineItemNotFound
	}

	if d.ID.IsNil() {
		d.ID = id.NewDisputeID()
	}
	d.Entity = types.NewEntity()
	d.Status = dispute.StatusOpen
	if d.TenantID == "" {
		d.TenantID = inv.TenantID
	}

	if err := e.store.CreateDispute(ctx, d); err != nil {
		return err
	}

	if err := e.flagDisputedLine(ctx, d.InvoiceID, d.LineItemID, true); err != nil {
		e.logger.Error("failed to flag disputed line item",
			"dispute_id", d.ID.String(),
			"invoice_id", d.InvoiceID.String(),
			"error", err,
		)
	}

	if invoice.CanTransition(inv.Status, invoice.StatusDisputed) {
		if _, err := e.TransitionInvoice(ctx, d.InvoiceID, invoice.StatusDisputed, "dispute opened: "+d.Reason); err != nil {
			e.logger.Warn("invoice did not move to disputed",
				"dispute_id", d.ID.String(),
				"invoice_id", d.InvoiceID.String(),
				"error", err,
			)
		}
	}

	e.plugins.EmitDisputeOpened(ctx, d)
	e.logger.Info("dispute opened",
		"dispute_id", d.ID.String(),
		"invoice_id", d.InvoiceID.String(),
		"clinic_id", d.ClinicID,
		"amount", d.DisputedAmount.FormatMajor(),
	)
	return nil
}

// ResolveDispute applies a caller's action to an open dispute. The message
// is appended to the dispute thread in every case. Resolving may create a
// dispute-sourced credit for the clinic and flag the line item for
// re-invoicing; a terminal dispute refuses further responses.
func (e *Engine) ResolveDispute(ctx context.Context, dspID id.DisputeID, message string, action dispute.ResolutionAction, creditAmount types.Money, reInvoice bool) (*DisputeOutcome, error) {
	if !action.Valid() {
		return nil, ErrIllegalTransition
	}

	var committed *dispute.Dispute
	err := e.retryStale(func() error {
		d, err := e.store.GetDispute(ctx, dspID)
		if err != nil {
			return err
		}
		if d.Status.Terminal() {
			return ErrDisputeClosed
		}

		now := e.now()
		actor := actorFrom(ctx)
		if message != "" {
			d.Messages = append(d.Messages, dispute.Message{
				Author: actor,
				Body:   message,
				At:     now,
			})
		}

		switch action {
		case dispute.ActionUnderReview:
			d.Status = dispute.StatusUnderReview
		case dispute.ActionEscalate:
			d.Status = dispute.StatusEscalated
		case dispute.ActionReject:
			d.Status = dispute.StatusRejected
			d.Resolution = message
			d.ResolvedBy = actor
			d.ResolvedAt = &now
		case dispute.ActionResolve:
			d.Status = dispute.StatusResolved
			d.Resolution = message
			d.ResolvedBy = actor
			d.ResolvedAt = &now
		}

		if err := e.store.UpdateDispute(ctx, d, d.Version); err != nil {
			return err
		}
		committed = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := &DisputeOutcome{
		Dispute:  committed,
		Credited: types.Zero(committed.DisputedAmount.Currency),
	}

	if committed.Status == dispute.StatusResolved && creditAmount.IsPositive() {
		crd, err := e.CreateCredit(ctx, &CreditRequest{
			TenantID:   committed.TenantID,
			ClientID:   committed.ClinicID,
			Amount:     creditAmount,
			SourceType: credit.SourceDispute,
		})
		if err != nil {
			return nil, err
		}
		outcome.CreditID = crd.ID
		outcome.Credited = creditAmount
	}

	if committed.Status.Terminal() && !committed.LineItemID.IsNil() {
		needsReinvoice := reInvoice && committed.Status == dispute.StatusResolved
		if err := e.clearDisputedLine(ctx, committed.InvoiceID, committed.LineItemID, needsReinvoice); err != nil {
			e.logger.Error("failed to update disputed line item",
				"dispute_id", committed.ID.String(),
				"invoice_id", committed.InvoiceID.String(),
				"error", err,
			)
		}
	}

	if committed.Status.Terminal() {
		e.plugins.EmitDisputeResolved(ctx, committed)
	}

	e.logger.Info("dispute updated",
		"dispute_id", committed.ID.String(),
		"action", string(action),
		"status", string(committed.Status),
		"credited", outcome.Credited.FormatMajor(),
	)
	return outcome, nil
}

// GetDispute retrieves a dispute by ID.
func (e *Engine) GetDispute(ctx context.Context, dspID id.DisputeID) (*dispute.Dispute, error) {
	return e.store.GetDispute(ctx, dspID)
}

// ListDisputes lists a tenant's disputes.
func (e *Engine) ListDisputes(ctx context.Context, tenantID string, opts dispute.ListOpts) ([]*dispute.Dispute, error) {
	return e.store.ListDisputes(ctx, tenantID, opts)
}

// ──────────────────────────────────────────────────
// Dispute internals
// ──────────────────────────────────────────────────

func (e *Engine) flagDisputedLine(ctx context.Context, invID id.InvoiceID, liID id.LineItemID, disputed bool) error {
	if liID.IsNil() {
		return nil
	}
	return e.retryStale(func() error {
		inv, err := e.store.GetInvoice(ctx, invID)
		if err != nil {
			return err
		}
		li := inv.LineItem(liID)
		if li == nil {
			return ErrLineItemNotFound
		}
		li.Disputed = disputed
		return e.store.UpdateInvoice(ctx, inv, inv.Version)
	})
}

// clearDisputedLine drops the disputed flag after a terminal dispute and
// optionally marks the line for re-invoicing. The needs_reinvoice flag is
// consumed by an external billing-generation process.
func (e *Engine) clearDisputedLine(ctx context.Context, invID id.InvoiceID, liID id.LineItemID, needsReinvoice bool) error {
	return e.retryStale(func() error {
		inv, err := e.store.GetInvoice(ctx, invID)
		if err != nil {
			return err
		}
		li := inv.LineItem(liID)
		if li == nil {
			return ErrLineItemNotFound
		}
		li.Disputed = false
		if needsReinvoice {
			li.NeedsReinvoice = true
		}
		return e.store.UpdateInvoice(ctx, inv, inv.Version)
	})
}
