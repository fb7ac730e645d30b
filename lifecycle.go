package remit

import (
	"context"

	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/types"
)

// CreateInvoice creates a draft invoice. Total is computed from the active
// line items; a caller-supplied total is ignored.
func (e *Engine) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ErrInvalidAmount
	}
	if inv.ID.IsNil() {
		inv.ID = id.NewInvoiceID()
	}
	inv.Entity = types.NewEntity()
	inv.Status = invoice.StatusDraft
	if inv.Currency == "" {
		inv.Currency = "usd"
	}

	total := types.Zero(inv.Currency)
	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		if li.ID.IsNil() {
			li.ID = id.NewLineItemID()
		}
		li.InvoiceID = inv.ID
		if li.Paid.Currency == "" {
			li.Paid = types.Zero(inv.Currency)
		}
		if li.Amount.IsNegative() {
			return ErrInvalidAmount
		}
		if li.Active {
			total = total.Add(li.Amount)
		}
	}
	inv.Total = total
	inv.Paid = types.Zero(inv.Currency)

	if err := e.store.CreateInvoice(ctx, inv); err != nil {
		return err
	}

	e.plugins.EmitInvoiceCreated(ctx, inv)
	e.logger.Info("invoice created",
		"invoice_id", inv.ID.String(),
		"client_id", inv.ClientID,
		"total", inv.Total.FormatMajor(),
	)
	return nil
}

// TransitionInvoice moves an invoice to a caller-requested status. The
// transition table is the single source of legality; finalization locks
// line-item prices and refuses an invoice with no active line items; the
// sent transition enqueues delivery without blocking on it. Every committed
// transition appends a history record.
func (e *Engine) TransitionInvoice(ctx context.Context, invID id.InvoiceID, target invoice.Status, note string) (*invoice.Invoice, error) {
	if !target.Valid() {
		return nil, ErrIllegalTransition
	}

	var (
		committed *invoice.Invoice
		from      invoice.Status
	)
	err := e.retryStale(func() error {
		inv, err := e.store.GetInvoice(ctx, invID)
		if err != nil {
			return err
		}
		if !invoice.CanTransition(inv.Status, target) {
			return ErrIllegalTransition
		}

		from = inv.Status
		now := e.now()

		switch target {
		case invoice.StatusFinalized:
			if len(inv.ActiveLineItems()) == 0 {
				return ErrNothingToFinalize
			}
			inv.LockPrices()
			inv.FinalizedAt = &now
		case invoice.StatusCancelled:
			inv.CancelledAt = &now
		case invoice.StatusPaid:
			inv.PaidAt = &now
		}
		inv.Status = target

		if err := e.store.UpdateInvoice(ctx, inv, inv.Version); err != nil {
			return err
		}
		committed = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec := &invoice.HistoryRecord{
		ID:        id.NewHistoryID(),
		InvoiceID: committed.ID,
		From:      from,
		To:        target,
		Actor:     actorFrom(ctx),
		Note:      note,
		At:        e.now(),
	}
	if err := e.store.AppendInvoiceHistory(ctx, rec); err != nil {
		e.logger.Error("failed to append invoice history",
			"invoice_id", committed.ID.String(),
			"from", string(from),
			"to", string(target),
			"error", err,
		)
	}

	e.plugins.EmitInvoiceTransitioned(ctx, committed, string(from), string(target), false)
	switch target {
	case invoice.StatusFinalized:
		e.plugins.EmitInvoiceFinalized(ctx, committed)
	case invoice.StatusSent:
		e.enqueueDelivery(committed)
	case invoice.StatusPaid:
		e.plugins.EmitInvoicePaid(ctx, committed)
	}

	e.logger.Info("invoice transitioned",
		"invoice_id", committed.ID.String(),
		"from", string(from),
		"to", string(target),
		"actor", rec.Actor,
	)
	return committed, nil
}

// GetInvoice retrieves an invoice by ID.
func (e *Engine) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return e.store.GetInvoice(ctx, invID)
}

// ListInvoices lists a tenant's invoices.
func (e *Engine) ListInvoices(ctx context.Context, tenantID string, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	return e.store.ListInvoices(ctx, tenantID, opts)
}

// ListOutstandingInvoices lists a client's payable invoices with a positive
// balance, oldest due date first.
func (e *Engine) ListOutstandingInvoices(ctx context.Context, tenantID, clientID string) ([]*invoice.Invoice, error) {
	return e.store.ListOutstandingInvoices(ctx, tenantID, clientID)
}

// InvoiceHistory returns an invoice's status audit trail, oldest first.
func (e *Engine) InvoiceHistory(ctx context.Context, invID id.InvoiceID) ([]*invoice.HistoryRecord, error) {
	return e.store.ListInvoiceHistory(ctx, invID)
}
