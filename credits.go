package remit

import (
	"context"
	"time"

	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/types"
)

// CreditRequest describes a credit to create.
type CreditRequest struct {
	TenantID   string            `json:"tenant_id"`
	ClientID   string            `json:"client_id"`
	Amount     types.Money       `json:"amount"`
	SourceType credit.SourceType `json:"source_type"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// CreditApplicationResult reports the committed outcome of ApplyCredit.
type CreditApplicationResult struct {
	Application     *credit.Application `json:"application"`
	CreditStatus    credit.Status       `json:"credit_status"`
	CreditRemaining types.Money         `json:"credit_remaining"`
	InvoiceStatus   invoice.Status      `json:"invoice_status"`
	InvoiceBalance  types.Money         `json:"invoice_balance"`
}

// AutoApplyReport summarizes an AutoApplyCredits batch run.
type AutoApplyReport struct {
	CreditsApplied   int `json:"credits_applied"`
	InvoicesAffected int `json:"invoices_affected"`
}

// CreateCredit creates an available credit with its full value remaining.
func (e *Engine) CreateCredit(ctx context.Context, req *CreditRequest) (*credit.Credit, error) {
	if req == nil || !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !req.SourceType.Valid() {
		return nil, ErrInvalidAmount
	}

	c := &credit.Credit{
		Entity:     types.NewEntity(),
		ID:         id.NewCreditID(),
		TenantID:   req.TenantID,
		ClientID:   req.ClientID,
		Status:     credit.StatusAvailable,
		SourceType: req.SourceType,
		Currency:   req.Amount.Currency,
		Amount:     req.Amount,
		Remaining:  req.Amount,
		ExpiresAt:  req.ExpiresAt,
		Metadata:   req.Metadata,
	}

	if err := e.store.CreateCredit(ctx, c); err != nil {
		return nil, err
	}

	e.plugins.EmitCreditCreated(ctx, c)
	e.logger.Info("credit created",
		"credit_id", c.ID.String(),
		"client_id", c.ClientID,
		"amount", c.Amount.FormatMajor(),
		"source", string(c.SourceType),
	)
	return c, nil
}

// ApplyCredit consumes part of a credit against an invoice. From the
// invoice's perspective this is indistinguishable from a payment
// allocation: the same balance update, line-item walk, and automatic
// lifecycle edges apply.
func (e *Engine) ApplyCredit(ctx context.Context, crdID id.CreditID, invID id.InvoiceID, amount types.Money) (*CreditApplicationResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var (
		committedInv *invoice.Invoice
		prevStatus   invoice.Status
	)
	err := e.retryStale(func() error {
		c, err := e.store.GetCredit(ctx, crdID)
		if err != nil {
			return err
		}
		inv, err := e.store.GetInvoice(ctx, invID)
		if err != nil {
			return err
		}
		if err := validateApplication(c, inv, amount, e.now()); err != nil {
			return err
		}

		prevStatus = inv.Status
		distributeToLines(inv, amount)
		inv.Paid = inv.Paid.Add(amount)
		advanceOnPayment(inv, e.now())

		if err := e.store.UpdateInvoice(ctx, inv, inv.Version); err != nil {
			return err
		}
		committedInv = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if committedInv.Status != prevStatus {
		e.recordAutoTransition(ctx, committedInv, prevStatus)
	}

	c, err := e.drawDownCredit(ctx, crdID, amount)
	if err != nil {
		return nil, err
	}

	app := &credit.Application{
		ID:        id.NewApplicationID(),
		TenantID:  c.TenantID,
		CreditID:  crdID,
		InvoiceID: invID,
		Amount:    amount,
		CreatedAt: e.now(),
	}
	if err := e.store.CreateCreditApplication(ctx, app); err != nil {
		return nil, err
	}

	e.plugins.EmitCreditApplied(ctx, app)
	if committedInv.Status == invoice.StatusPaid && prevStatus != invoice.StatusPaid {
		e.plugins.EmitInvoicePaid(ctx, committedInv)
	}

	e.logger.Info("credit applied",
		"credit_id", crdID.String(),
		"invoice_id", invID.String(),
		"amount", amount.FormatMajor(),
		"credit_remaining", c.Remaining.FormatMajor(),
	)

	return &CreditApplicationResult{
		Application:     app,
		CreditStatus:    c.Status,
		CreditRemaining: c.Remaining,
		InvoiceStatus:   committedInv.Status,
		InvoiceBalance:  committedInv.Balance(),
	}, nil
}

// AutoApplyCredits applies every usable credit of a tenant against its
// client's outstanding invoices, oldest due date first, until each credit
// is exhausted or no eligible invoice remains. Per-credit failures are
// logged and skipped; the batch keeps going.
func (e *Engine) AutoApplyCredits(ctx context.Context, tenantID string) (*AutoApplyReport, error) {
	credits, err := e.store.ListOpenCredits(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := &AutoApplyReport{}
	touched := make(map[string]struct{})

	for _, c := range credits {
		if !c.Usable(e.now()) {
			continue
		}

		invoices, err := e.store.ListOutstandingInvoices(ctx, tenantID, c.ClientID)
		if err != nil {
			return nil, err
		}
		sortOldestDueFirst(invoices)

		remaining := c.Remaining
		applied := false
		for _, inv := range invoices {
			if !remaining.IsPositive() {
				break
			}
			amount := remaining.Min(inv.Balance())
			if !amount.IsPositive() {
				continue
			}

			res, err := e.ApplyCredit(ctx, c.ID, inv.ID, amount)
			if err != nil {
				e.logger.Warn("auto-apply skipped invoice",
					"credit_id", c.ID.String(),
					"invoice_id", inv.ID.String(),
					"error", err,
				)
				continue
			}

			applied = true
			remaining = res.CreditRemaining
			touched[inv.ID.String()] = struct{}{}
		}

		if applied {
			report.CreditsApplied++
		}
	}

	report.InvoicesAffected = len(touched)
	e.logger.Info("auto-applied credits",
		"tenant_id", tenantID,
		"credits_applied", report.CreditsApplied,
		"invoices_affected", report.InvoicesAffected,
	)
	return report, nil
}

// ExpireCredits marks every credit whose expiry has passed with value
// remaining as expired. Returns the number of credits expired.
func (e *Engine) ExpireCredits(ctx context.Context, asOf time.Time) (int, error) {
	candidates, err := e.store.ListExpiringCredits(ctx, asOf)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, c := range candidates {
		if !c.ExpiredAsOf(asOf) {
			continue
		}
		c.Status = credit.StatusExpired
		if err := e.store.UpdateCredit(ctx, c, c.Version); err != nil {
			if IsConflict(err) {
				// A concurrent application or cancellation won; the
				// next sweep re-evaluates this credit.
				continue
			}
			return expired, err
		}
		expired++
		e.plugins.EmitCreditExpired(ctx, c)
		e.logger.Info("credit expired",
			"credit_id", c.ID.String(),
			"client_id", c.ClientID,
			"remaining", c.Remaining.FormatMajor(),
		)
	}
	return expired, nil
}

// CancelCredit withdraws an untouched available credit. A reason is
// required; a credit with any application cannot be cancelled.
func (e *Engine) CancelCredit(ctx context.Context, crdID id.CreditID, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}

	return e.retryStale(func() error {
		c, err := e.store.GetCredit(ctx, crdID)
		if err != nil {
			return err
		}
		if c.Status != credit.StatusAvailable {
			return ErrCreditNotUsable
		}
		apps, err := e.store.ListApplicationsByCredit(ctx, crdID)
		if err != nil {
			return err
		}
		if len(apps) > 0 {
			return ErrCreditInUse
		}

		c.Status = credit.StatusCancelled
		c.CancelReason = reason
		if err := e.store.UpdateCredit(ctx, c, c.Version); err != nil {
			return err
		}

		e.plugins.EmitCreditCancelled(ctx, c, reason)
		e.logger.Info("credit cancelled",
			"credit_id", c.ID.String(),
			"reason", reason,
		)
		return nil
	})
}

// GetCredit retrieves a credit by ID.
func (e *Engine) GetCredit(ctx context.Context, crdID id.CreditID) (*credit.Credit, error) {
	return e.store.GetCredit(ctx, crdID)
}

// ListCredits lists a tenant's credits.
func (e *Engine) ListCredits(ctx context.Context, tenantID string, opts credit.ListOpts) ([]*credit.Credit, error) {
	return e.store.ListCredits(ctx, tenantID, opts)
}

// ApplicationsForCredit returns a credit's application rows, oldest first.
func (e *Engine) ApplicationsForCredit(ctx context.Context, crdID id.CreditID) ([]*credit.Application, error) {
	return e.store.ListApplicationsByCredit(ctx, crdID)
}

// ApplicationsForInvoice returns every credit application targeting an invoice.
func (e *Engine) ApplicationsForInvoice(ctx context.Context, invID id.InvoiceID) ([]*credit.Application, error) {
	return e.store.ListApplicationsByInvoice(ctx, invID)
}

// ──────────────────────────────────────────────────
// Credit internals
// ──────────────────────────────────────────────────

func validateApplication(c *credit.Credit, inv *invoice.Invoice, amount types.Money, now time.Time) error {
	if c.Status == credit.StatusApplied {
		return ErrAlreadyApplied
	}
	if !c.Usable(now) {
		return ErrCreditNotUsable
	}
	if !inv.Status.Payable() {
		return ErrInvoiceNotPayable
	}
	if amount.GreaterThan(c.Remaining) {
		return amountErr(ErrInsufficientCredit, amount, c.Remaining)
	}
	if balance := inv.Balance(); amount.GreaterThan(balance) {
		return amountErr(ErrExceedsInvoiceBalance, amount, balance)
	}
	return nil
}

// drawDownCredit decrements a credit's remaining value with its own
// conditional-update loop against fresh reads. The credit becomes applied
// at zero remaining, partial otherwise.
func (e *Engine) drawDownCredit(ctx context.Context, crdID id.CreditID, amount types.Money) (*credit.Credit, error) {
	var lastErr error
	for attempt := 0; attempt <= e.casRetries; attempt++ {
		c, err := e.store.GetCredit(ctx, crdID)
		if err != nil {
			return nil, err
		}

		// Re-check against the fresh read. A concurrent application may
		// have drawn the credit down since validation; the remaining
		// value must never go negative.
		if amount.GreaterThan(c.Remaining) {
			return nil, amountErr(ErrInsufficientCredit, amount, c.Remaining)
		}

		c.Remaining = c.Remaining.Subtract(amount)
		if c.Remaining.NearZero() {
			c.Status = credit.StatusApplied
		} else {
			c.Status = credit.StatusPartial
		}

		if err := e.store.UpdateCredit(ctx, c, c.Version); err != nil {
			if IsConflict(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return c, nil
	}
	return nil, lastErr
}
