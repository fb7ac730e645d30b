package remit

import (
	"context"
	"sort"
	"time"

	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/payment"
	"github.com/halcyonlabs/remit/types"
)

// Strategy selects the ordering used by multi-invoice allocation.
type Strategy string

// StrategyOldestDueFirst allocates against invoices in due-date ascending
// order, ties broken by invoice number ascending. It is the only defined
// strategy; downstream reconciliation reports assume oldest-first behavior.
const StrategyOldestDueFirst Strategy = "oldest_due_first"

// AllocationResult reports the committed outcome of a single allocation.
type AllocationResult struct {
	PaymentID          id.PaymentID   `json:"payment_id"`
	InvoiceID          id.InvoiceID   `json:"invoice_id"`
	Allocated          types.Money    `json:"allocated"`
	InvoiceStatus      invoice.Status `json:"invoice_status"`
	InvoiceBalance     types.Money    `json:"invoice_balance"`
	PaymentUnallocated types.Money    `json:"payment_unallocated"`
	PaymentPosted      bool           `json:"payment_posted"`
}

// InvoiceAllocation is one row of a multi-invoice allocation report.
type InvoiceAllocation struct {
	InvoiceID     id.InvoiceID `json:"invoice_id"`
	InvoiceNumber string       `json:"invoice_number"`
	ClientID      string       `json:"client_id"`
	Allocated     types.Money  `json:"allocated"`
	Outstanding   types.Money  `json:"outstanding"`
	Err           error        `json:"-"`
}

// MultiAllocationReport is the outcome of AllocateAcrossInvoices.
type MultiAllocationReport struct {
	PaymentID          id.PaymentID        `json:"payment_id"`
	Results            []InvoiceAllocation `json:"results"`
	TotalAllocated     types.Money         `json:"total_allocated"`
	PaymentUnallocated types.Money         `json:"payment_unallocated"`
}

// OverpaymentChoice is the caller's explicit decision for a payment that
// exceeds the target invoice's balance. The engine never picks one itself.
type OverpaymentChoice string

const (
	// CreditRemainder allocates the full invoice balance and credits the
	// rest to the client as an overpayment-sourced credit.
	CreditRemainder OverpaymentChoice = "credit_remainder"
	// AllocateExact allocates a caller-chosen smaller amount with no
	// credit created.
	AllocateExact OverpaymentChoice = "allocate_exact"
)

// OverpaymentResolution carries the caller's overpayment decision.
// Amount is consulted only for AllocateExact.
type OverpaymentResolution struct {
	Choice OverpaymentChoice `json:"choice"`
	Amount types.Money       `json:"amount"`
}

// OverpaymentOutcome reports what ResolveOverpayment committed.
type OverpaymentOutcome struct {
	Allocation *AllocationResult `json:"allocation"`
	CreditID   id.CreditID       `json:"credit_id,omitempty"`
	Credited   types.Money       `json:"credited"`
}

// PostPayment records a received remittance as an unposted payment with its
// full amount unallocated.
func (e *Engine) PostPayment(ctx context.Context, pay *payment.Payment) error {
	if pay == nil || !pay.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if pay.ID.IsNil() {
		pay.ID = id.NewPaymentID()
	}
	pay.Entity = types.NewEntity()
	pay.Status = payment.StatusUnposted
	if pay.Currency == "" {
		pay.Currency = pay.Amount.Currency
	}
	pay.Allocated = types.Zero(pay.Currency)
	pay.Unallocated = pay.Amount
	pay.PostedAt = nil
	if pay.ReceivedAt.IsZero() {
		pay.ReceivedAt = e.now()
	}

	if err := e.store.CreatePayment(ctx, pay); err != nil {
		return err
	}

	e.plugins.EmitPaymentRecorded(ctx, pay)
	e.logger.Info("payment recorded",
		"payment_id", pay.ID.String(),
		"client_id", pay.ClientID,
		"amount", pay.Amount.FormatMajor(),
	)
	return nil
}

// AllocateToInvoice applies part of a payment's unallocated remainder to an
// invoice. All amount checks run before any write; the invoice balance
// mutation is a conditional update retried against fresh reads when a
// concurrent writer wins.
func (e *Engine) AllocateToInvoice(ctx context.Context, payID id.PaymentID, invID id.InvoiceID, amount types.Money) (*AllocationResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var (
		committed  *invoice.Invoice
		prevStatus invoice.Status
		cuts       []lineCut
	)
	err := e.retryStale(func() error {
		pay, err := e.store.GetPayment(ctx, payID)
		if err != nil {
			return err
		}
		inv, err := e.store.GetInvoice(ctx, invID)
		if err != nil {
			return err
		}
		if err := validateAllocation(pay, inv, amount); err != nil {
			return err
		}

		prevStatus = inv.Status
		cuts = distributeToLines(inv, amount)
		inv.Paid = inv.Paid.Add(amount)
		advanceOnPayment(inv, e.now())

		if err := e.store.UpdateInvoice(ctx, inv, inv.Version); err != nil {
			return err
		}
		committed = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if committed.Status != prevStatus {
		e.recordAutoTransition(ctx, committed, prevStatus)
	}

	pay, posted, err := e.settlePayment(ctx, payID, amount)
	if err != nil {
		return nil, err
	}

	allocs, err := e.appendAllocations(ctx, pay, committed, cuts)
	if err != nil {
		return nil, err
	}

	for _, a := range allocs {
		e.plugins.EmitPaymentAllocated(ctx, a)
	}
	if committed.Status == invoice.StatusPaid && prevStatus != invoice.StatusPaid {
		e.plugins.EmitInvoicePaid(ctx, committed)
	}
	if posted {
		e.plugins.EmitPaymentPosted(ctx, pay)
	}

	e.logger.Info("payment allocated",
		"payment_id", payID.String(),
		"invoice_id", invID.String(),
		"amount", amount.FormatMajor(),
		"invoice_status", string(committed.Status),
		"payment_posted", posted,
	)

	return &AllocationResult{
		PaymentID:          payID,
		InvoiceID:          invID,
		Allocated:          amount,
		InvoiceStatus:      committed.Status,
		InvoiceBalance:     committed.Balance(),
		PaymentUnallocated: pay.Unallocated,
		PaymentPosted:      posted,
	}, nil
}

// AllocateAcrossInvoices distributes a payment across invoices greedily,
// oldest due date first, committing invoice by invoice. Earlier commits are
// never rolled back when a later invoice fails; each failure is reported on
// its own row.
func (e *Engine) AllocateAcrossInvoices(ctx context.Context, payID id.PaymentID, invoiceIDs []id.InvoiceID, strategy Strategy) (*MultiAllocationReport, error) {
	if strategy != StrategyOldestDueFirst {
		return nil, ErrUnknownStrategy
	}

	pay, err := e.store.GetPayment(ctx, payID)
	if err != nil {
		return nil, err
	}
	if err := allocatablePayment(pay); err != nil {
		return nil, err
	}

	targets := make([]*invoice.Invoice, 0, len(invoiceIDs))
	for _, invID := range invoiceIDs {
		inv, err := e.store.GetInvoice(ctx, invID)
		if err != nil {
			return nil, err
		}
		targets = append(targets, inv)
	}
	sortOldestDueFirst(targets)

	report := &MultiAllocationReport{
		PaymentID:          payID,
		TotalAllocated:     types.Zero(pay.Currency),
		PaymentUnallocated: pay.Unallocated,
	}

	remaining := pay.Unallocated
	for _, inv := range targets {
		row := InvoiceAllocation{
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.Number,
			ClientID:      inv.ClientID,
			Allocated:     types.Zero(pay.Currency),
			Outstanding:   inv.Balance(),
		}

		if !remaining.IsPositive() {
			report.Results = append(report.Results, row)
			continue
		}

		amount := remaining.Min(inv.Balance())
		if !amount.IsPositive() {
			report.Results = append(report.Results, row)
			continue
		}

		res, err := e.AllocateToInvoice(ctx, payID, inv.ID, amount)
		if err != nil {
			row.Err = err
			report.Results = append(report.Results, row)
			e.logger.Warn("multi-invoice allocation row failed",
				"payment_id", payID.String(),
				"invoice_id", inv.ID.String(),
				"error", err,
			)
			continue
		}

		row.Allocated = res.Allocated
		row.Outstanding = res.InvoiceBalance
		report.Results = append(report.Results, row)
		report.TotalAllocated = report.TotalAllocated.Add(res.Allocated)
		remaining = res.PaymentUnallocated
		report.PaymentUnallocated = res.PaymentUnallocated
	}

	return report, nil
}

// ResolveOverpayment settles a payment whose unallocated remainder exceeds
// the invoice's balance, using the caller's explicit resolution. The engine
// refuses to guess: a missing or unknown choice is rejected.
func (e *Engine) ResolveOverpayment(ctx context.Context, payID id.PaymentID, invID id.InvoiceID, res OverpaymentResolution) (*OverpaymentOutcome, error) {
	pay, err := e.store.GetPayment(ctx, payID)
	if err != nil {
		return nil, err
	}
	if err := allocatablePayment(pay); err != nil {
		return nil, err
	}
	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	balance := inv.Balance()
	if !pay.Unallocated.GreaterThan(balance) {
		return nil, amountErr(ErrNoOverpayment, pay.Unallocated, balance)
	}

	switch res.Choice {
	case CreditRemainder:
		remainder := pay.Unallocated.Subtract(balance)

		alloc, err := e.AllocateToInvoice(ctx, payID, invID, balance)
		if err != nil {
			return nil, err
		}

		crd, err := e.CreateCredit(ctx, &CreditRequest{
			TenantID:   pay.TenantID,
			ClientID:   inv.ClientID,
			Amount:     remainder,
			SourceType: credit.SourceOverpayment,
		})
		if err != nil {
			return nil, err
		}

		settled, posted, err := e.settlePayment(ctx, payID, remainder)
		if err != nil {
			return nil, err
		}
		alloc.PaymentUnallocated = settled.Unallocated
		alloc.PaymentPosted = posted

		e.plugins.EmitOverpaymentResolved(ctx, settled, crd)
		e.logger.Info("overpayment credited",
			"payment_id", payID.String(),
			"invoice_id", invID.String(),
			"credited", remainder.FormatMajor(),
			"credit_id", crd.ID.String(),
		)
		return &OverpaymentOutcome{Allocation: alloc, CreditID: crd.ID, Credited: remainder}, nil

	case AllocateExact:
		if !res.Amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		if res.Amount.GreaterThan(balance) {
			return nil, amountErr(ErrExceedsInvoiceBalance, res.Amount, balance)
		}
		alloc, err := e.AllocateToInvoice(ctx, payID, invID, res.Amount)
		if err != nil {
			return nil, err
		}
		e.plugins.EmitOverpaymentResolved(ctx, pay, nil)
		return &OverpaymentOutcome{Allocation: alloc, Credited: types.Zero(pay.Currency)}, nil

	default:
		return nil, ErrUnknownResolution
	}
}

// ──────────────────────────────────────────────────
// Allocation internals
// ──────────────────────────────────────────────────

// lineCut is a planned slice of an allocation against one line item. A nil
// line ID marks an invoice-level remainder with no itemized target.
type lineCut struct {
	lineID id.LineItemID
	amount types.Money
}

func validateAllocation(pay *payment.Payment, inv *invoice.Invoice, amount types.Money) error {
	if err := allocatablePayment(pay); err != nil {
		return err
	}
	if !inv.Status.Payable() {
		return ErrInvoiceNotPayable
	}
	if amount.GreaterThan(pay.Unallocated) {
		return amountErr(ErrExceedsPaymentAmount, amount, pay.Unallocated)
	}
	if balance := inv.Balance(); amount.GreaterThan(balance) {
		return amountErr(ErrExceedsInvoiceBalance, amount, balance)
	}
	return nil
}

func allocatablePayment(pay *payment.Payment) error {
	switch pay.Status {
	case payment.StatusPosted:
		return ErrAlreadyPosted
	case payment.StatusReversed, payment.StatusCancelled:
		return ErrPaymentNotAllocatable
	}
	if pay.FullyAllocated() {
		return ErrAlreadyPosted
	}
	return nil
}

// distributeToLines walks the invoice's active line items in order, filling
// each line's unpaid remainder until the amount is exhausted. Mutates line
// item paid amounts in place and returns the plan used to write allocation
// rows. Any remainder beyond itemized balances lands on an invoice-level cut.
func distributeToLines(inv *invoice.Invoice, amount types.Money) []lineCut {
	remaining := amount
	var cuts []lineCut
	for i := range inv.LineItems {
		if !remaining.IsPositive() {
			break
		}
		li := &inv.LineItems[i]
		if !li.Active {
			continue
		}
		bal := li.Balance()
		if !bal.IsPositive() {
			continue
		}
		take := remaining.Min(bal)
		li.Paid = li.Paid.Add(take)
		remaining = remaining.Subtract(take)
		cuts = append(cuts, lineCut{lineID: li.ID, amount: take})
	}
	if remaining.IsPositive() {
		cuts = append(cuts, lineCut{amount: remaining})
	}
	return cuts
}

// advanceOnPayment applies the automatic lifecycle edges driven by a paid
// amount crossing a threshold. Zero balance means paid; anything between
// zero and total means partial_payment.
func advanceOnPayment(inv *invoice.Invoice, now time.Time) {
	if inv.Balance().NearZero() {
		if inv.Status != invoice.StatusPaid {
			inv.Status = invoice.StatusPaid
			at := now
			inv.PaidAt = &at
		}
		return
	}
	if inv.Paid.IsPositive() && inv.Status != invoice.StatusPartialPayment {
		inv.Status = invoice.StatusPartialPayment
	}
}

// recordAutoTransition appends history for an engine-driven status change.
// History append failures are logged, not propagated; the balance change is
// already committed.
func (e *Engine) recordAutoTransition(ctx context.Context, inv *invoice.Invoice, from invoice.Status) {
	rec := &invoice.HistoryRecord{
		ID:        id.NewHistoryID(),
		InvoiceID: inv.ID,
		From:      from,
		To:        inv.Status,
		Actor:     actorFrom(ctx),
		Automatic: true,
		At:        e.now(),
	}
	if err := e.store.AppendInvoiceHistory(ctx, rec); err != nil {
		e.logger.Error("failed to append invoice history",
			"invoice_id", inv.ID.String(),
			"from", string(from),
			"to", string(inv.Status),
			"error", err,
		)
	}
	e.plugins.EmitInvoiceTransitioned(ctx, inv, string(from), string(inv.Status), true)
}

// settlePayment applies an allocated delta to the payment's running totals
// with its own conditional-update loop against fresh reads. Marks the
// payment posted when the unallocated remainder reaches zero within the
// penny tolerance.
func (e *Engine) settlePayment(ctx context.Context, payID id.PaymentID, amount types.Money) (*payment.Payment, bool, error) {
	var lastErr error
	for attempt := 0; attempt <= e.casRetries; attempt++ {
		pay, err := e.store.GetPayment(ctx, payID)
		if err != nil {
			return nil, false, err
		}

		// Re-check against the fresh read. Validation ran against an
		// earlier snapshot, and a concurrent allocation may have
		// consumed the remainder since then.
		if amount.GreaterThan(pay.Unallocated) {
			return nil, false, amountErr(ErrExceedsPaymentAmount, amount, pay.Unallocated)
		}

		pay.Allocated = pay.Allocated.Add(amount)
		pay.Unallocated = pay.Unallocated.Subtract(amount)

		posted := false
		if pay.Unallocated.NearZero() && pay.Status == payment.StatusUnposted {
			pay.Status = payment.StatusPosted
			at := e.now()
			pay.PostedAt = &at
			posted = true
		}

		if err := e.store.UpdatePayment(ctx, pay, pay.Version); err != nil {
			if IsConflict(err) {
				lastErr = err
				continue
			}
			return nil, false, err
		}
		return pay, posted, nil
	}
	return nil, false, lastErr
}

// appendAllocations writes the append-only allocation rows for a committed
// allocation. Sequence numbers continue from the payment's existing rows.
func (e *Engine) appendAllocations(ctx context.Context, pay *payment.Payment, inv *invoice.Invoice, cuts []lineCut) ([]*payment.Allocation, error) {
	existing, err := e.store.ListAllocationsByPayment(ctx, pay.ID)
	if err != nil {
		return nil, err
	}
	seq := int64(len(existing))

	out := make([]*payment.Allocation, 0, len(cuts))
	for _, cut := range cuts {
		seq++
		a := &payment.Allocation{
			ID:         id.NewAllocationID(),
			TenantID:   pay.TenantID,
			PaymentID:  pay.ID,
			InvoiceID:  inv.ID,
			LineItemID: cut.lineID,
			Amount:     cut.amount,
			Sequence:   seq,
			CreatedAt:  e.now(),
		}
		if err := e.store.CreateAllocation(ctx, a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// GetPayment retrieves a payment by ID.
func (e *Engine) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	return e.store.GetPayment(ctx, payID)
}

// ListPayments lists a tenant's payments.
func (e *Engine) ListPayments(ctx context.Context, tenantID string, opts payment.ListOpts) ([]*payment.Payment, error) {
	return e.store.ListPayments(ctx, tenantID, opts)
}

// AllocationsForPayment returns a payment's allocation rows in sequence order.
func (e *Engine) AllocationsForPayment(ctx context.Context, payID id.PaymentID) ([]*payment.Allocation, error) {
	return e.store.ListAllocationsByPayment(ctx, payID)
}

// AllocationsForInvoice returns every allocation row targeting an invoice.
func (e *Engine) AllocationsForInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Allocation, error) {
	return e.store.ListAllocationsByInvoice(ctx, invID)
}

func sortOldestDueFirst(invs []*invoice.Invoice) {
	sort.SliceStable(invs, func(i, j int) bool {
		if invs[i].DueDate.Equal(invs[j].DueDate) {
			return invs[i].Number < invs[j].Number
		}
		return invs[i].DueDate.Before(invs[j].DueDate)
	})
}
