// Package audithook bridges Remit lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// concrete audit store. Callers inject a RecorderFunc adapter that bridges to
// their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/dispute"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/payment"
	"github.com/halcyonlabs/remit/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnPaymentRecorded     = (*Extension)(nil)
	_ plugin.OnPaymentAllocated    = (*Extension)(nil)
	_ plugin.OnPaymentPosted       = (*Extension)(nil)
	_ plugin.OnOverpaymentResolved = (*Extension)(nil)
	_ plugin.OnInvoiceCreated      = (*Extension)(nil)
	_ plugin.OnInvoiceTransitioned = (*Extension)(nil)
	_ plugin.OnInvoiceFinalized    = (*Extension)(nil)
	_ plugin.OnInvoicePaid         = (*Extension)(nil)
	_ plugin.OnCreditCreated       = (*Extension)(nil)
	_ plugin.OnCreditApplied       = (*Extension)(nil)
	_ plugin.OnCreditExpired       = (*Extension)(nil)
	_ plugin.OnCreditCancelled     = (*Extension)(nil)
	_ plugin.OnDisputeOpened       = (*Extension)(nil)
	_ plugin.OnDisputeResolved     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Remit lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, pay interface{}) error {
	id, kv := paymentFields(pay)
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePayment, id, CategoryPayment, nil, kv...)
}

// OnPaymentAllocated implements plugin.OnPaymentAllocated.
func (e *Extension) OnPaymentAllocated(ctx context.Context, alloc interface{}) error {
	var id string
	kv := []any{"event", "payment_allocated"}
	if a, ok := alloc.(*payment.Allocation); ok {
		id = a.PaymentID.String()
		kv = append(kv,
			"invoice_id", a.InvoiceID.String(),
			"amount_cents", a.Amount.Amount,
			"sequence", a.Sequence,
		)
	}
	return e.record(ctx, ActionPaymentAllocated, SeverityInfo, OutcomeSuccess,
		ResourcePayment, id, CategoryPayment, nil, kv...)
}

// OnPaymentPosted implements plugin.OnPaymentPosted.
func (e *Extension) OnPaymentPosted(ctx context.Context, pay interface{}) error {
	id, kv := paymentFields(pay)
	return e.record(ctx, ActionPaymentPosted, SeverityInfo, OutcomeSuccess,
		ResourcePayment, id, CategoryPayment, nil, kv...)
}

// OnOverpaymentResolved implements plugin.OnOverpaymentResolved.
func (e *Extension) OnOverpaymentResolved(ctx context.Context, pay, credited interface{}) error {
	id, kv := paymentFields(pay)
	if c, ok := credited.(*credit.Credit); ok && c != nil {
		kv = append(kv, "credit_id", c.ID.String(), "credited_cents", c.Amount.Amount)
	}
	return e.record(ctx, ActionOverpayment, SeverityInfo, OutcomeSuccess,
		ResourcePayment, id, CategoryPayment, nil, kv...)
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceCreated implements plugin.OnInvoiceCreated.
func (e *Extension) OnInvoiceCreated(ctx context.Context, inv interface{}) error {
	id, kv := invoiceFields(inv)
	return e.record(ctx, ActionInvoiceCreated, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, id, CategoryBilling, nil, kv...)
}

// OnInvoiceTransitioned implements plugin.OnInvoiceTransitioned.
func (e *Extension) OnInvoiceTransitioned(ctx context.Context, inv interface{}, from, to string, automatic bool) error {
	id, kv := invoiceFields(inv)
	kv = append(kv, "from", from, "to", to, "automatic", automatic)
	return e.record(ctx, ActionInvoiceTransitioned, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, id, CategoryBilling, nil, kv...)
}

// OnInvoiceFinalized implements plugin.OnInvoiceFinalized.
func (e *Extension) OnInvoiceFinalized(ctx context.Context, inv interface{}) error {
	id, kv := invoiceFields(inv)
	return e.record(ctx, ActionInvoiceFinalized, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, id, CategoryBilling, nil, kv...)
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (e *Extension) OnInvoicePaid(ctx context.Context, inv interface{}) error {
	id, kv := invoiceFields(inv)
	return e.record(ctx, ActionInvoicePaid, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, id, CategoryPayment, nil, kv...)
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditCreated implements plugin.OnCreditCreated.
func (e *Extension) OnCreditCreated(ctx context.Context, c interface{}) error {
	id, kv := creditFields(c)
	return e.record(ctx, ActionCreditCreated, SeverityInfo, OutcomeSuccess,
		ResourceCredit, id, CategoryCredit, nil, kv...)
}

// OnCreditApplied implements plugin.OnCreditApplied.
func (e *Extension) OnCreditApplied(ctx context.Context, app interface{}) error {
	var id string
	kv := []any{"event", "credit_applied"}
	if a, ok := app.(*credit.Application); ok {
		id = a.CreditID.String()
		kv = append(kv,
			"invoice_id", a.InvoiceID.String(),
			"amount_cents", a.Amount.Amount,
		)
	}
	return e.record(ctx, ActionCreditApplied, SeverityInfo, OutcomeSuccess,
		ResourceCredit, id, CategoryCredit, nil, kv...)
}

// OnCreditExpired implements plugin.OnCreditExpired.
func (e *Extension) OnCreditExpired(ctx context.Context, c interface{}) error {
	id, kv := creditFields(c)
	return e.record(ctx, ActionCreditExpired, SeverityWarning, OutcomeSuccess,
		ResourceCredit, id, CategoryCredit, nil, kv...)
}

// OnCreditCancelled implements plugin.OnCreditCancelled.
func (e *Extension) OnCreditCancelled(ctx context.Context, c interface{}, reason string) error {
	id, kv := creditFields(c)
	kv = append(kv, "cancel_reason", reason)
	return e.record(ctx, ActionCreditCancelled, SeverityWarning, OutcomeSuccess,
		ResourceCredit, id, CategoryCredit, nil, kv...)
}

// ──────────────────────────────────────────────────
// Dispute hooks
// ──────────────────────────────────────────────────

// OnDisputeOpened implements plugin.OnDisputeOpened.
func (e *Extension) OnDisputeOpened(ctx context.Context, d interface{}) error {
	id, kv := disputeFields(d)
	return e.record(ctx, ActionDisputeOpened, SeverityWarning, OutcomeSuccess,
		ResourceDispute, id, CategoryDispute, nil, kv...)
}

// OnDisputeResolved implements plugin.OnDisputeResolved.
func (e *Extension) OnDisputeResolved(ctx context.Context, d interface{}) error {
	id, kv := disputeFields(d)
	return e.record(ctx, ActionDisputeResolved, SeverityInfo, OutcomeSuccess,
		ResourceDispute, id, CategoryDispute, nil, kv...)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func paymentFields(v interface{}) (string, []any) {
	kv := []any{"event", "payment"}
	p, ok := v.(*payment.Payment)
	if !ok {
		return "", kv
	}
	kv = append(kv,
		"tenant_id", p.TenantID,
		"client_id", p.ClientID,
		"amount_cents", p.Amount.Amount,
		"unallocated_cents", p.Unallocated.Amount,
		"status", string(p.Status),
	)
	return p.ID.String(), kv
}

func invoiceFields(v interface{}) (string, []any) {
	kv := []any{"event", "invoice"}
	inv, ok := v.(*invoice.Invoice)
	if !ok {
		return "", kv
	}
	kv = append(kv,
		"tenant_id", inv.TenantID,
		"client_id", inv.ClientID,
		"number", inv.Number,
		"status", string(inv.Status),
		"balance_cents", inv.Balance().Amount,
	)
	return inv.ID.String(), kv
}

func creditFields(v interface{}) (string, []any) {
	kv := []any{"event", "credit"}
	c, ok := v.(*credit.Credit)
	if !ok {
		return "", kv
	}
	kv = append(kv,
		"tenant_id", c.TenantID,
		"client_id", c.ClientID,
		"source_type", string(c.SourceType),
		"remaining_cents", c.Remaining.Amount,
		"status", string(c.Status),
	)
	return c.ID.String(), kv
}

func disputeFields(v interface{}) (string, []any) {
	kv := []any{"event", "dispute"}
	d, ok := v.(*dispute.Dispute)
	if !ok {
		return "", kv
	}
	kv = append(kv,
		"tenant_id", d.TenantID,
		"invoice_id", d.InvoiceID.String(),
		"clinic_id", d.ClinicID,
		"status", string(d.Status),
		"disputed_cents", d.DisputedAmount.Amount,
	)
	return d.ID.String(), kv
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
