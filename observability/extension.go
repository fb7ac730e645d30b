// Package observability provides a metrics extension for Remit that records
// lifecycle event counts via go-utils MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/payment"
	"github.com/halcyonlabs/remit/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentAllocated    = (*MetricsExtension)(nil)
	_ plugin.OnPaymentPosted       = (*MetricsExtension)(nil)
	_ plugin.OnOverpaymentResolved = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceCreated      = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceTransitioned = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceFinalized    = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePaid         = (*MetricsExtension)(nil)
	_ plugin.OnDeliveryFlushed     = (*MetricsExtension)(nil)
	_ plugin.OnCreditCreated       = (*MetricsExtension)(nil)
	_ plugin.OnCreditApplied       = (*MetricsExtension)(nil)
	_ plugin.OnCreditExpired       = (*MetricsExtension)(nil)
	_ plugin.OnCreditCancelled     = (*MetricsExtension)(nil)
	_ plugin.OnDisputeOpened       = (*MetricsExtension)(nil)
	_ plugin.OnDisputeResolved     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Remit plugin to automatically track billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Payment metrics
	PaymentRecorded     Counter
	PaymentPosted       Counter
	PaymentAmount       Histogram
	AllocationsApplied  Counter
	AllocationAmount    Histogram
	OverpaymentResolved Counter

	// Invoice metrics
	InvoiceCreated     Counter
	InvoiceTransitions Counter
	InvoiceFinalized   Counter
	InvoicePaid        Counter
	InvoiceTotal       Histogram

	// Delivery metrics
	DeliveriesFlushed    Counter
	DeliveryBatchSize    Histogram
	DeliveryFlushLatency Histogram

	// Credit metrics
	CreditCreated   Counter
	CreditApplied   Counter
	CreditExpired   Counter
	CreditCancelled Counter
	CreditAmount    Histogram

	// Dispute metrics
	DisputeOpened   Counter
	DisputeResolved Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Payment metrics
		PaymentRecorded:     factory.Counter("remit.payment.recorded"),
		PaymentPosted:       factory.Counter("remit.payment.posted"),
		PaymentAmount:       factory.Histogram("remit.payment.amount_cents"),
		AllocationsApplied:  factory.Counter("remit.allocation.applied"),
		AllocationAmount:    factory.Histogram("remit.allocation.amount_cents"),
		OverpaymentResolved: factory.Counter("remit.payment.overpayment_resolved"),

		// Invoice metrics
		InvoiceCreated:     factory.Counter("remit.invoice.created"),
		InvoiceTransitions: factory.Counter("remit.invoice.transitions"),
		InvoiceFinalized:   factory.Counter("remit.invoice.finalized"),
		InvoicePaid:        factory.Counter("remit.invoice.paid"),
		InvoiceTotal:       factory.Histogram("remit.invoice.total_cents"),

		// Delivery metrics
		DeliveriesFlushed:    factory.Counter("remit.delivery.flushed"),
		DeliveryBatchSize:    factory.Histogram("remit.delivery.batch.size"),
		DeliveryFlushLatency: factory.Histogram("remit.delivery.flush.latency_ms"),

		// Credit metrics
		CreditCreated:   factory.Counter("remit.credit.created"),
		CreditApplied:   factory.Counter("remit.credit.applied"),
		CreditExpired:   factory.Counter("remit.credit.expired"),
		CreditCancelled: factory.Counter("remit.credit.cancelled"),
		CreditAmount:    factory.Histogram("remit.credit.amount_cents"),

		// Dispute metrics
		DisputeOpened:   factory.Counter("remit.dispute.opened"),
		DisputeResolved: factory.Counter("remit.dispute.resolved"),

		// Error metrics
		StoreErrors:  factory.Counter("remit.store.errors"),
		PluginErrors: factory.Counter("remit.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, pay interface{}) error {
	m.PaymentRecorded.Inc()
	if p, ok := pay.(*payment.Payment); ok {
		m.PaymentAmount.Observe(float64(p.Amount.Amount))
	}
	return nil
}

// OnPaymentAllocated implements plugin.OnPaymentAllocated.
func (m *MetricsExtension) OnPaymentAllocated(_ context.Context, alloc interface{}) error {
	m.AllocationsApplied.Inc()
	if a, ok := alloc.(*payment.Allocation); ok {
		m.AllocationAmount.Observe(float64(a.Amount.Amount))
	}
	return nil
}

// OnPaymentPosted implements plugin.OnPaymentPosted.
func (m *MetricsExtension) OnPaymentPosted(_ context.Context, _ interface{}) error {
	m.PaymentPosted.Inc()
	return nil
}

// OnOverpaymentResolved implements plugin.OnOverpaymentResolved.
func (m *MetricsExtension) OnOverpaymentResolved(_ context.Context, _, _ interface{}) error {
	m.OverpaymentResolved.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceCreated implements plugin.OnInvoiceCreated.
func (m *MetricsExtension) OnInvoiceCreated(_ context.Context, inv interface{}) error {
	m.InvoiceCreated.Inc()
	if i, ok := inv.(*invoice.Invoice); ok {
		m.InvoiceTotal.Observe(float64(i.Total.Amount))
	}
	return nil
}

// OnInvoiceTransitioned implements plugin.OnInvoiceTransitioned.
func (m *MetricsExtension) OnInvoiceTransitioned(_ context.Context, _ interface{}, _, _ string, _ bool) error {
	m.InvoiceTransitions.Inc()
	return nil
}

// OnInvoiceFinalized implements plugin.OnInvoiceFinalized.
func (m *MetricsExtension) OnInvoiceFinalized(_ context.Context, _ interface{}) error {
	m.InvoiceFinalized.Inc()
	return nil
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (m *MetricsExtension) OnInvoicePaid(_ context.Context, _ interface{}) error {
	m.InvoicePaid.Inc()
	return nil
}

// OnDeliveryFlushed implements plugin.OnDeliveryFlushed.
func (m *MetricsExtension) OnDeliveryFlushed(_ context.Context, count int, elapsed time.Duration) error {
	m.DeliveriesFlushed.Add(float64(count))
	m.DeliveryBatchSize.Observe(float64(count))
	m.DeliveryFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Credit lifecycle hooks
// ──────────────────────────────────────────────────

// OnCreditCreated implements plugin.OnCreditCreated.
func (m *MetricsExtension) OnCreditCreated(_ context.Context, c interface{}) error {
	m.CreditCreated.Inc()
	if cr, ok := c.(*credit.Credit); ok {
		m.CreditAmount.Observe(float64(cr.Amount.Amount))
	}
	return nil
}

// OnCreditApplied implements plugin.OnCreditApplied.
func (m *MetricsExtension) OnCreditApplied(_ context.Context, _ interface{}) error {
	m.CreditApplied.Inc()
	return nil
}

// OnCreditExpired implements plugin.OnCreditExpired.
func (m *MetricsExtension) OnCreditExpired(_ context.Context, _ interface{}) error {
	m.CreditExpired.Inc()
	return nil
}

// OnCreditCancelled implements plugin.OnCreditCancelled.
func (m *MetricsExtension) OnCreditCancelled(_ context.Context, _ interface{}, _ string) error {
	m.CreditCancelled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Dispute lifecycle hooks
// ──────────────────────────────────────────────────

// OnDisputeOpened implements plugin.OnDisputeOpened.
func (m *MetricsExtension) OnDisputeOpened(_ context.Context, _ interface{}) error {
	m.DisputeOpened.Inc()
	return nil
}

// OnDisputeResolved implements plugin.OnDisputeResolved.
func (m *MetricsExtension) OnDisputeResolved(_ context.Context, _ interface{}) error {
	m.DisputeResolved.Inc()
	return nil
}
