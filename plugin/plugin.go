// Package plugin provides an extensible plugin system for Remit.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded is called when a new payment is recorded.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, pay interface{}) error
}

// OnPaymentAllocated is called for every committed payment allocation.
type OnPaymentAllocated interface {
	Plugin
	OnPaymentAllocated(ctx context.Context, alloc interface{}) error
}

// OnPaymentPosted is called when a payment's unallocated remainder reaches zero.
type OnPaymentPosted interface {
	Plugin
	OnPaymentPosted(ctx context.Context, pay interface{}) error
}

// OnOverpaymentResolved is called when a caller resolves an overpayment.
type OnOverpaymentResolved interface {
	Plugin
	OnOverpaymentResolved(ctx context.Context, pay, credited interface{}) error
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceCreated is called when a new invoice is created.
type OnInvoiceCreated interface {
	Plugin
	OnInvoiceCreated(ctx context.Context, inv interface{}) error
}

// OnInvoiceTransitioned is called for every status transition, caller-requested
// or automatic.
type OnInvoiceTransitioned interface {
	Plugin
	OnInvoiceTransitioned(ctx context.Context, inv interface{}, from, to string, automatic bool) error
}

// OnInvoiceFinalized is called when an invoice is finalized and its prices locked.
type OnInvoiceFinalized interface {
	Plugin
	OnInvoiceFinalized(ctx context.Context, inv interface{}) error
}

// OnInvoicePaid is called when an invoice's balance reaches zero.
type OnInvoicePaid interface {
	Plugin
	OnInvoicePaid(ctx context.Context, inv interface{}) error
}

// OnDeliveryFlushed is called when queued invoice deliveries are handed to
// the notifier.
type OnDeliveryFlushed interface {
	Plugin
	OnDeliveryFlushed(ctx context.Context, count int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Credit hooks
// ──────────────────────────────────────────────────

// OnCreditCreated is called when a credit is created.
type OnCreditCreated interface {
	Plugin
	OnCreditCreated(ctx context.Context, c interface{}) error
}

// OnCreditApplied is called for every committed credit application.
type OnCreditApplied interface {
	Plugin
	OnCreditApplied(ctx context.Context, app interface{}) error
}

// OnCreditExpired is called when a credit expires with value remaining.
type OnCreditExpired interface {
	Plugin
	OnCreditExpired(ctx context.Context, c interface{}) error
}

// OnCreditCancelled is called when an unused credit is cancelled.
type OnCreditCancelled interface {
	Plugin
	OnCreditCancelled(ctx context.Context, c interface{}, reason string) error
}

// ──────────────────────────────────────────────────
// Dispute hooks
// ──────────────────────────────────────────────────

// OnDisputeOpened is called when a dispute is opened.
type OnDisputeOpened interface {
	Plugin
	OnDisputeOpened(ctx context.Context, d interface{}) error
}

// OnDisputeResolved is called when a dispute reaches a terminal status.
type OnDisputeResolved interface {
	Plugin
	OnDisputeResolved(ctx context.Context, d interface{}) error
}
