package store

import (
	"context"
	"time"

	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/dispute"
	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/payment"
)

// Store is the unified storage interface for all Remit entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// Every Update* method is a conditional write: it succeeds only when the
// stored entity version equals expectedVersion, and fails with the engine's
// stale-balance sentinel otherwise. Allocation, application, and history
// rows are append-only.
type Store interface {
	// Invoice methods
	CreateInvoice(ctx context.Context, inv *invoice.Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, tenantID string, opts invoice.ListOpts) ([]*invoice.Invoice, error)
	ListOutstandingInvoices(ctx context.Context, tenantID, clientID string) ([]*invoice.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *invoice.Invoice, expectedVersion int64) error
	AppendInvoiceHistory(ctx context.Context, rec *invoice.HistoryRecord) error
	ListInvoiceHistory(ctx context.Context, invID id.InvoiceID) ([]*invoice.HistoryRecord, error)

	// Payment methods
	CreatePayment(ctx context.Context, p *payment.Payment) error
	GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error)
	ListPayments(ctx context.Context, tenantID string, opts payment.ListOpts) ([]*payment.Payment, error)
	UpdatePayment(ctx context.Context, p *payment.Payment, expectedVersion int64) error
	CreateAllocation(ctx context.Context, a *payment.Allocation) error
	ListAllocationsByPayment(ctx context.Context, payID id.PaymentID) ([]*payment.Allocation, error)
	ListAllocationsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Allocation, error)

	// Credit methods
	CreateCredit(ctx context.Context, c *credit.Credit) error
	GetCredit(ctx context.Context, crdID id.CreditID) (*credit.Credit, error)
	ListCredits(ctx context.Context, tenantID string, opts credit.ListOpts) ([]*credit.Credit, error)
	ListOpenCredits(ctx context.Context, tenantID string) ([]*credit.Credit, error)
	ListExpiringCredits(ctx context.Context, asOf time.Time) ([]*credit.Credit, error)
	UpdateCredit(ctx context.Context, c *credit.Credit, expectedVersion int64) error
	CreateCreditApplication(ctx context.Context, a *credit.Application) error
	ListApplicationsByCredit(ctx context.Context, crdID id.CreditID) ([]*credit.Application, error)
	ListApplicationsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*credit.Application, error)

	// Dispute methods
	CreateDispute(ctx context.Context, d *dispute.Dispute) error
	GetDispute(ctx context.Context, dspID id.DisputeID) (*dispute.Dispute, error)
	ListDisputes(ctx context.Context, tenantID string, opts dispute.ListOpts) ([]*dispute.Dispute, error)
	UpdateDispute(ctx context.Context, d *dispute.Dispute, expectedVersion int64) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
