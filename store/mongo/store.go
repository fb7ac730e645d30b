// Package mongo implements the Remit store on MongoDB via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/halcyonlabs/remit"
	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/dispute"
	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/payment"
	remitstore "github.com/halcyonlabs/remit/store"
)

// Collection name constants.
const (
	colInvoices     = "remit_invoices"
	colHistory      = "remit_invoice_history"
	colPayments     = "remit_payments"
	colAllocations  = "remit_allocations"
	colCredits      = "remit_credits"
	colApplications = "remit_credit_applications"
	colDisputes     = "remit_disputes"
)

// compile-time interface check
var _ remitstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all remit collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("remit/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("remit/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": invID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, remit.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("remit/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) ListInvoices(ctx context.Context, tenantID string, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel

	filter := bson.M{"tenant_id": tenantID}
	if opts.ClientID != "" {
		filter["client_id"] = opts.ClientID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "number", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("remit/mongo: list invoices: %w", err)
	}

	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

func (s *Store) ListOutstandingInvoices(ctx context.Context, tenantID, clientID string) ([]*invoice.Invoice, error) {
	var models []invoiceModel

	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"tenant_id": tenantID,
			"client_id": clientID,
			"status": bson.M{"$in": []string{
				string(invoice.StatusFinalized),
				string(invoice.StatusSent),
				string(invoice.StatusPartialPayment),
				string(invoice.StatusOnHold),
				string(invoice.StatusResolved),
			}},
			"$expr": bson.M{"$gt": bson.A{
				bson.M{"$subtract": bson.A{"$total_cents", "$paid_cents"}},
				0,
			}},
		}).
		Sort(bson.D{{Key: "due_date", Value: 1}, {Key: "number", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("remit/mongo: list outstanding invoices: %w", err)
	}

	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice, expectedVersion int64) error {
	m := toInvoiceModel(inv)
	t := now()

	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": m.ID, "version": expectedVersion}).
		Set("status", m.Status).
		Set("total_cents", m.TotalCents).
		Set("paid_cents", m.PaidCents).
		Set("line_items", m.LineItems).
		Set("finalized_at", m.FinalizedAt).
		Set("paid_at", m.PaidAt).
		Set("cancelled_at", m.CancelledAt).
		Set("updated_at", t).
		Set("version", expectedVersion+1).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remit/mongo: update invoice: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.staleOrMissing(ctx, colInvoices, m.ID, remit.ErrInvoiceNotFound)
	}
	inv.Bump()
	return nil
}

func (s *Store) AppendInvoiceHistory(ctx context.Context, rec *invoice.HistoryRecord) error {
	m := toHistoryModel(rec)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("remit/mongo: append invoice history: %w", err)
	}
	return nil
}

func (s *Store) ListInvoiceHistory(ctx context.Context, invID id.InvoiceID) ([]*invoice.HistoryRecord, error) {
	var models []historyModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"invoice_id": invID.String()}).
		Sort(bson.D{{Key: "at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("remit/mongo: list invoice history: %w", err)
	}

	result := make([]*invoice.HistoryRecord, len(models))
	for i := range models {
		rec, err := fromHistoryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	m := toPaymentModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("remit/mongo: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": payID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, remit.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("remit/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPayments(ctx context.Context, tenantID string, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel

	filter := bson.M{"tenant_id": tenantID}
	if opts.ClientID != "" {
		filter["client_id"] = opts.ClientID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "received_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("remit/mongo: list payments: %w", err)
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePayment(ctx context.Context, p *payment.Payment, expectedVersion int64) error {
	m := toPaymentModel(p)
	t := now()

	res, err := s.mdb.NewUpdate((*paymentModel)(nil)).
		Filter(bson.M{"_id": m.ID, "version": expectedVersion}).
		Set("status", m.Status).
		Set("allocated_cents", m.AllocatedCents).
		Set("unallocated_cents", m.UnallocatedCents).
		Set("posted_at", m.PostedAt).
		Set("updated_at", t).
		Set("version", expectedVersion+1).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remit/mongo: update payment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.staleOrMissing(ctx, colPayments, m.ID, remit.ErrPaymentNotFound)
	}
	p.Bump()
	return nil
}

func (s *Store) CreateAllocation(ctx context.Context, a *payment.Allocation) error {
	m := toAllocationModel(a)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("remit/mongo: create allocation: %w", err)
	}
	return nil
}

func (s *Store) ListAllocationsByPayment(ctx context.Context, payID id.PaymentID) ([]*payment.Allocation, error) {
	var models []allocationModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"payment_id": payID.String()}).
		Sort(bson.D{{Key: "sequence", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("remit/mongo: list allocations by payment: %w", err)
	}

	result := make([]*payment.Allocation, len(models))
	for i := range models {
		a, err := fromAllocationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) ListAllocationsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Allocation, error) {
	var models []allocationModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"invoice_id": invID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("remit/mongo: list allocations by invoice: %w", err)
	}

	result := make([]*payment.Allocation, len(models))
	for i := range models {
		a, err := fromAllocationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== Credit Store ====================

func (s *Store) CreateCredit(ctx context.Context, c *credit.Credit) error {
	m := toCreditModel(c)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("remit/mongo: create credit: %w", err)
	}
	return nil
}

func (s *Store) GetCredit(ctx context.Context, crdID id.CreditID) (*credit.Credit, error) {
	var m creditModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": crdID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, remit.ErrCreditNotFound
		}
		return nil, fmt.Errorf("remit/mongo: get credit: %w", err)
	}
	return fromCreditModel(&m)
}

func (s *Store) ListCredits(ctx context.Context, tenantID string, opts credit.ListOpts) ([]*credit.Credit, error) {
	var models []creditModel

	filter := bson.M{"tenant_id": tenantID}
	if opts.ClientID != "" {
		filter["client_id"] = opts.ClientID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("remit/mongo: list credits: %w", err)
	}

	result := make([]*credit.Credit, len(models))
	for i := range models {
		c, err := fromCreditModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) ListOpenCredits(ctx context.Context, tenantID string) ([]*credit.Credit, error) {
	var models []creditModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"tenant_id": tenantID,
			"status": bson.M{"$in": []string{
				string(credit.StatusAvailable),
				string(credit.StatusPartial),
			}},
		}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("remit/mongo: list open credits: %w", err)
	}

	result := make([]*credit.Credit, len(models))
	for i := range models {
		c, err := fromCreditModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) ListExpiringCredits(ctx context.Context, asOf time.Time) ([]*credit.Credit, error) {
	var models []creditModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"expires_at": bson.M{"$ne": nil, "$lte": asOf},
			"status": bson.M{"$in": []string{
				string(credit.StatusAvailable),
				string(credit.StatusPartial),
			}},
		}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("remit/mongo: list expiring credits: %w", err)
	}

	result := make([]*credit.Credit, len(models))
	for i := range models {
		c, err := fromCreditModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) UpdateCredit(ctx context.Context, c *credit.Credit, expectedVersion int64) error {
	m := toCreditModel(c)
	t := now()

	res, err := s.mdb.NewUpdate((*creditModel)(nil)).
		Filter(bson.M{"_id": m.ID, "version": expectedVersion}).
		Set("status", m.Status).
		Set("remaining_cents", m.RemainingCents).
		Set("cancel_reason", m.CancelReason).
		Set("updated_at", t).
		Set("version", expectedVersion+1).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remit/mongo: update credit: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.staleOrMissing(ctx, colCredits, m.ID, remit.ErrCreditNotFound)
	}
	c.Bump()
	return nil
}

func (s *Store) CreateCreditApplication(ctx context.Context, a *credit.Application) error {
	m := toApplicationModel(a)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("remit/mongo: create credit application: %w", err)
	}
	return nil
}

func (s *Store) ListApplicationsByCredit(ctx context.Context, crdID id.CreditID) ([]*credit.Application, error) {
	var models []applicationModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"credit_id": crdID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("remit/mongo: list applications by credit: %w", err)
	}

	result := make([]*credit.Application, len(models))
	for i := range models {
		a, err := fromApplicationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) ListApplicationsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*credit.Application, error) {
	var models []applicationModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"invoice_id": invID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("remit/mongo: list applications by invoice: %w", err)
	}

	result := make([]*credit.Application, len(models))
	for i := range models {
		a, err := fromApplicationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// ==================== Dispute Store ====================

func (s *Store) CreateDispute(ctx context.Context, d *dispute.Dispute) error {
	m := toDisputeModel(d)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("remit/mongo: create dispute: %w", err)
	}
	return nil
}

func (s *Store) GetDispute(ctx context.Context, dspID id.DisputeID) (*dispute.Dispute, error) {
	var m disputeModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": dspID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, remit.ErrDisputeNotFound
		}
		return nil, fmt.Errorf("remit/mongo: get dispute: %w", err)
	}
	return fromDisputeModel(&m)
}

func (s *Store) ListDisputes(ctx context.Context, tenantID string, opts dispute.ListOpts) ([]*dispute.Dispute, error) {
	var models []disputeModel

	filter := bson.M{"tenant_id": tenantID}
	if !opts.InvoiceID.IsNil() {
		filter["invoice_id"] = opts.InvoiceID.String()
	}
	if opts.ClinicID != "" {
		filter["clinic_id"] = opts.ClinicID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("remit/mongo: list disputes: %w", err)
	}

	result := make([]*dispute.Dispute, len(models))
	for i := range models {
		d, err := fromDisputeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

func (s *Store) UpdateDispute(ctx context.Context, d *dispute.Dispute, expectedVersion int64) error {
	m := toDisputeModel(d)
	t := now()

	res, err := s.mdb.NewUpdate((*disputeModel)(nil)).
		Filter(bson.M{"_id": m.ID, "version": expectedVersion}).
		Set("status", m.Status).
		Set("messages", m.Messages).
		Set("resolution", m.Resolution).
		Set("resolved_by", m.ResolvedBy).
		Set("resolved_at", m.ResolvedAt).
		Set("updated_at", t).
		Set("version", expectedVersion+1).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remit/mongo: update dispute: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.staleOrMissing(ctx, colDisputes, m.ID, remit.ErrDisputeNotFound)
	}
	d.Bump()
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// staleOrMissing distinguishes a lost version race from a missing document
// after a conditional update matched nothing.
func (s *Store) staleOrMissing(ctx context.Context, col, docID string, notFound error) error {
	n, err := s.mdb.Collection(col).CountDocuments(ctx, bson.M{"_id": docID})
	if err != nil {
		return fmt.Errorf("remit/mongo: count %s: %w", col, err)
	}
	if n == 0 {
		return notFound
	}
	return remit.ErrStaleBalance
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all remit collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colInvoices: {
			{
				Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "client_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}, {Key: "due_date", Value: 1}}},
		},
		colHistory: {
			{Keys: bson.D{{Key: "invoice_id", Value: 1}, {Key: "at", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "client_id", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		colAllocations: {
			{
				Keys:    bson.D{{Key: "payment_id", Value: 1}, {Key: "invoice_id", Value: 1}, {Key: "line_item_id", Value: 1}, {Key: "sequence", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "payment_id", Value: 1}, {Key: "sequence", Value: 1}}},
			{Keys: bson.D{{Key: "invoice_id", Value: 1}}},
		},
		colCredits: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "client_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		colApplications: {
			{Keys: bson.D{{Key: "credit_id", Value: 1}}},
			{Keys: bson.D{{Key: "invoice_id", Value: 1}}},
		},
		colDisputes: {
			{Keys: bson.D{{Key: "invoice_id", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "clinic_id", Value: 1}, {Key: "status", Value: 1}}},
		},
	}
}
