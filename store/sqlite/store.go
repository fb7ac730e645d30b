// Package sqlite implements the Remit store on SQLite via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/halcyonlabs/remit"
	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/dispute"
	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/payment"
	remitstore "github.com/halcyonlabs/remit/store"
)

// compile-time interface check
var _ remitstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("remit/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("remit/sqlite: migration failed: %w", err)
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", invID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, remit.ErrInvoiceNotFound
		}
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (s *Store) ListInvoices(ctx context.Context, tenantID string, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	q := s.sdb.NewSelect(&models).Where("tenant_id = ?", tenantID)

	if opts.ClientID != "" {
		q = q.Where("client_id = ?", opts.ClientID)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("number ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("client_id = ?", clientID).
		Where("status IN (?, ?, ?, ?, ?)",
			string(invoice.StatusFinalized),
			string(invoice.StatusSent),
			string(invoice.StatusPartialPayment),
			string(invoice.StatusOnHold),
			string(invoice.StatusResolved)).
		Where("total_cents - paid_cents > 0").
		OrderExpr("due_date ASC, number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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

	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("status = ?", m.Status).
		Set("total_cents = ?", m.TotalCents).
		Set("paid_cents = ?", m.PaidCents).
		Set("line_items = ?", m.LineItems).
		Set("finalized_at = ?", m.FinalizedAt).
		Set("paid_at = ?", m.PaidAt).
		Set("cancelled_at = ?", m.CancelledAt).
		Set("updated_at = ?", t).
		Set("version = ?", expectedVersion+1).
		Where("id = ?", m.ID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.staleOrMissing(ctx, "remit_invoices", m.ID, remit.ErrInvoiceNotFound)
	}
	inv.Bump()
	return nil
}

func (s *Store) AppendInvoiceHistory(ctx context.Context, rec *invoice.HistoryRecord) error {
	m := toHistoryModel(rec)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListInvoiceHistory(ctx context.Context, invID id.InvoiceID) ([]*invoice.HistoryRecord, error) {
	var models []historyModel
	err := s.sdb.NewSelect(&models).
		Where("invoice_id = ?", invID.String()).
		OrderExpr("at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", payID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, remit.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) ListPayments(ctx context.Context, tenantID string, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.sdb.NewSelect(&models).Where("tenant_id = ?", tenantID)

	if opts.ClientID != "" {
		q = q.Where("client_id = ?", opts.ClientID)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("received_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

	res, err := s.sdb.NewUpdate((*paymentModel)(nil)).
		Set("status = ?", m.Status).
		Set("allocated_cents = ?", m.AllocatedCents).
		Set("unallocated_cents = ?", m.UnallocatedCents).
		Set("posted_at = ?", m.PostedAt).
		Set("updated_at = ?", t).
		Set("version = ?", expectedVersion+1).
		Where("id = ?", m.ID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.staleOrMissing(ctx, "remit_payments", m.ID, remit.ErrPaymentNotFound)
	}
	p.Bump()
	return nil
}

func (s *Store) CreateAllocation(ctx context.Context, a *payment.Allocation) error {
	m := toAllocationModel(a)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListAllocationsByPayment(ctx context.Context, payID id.PaymentID) ([]*payment.Allocation, error) {
	var models []allocationModel
	err := s.sdb.NewSelect(&models).
		Where("payment_id = ?", payID.String()).
		OrderExpr("sequence ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	err := s.sdb.NewSelect(&models).
		Where("invoice_id = ?", invID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetCredit(ctx context.Context, crdID id.CreditID) (*credit.Credit, error) {
	m := new(creditModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", crdID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, remit.ErrCreditNotFound
		}
		return nil, err
	}
	return fromCreditModel(m)
}

func (s *Store) ListCredits(ctx context.Context, tenantID string, opts credit.ListOpts) ([]*credit.Credit, error) {
	var models []creditModel
	q := s.sdb.NewSelect(&models).Where("tenant_id = ?", tenantID)

	if opts.ClientID != "" {
		q = q.Where("client_id = ?", opts.ClientID)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("status IN (?, ?)", string(credit.StatusAvailable), string(credit.StatusPartial)).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	err := s.sdb.NewSelect(&models).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", asOf).
		Where("status IN (?, ?)", string(credit.StatusAvailable), string(credit.StatusPartial)).
		Scan(ctx)
	if err != nil {
		return nil, err
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

	res, err := s.sdb.NewUpdate((*creditModel)(nil)).
		Set("status = ?", m.Status).
		Set("remaining_cents = ?", m.RemainingCents).
		Set("cancel_reason = ?", m.CancelReason).
		Set("updated_at = ?", t).
		Set("version = ?", expectedVersion+1).
		Where("id = ?", m.ID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.staleOrMissing(ctx, "remit_credits", m.ID, remit.ErrCreditNotFound)
	}
	c.Bump()
	return nil
}

func (s *Store) CreateCreditApplication(ctx context.Context, a *credit.Application) error {
	m := toApplicationModel(a)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListApplicationsByCredit(ctx context.Context, crdID id.CreditID) ([]*credit.Application, error) {
	var models []applicationModel
	err := s.sdb.NewSelect(&models).
		Where("credit_id = ?", crdID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	err := s.sdb.NewSelect(&models).
		Where("invoice_id = ?", invID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetDispute(ctx context.Context, dspID id.DisputeID) (*dispute.Dispute, error) {
	m := new(disputeModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", dspID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, remit.ErrDisputeNotFound
		}
		return nil, err
	}
	return fromDisputeModel(m)
}

func (s *Store) ListDisputes(ctx context.Context, tenantID string, opts dispute.ListOpts) ([]*dispute.Dispute, error) {
	var models []disputeModel
	q := s.sdb.NewSelect(&models).Where("tenant_id = ?", tenantID)

	if !opts.InvoiceID.IsNil() {
		q = q.Where("invoice_id = ?", opts.InvoiceID.String())
	}
	if opts.ClinicID != "" {
		q = q.Where("clinic_id = ?", opts.ClinicID)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

	res, err := s.sdb.NewUpdate((*disputeModel)(nil)).
		Set("status = ?", m.Status).
		Set("messages = ?", m.Messages).
		Set("resolution = ?", m.Resolution).
		Set("resolved_by = ?", m.ResolvedBy).
		Set("resolved_at = ?", m.ResolvedAt).
		Set("updated_at = ?", t).
		Set("version = ?", expectedVersion+1).
		Where("id = ?", m.ID).
		Where("version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.staleOrMissing(ctx, "remit_disputes", m.ID, remit.ErrDisputeNotFound)
	}
	d.Bump()
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// staleOrMissing distinguishes a lost version race from a missing row after
// a conditional update touched zero rows.
func (s *Store) staleOrMissing(ctx context.Context, table, rowID string, notFound error) error {
	var n int
	err := s.sdb.NewRaw(`SELECT COUNT(*) FROM `+table+` WHERE id = ?`, rowID).Scan(ctx, &n)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return remit.ErrStaleBalance
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
