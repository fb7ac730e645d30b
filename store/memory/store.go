// Package memory provides an in-memory Store for tests and examples.
// Entities are cloned on every read and write so version checks observe
// real conflicts instead of shared pointers.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/halcyonlabs/remit"
	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/dispute"
	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/payment"
)

type Store struct {
	mu sync.RWMutex

	// Invoice storage
	invoices map[string]*invoice.Invoice
	history  []invoice.HistoryRecord

	// Payment storage
	payments    map[string]*payment.Payment
	allocations []payment.Allocation

	// Credit storage
	credits      map[string]*credit.Credit
	applications []credit.Application

	// Dispute storage
	disputes map[string]*dispute.Dispute
}

func New() *Store {
	return &Store{
		invoices:     make(map[string]*invoice.Invoice),
		history:      make([]invoice.HistoryRecord, 0),
		payments:     make(map[string]*payment.Payment),
		allocations:  make([]payment.Allocation, 0),
		credits:      make(map[string]*credit.Credit),
		applications: make([]credit.Application, 0),
		disputes:     make(map[string]*dispute.Dispute),
	}
}

// Invoice Store implementation
func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invoices[inv.ID.String()] = cloneInvoice(inv)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inv, ok := s.invoices[invID.String()]; ok {
		return cloneInvoice(inv), nil
	}
	return nil, remit.ErrInvoiceNotFound
}

func (s *Store) ListInvoices(_ context.Context, tenantID string, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if inv.TenantID != tenantID {
			continue
		}
		if opts.ClientID != "" && inv.ClientID != opts.ClientID {
			continue
		}
		if opts.Status != "" && inv.Status != opts.Status {
			continue
		}
		result = append(result, cloneInvoice(inv))
	}
	sortByNumber(result)

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) ListOutstandingInvoices(_ context.Context, tenantID, clientID string) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if inv.TenantID != tenantID || inv.ClientID != clientID {
			continue
		}
		if !inv.Status.Payable() || !inv.Balance().IsPositive() {
			continue
		}
		result = append(result, cloneInvoice(inv))
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].DueDate.Equal(result[j].DueDate) {
			return result[i].Number < result[j].Number
		}
		return result[i].DueDate.Before(result[j].DueDate)
	})
	return result, nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv *invoice.Invoice, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.invoices[inv.ID.String()]
	if !ok {
		return remit.ErrInvoiceNotFound
	}
	if stored.Version != expectedVersion {
		return remit.ErrStaleBalance
	}

	inv.Bump()
	s.invoices[inv.ID.String()] = cloneInvoice(inv)
	return nil
}

func (s *Store) AppendInvoiceHistory(_ context.Context, rec *invoice.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, *rec)
	return nil
}

func (s *Store) ListInvoiceHistory(_ context.Context, invID id.InvoiceID) ([]*invoice.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.HistoryRecord, 0)
	for i := range s.history {
		if s.history[i].InvoiceID.String() == invID.String() {
			rec := s.history[i]
			result = append(result, &rec)
		}
	}
	return result, nil
}

// Payment Store implementation
func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payments[p.ID.String()] = clonePayment(p)
	return nil
}

func (s *Store) GetPayment(_ context.Context, payID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payments[payID.String()]; ok {
		return clonePayment(p), nil
	}
	return nil, remit.ErrPaymentNotFound
}

func (s *Store) ListPayments(_ context.Context, tenantID string, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if p.TenantID != tenantID {
			continue
		}
		if opts.ClientID != "" && p.ClientID != opts.ClientID {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		result = append(result, clonePayment(p))
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) UpdatePayment(_ context.Context, p *payment.Payment, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.payments[p.ID.String()]
	if !ok {
		return remit.ErrPaymentNotFound
	}
	if stored.Version != expectedVersion {
		return remit.ErrStaleBalance
	}

	p.Bump()
	s.payments[p.ID.String()] = clonePayment(p)
	return nil
}

func (s *Store) CreateAllocation(_ context.Context, a *payment.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allocations = append(s.allocations, *a)
	return nil
}

func (s *Store) ListAllocationsByPayment(_ context.Context, payID id.PaymentID) ([]*payment.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Allocation, 0)
	for i := range s.allocations {
		if s.allocations[i].PaymentID.String() == payID.String() {
			a := s.allocations[i]
			result = append(result, &a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (s *Store) ListAllocationsByInvoice(_ context.Context, invID id.InvoiceID) ([]*payment.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Allocation, 0)
	for i := range s.allocations {
		if s.allocations[i].InvoiceID.String() == invID.String() {
			a := s.allocations[i]
			result = append(result, &a)
		}
	}
	return result, nil
}

// Credit Store implementation
func (s *Store) CreateCredit(_ context.Context, c *credit.Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credits[c.ID.String()] = cloneCredit(c)
	return nil
}

func (s *Store) GetCredit(_ context.Context, crdID id.CreditID) (*credit.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.credits[crdID.String()]; ok {
		return cloneCredit(c), nil
	}
	return nil, remit.ErrCreditNotFound
}

func (s *Store) ListCredits(_ context.Context, tenantID string, opts credit.ListOpts) ([]*credit.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Credit, 0)
	for _, c := range s.credits {
		if c.TenantID != tenantID {
			continue
		}
		if opts.ClientID != "" && c.ClientID != opts.ClientID {
			continue
		}
		if opts.Status != "" && c.Status != opts.Status {
			continue
		}
		result = append(result, cloneCredit(c))
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) ListOpenCredits(_ context.Context, tenantID string) ([]*credit.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Credit, 0)
	for _, c := range s.credits {
		if c.TenantID != tenantID {
			continue
		}
		if c.Status != credit.StatusAvailable && c.Status != credit.StatusPartial {
			continue
		}
		result = append(result, cloneCredit(c))
	}

	// Oldest credits first so auto-apply consumes them in creation order.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) ListExpiringCredits(_ context.Context, asOf time.Time) ([]*credit.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Credit, 0)
	for _, c := range s.credits {
		if c.ExpiresAt == nil || asOf.Before(*c.ExpiresAt) {
			continue
		}
		if c.Status != credit.StatusAvailable && c.Status != credit.StatusPartial {
			continue
		}
		result = append(result, cloneCredit(c))
	}
	return result, nil
}

func (s *Store) UpdateCredit(_ context.Context, c *credit.Credit, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.credits[c.ID.String()]
	if !ok {
		return remit.ErrCreditNotFound
	}
	if stored.Version != expectedVersion {
		return remit.ErrStaleBalance
	}

	c.Bump()
	s.credits[c.ID.String()] = cloneCredit(c)
	return nil
}

func (s *Store) CreateCreditApplication(_ context.Context, a *credit.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applications = append(s.applications, *a)
	return nil
}

func (s *Store) ListApplicationsByCredit(_ context.Context, crdID id.CreditID) ([]*credit.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Application, 0)
	for i := range s.applications {
		if s.applications[i].CreditID.String() == crdID.String() {
			a := s.applications[i]
			result = append(result, &a)
		}
	}
	return result, nil
}

func (s *Store) ListApplicationsByInvoice(_ context.Context, invID id.InvoiceID) ([]*credit.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Application, 0)
	for i := range s.applications {
		if s.applications[i].InvoiceID.String() == invID.String() {
			a := s.applications[i]
			result = append(result, &a)
		}
	}
	return result, nil
}

// Dispute Store implementation
func (s *Store) CreateDispute(_ context.Context, d *dispute.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disputes[d.ID.String()] = cloneDispute(d)
	return nil
}

func (s *Store) GetDispute(_ context.Context, dspID id.DisputeID) (*dispute.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d, ok := s.disputes[dspID.String()]; ok {
		return cloneDispute(d), nil
	}
	return nil, remit.ErrDisputeNotFound
}

func (s *Store) ListDisputes(_ context.Context, tenantID string, opts dispute.ListOpts) ([]*dispute.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dispute.Dispute, 0)
	for _, d := range s.disputes {
		if d.TenantID != tenantID {
			continue
		}
		if !opts.InvoiceID.IsNil() && d.InvoiceID.String() != opts.InvoiceID.String() {
			continue
		}
		if opts.ClinicID != "" && d.ClinicID != opts.ClinicID {
			continue
		}
		if opts.Status != "" && d.Status != opts.Status {
			continue
		}
		result = append(result, cloneDispute(d))
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) UpdateDispute(_ context.Context, d *dispute.Dispute, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.disputes[d.ID.String()]
	if !ok {
		return remit.ErrDisputeNotFound
	}
	if stored.Version != expectedVersion {
		return remit.ErrStaleBalance
	}

	d.Bump()
	s.disputes[d.ID.String()] = cloneDispute(d)
	return nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions
func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	out := *inv
	out.LineItems = make([]invoice.LineItem, len(inv.LineItems))
	copy(out.LineItems, inv.LineItems)
	out.Metadata = cloneMap(inv.Metadata)
	return &out
}

func clonePayment(p *payment.Payment) *payment.Payment {
	out := *p
	out.Metadata = cloneMap(p.Metadata)
	return &out
}

func cloneCredit(c *credit.Credit) *credit.Credit {
	out := *c
	out.Metadata = cloneMap(c.Metadata)
	return &out
}

func cloneDispute(d *dispute.Dispute) *dispute.Dispute {
	out := *d
	out.Messages = make([]dispute.Message, len(d.Messages))
	copy(out.Messages, d.Messages)
	return &out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortByNumber(invs []*invoice.Invoice) {
	sort.SliceStable(invs, func(i, j int) bool { return invs[i].Number < invs[j].Number })
}
