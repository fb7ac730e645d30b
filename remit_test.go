package remit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/halcyonlabs/remit"
	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/dispute"
	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/payment"
	"github.com/halcyonlabs/remit/store"
	"github.com/halcyonlabs/remit/store/memory"
	"github.com/halcyonlabs/remit/types"
)

var testClock = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(opts ...remit.Option) *remit.Engine {
	base := []remit.Option{
		remit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		remit.WithClock(func() time.Time { return testClock }),
	}
	return remit.New(memory.New(), append(base, opts...)...)
}

// newSentInvoice creates an invoice with a single line item, finalizes it,
// and marks it sent so it can receive allocations.
func newSentInvoice(t *testing.T, e *remit.Engine, number string, cents int64, due time.Time) *invoice.Invoice {
	t.Helper()
	ctx := context.Background()

	inv := &invoice.Invoice{
		TenantID: "tenant_1",
		ClientID: "clinic_1",
		Number:   number,
		DueDate:  due,
		LineItems: []invoice.LineItem{
			{
				Accession:   "ACC-" + number,
				CPTCode:     "80053",
				PatientName: "Doe, Jane",
				Amount:      types.USD(cents),
				Active:      true,
			},
		},
	}
	if err := e.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, err := e.TransitionInvoice(ctx, inv.ID, invoice.StatusFinalized, ""); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	sent, err := e.TransitionInvoice(ctx, inv.ID, invoice.StatusSent, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return sent
}

// racingStore wraps a store and counts payment and credit reads so a test
// can inject a competing write at an exact point between an operation's
// validation read and its settlement read.
type racingStore struct {
	store.Store
	paymentReads      int
	beforePaymentRead func(n int)
	creditReads       int
	beforeCreditRead  func(n int)
}

func (s *racingStore) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	s.paymentReads++
	if s.beforePaymentRead != nil {
		s.beforePaymentRead(s.paymentReads)
	}
	return s.Store.GetPayment(ctx, payID)
}

func (s *racingStore) GetCredit(ctx context.Context, crdID id.CreditID) (*credit.Credit, error) {
	s.creditReads++
	if s.beforeCreditRead != nil {
		s.beforeCreditRead(s.creditReads)
	}
	return s.Store.GetCredit(ctx, crdID)
}

func newRecordedPayment(t *testing.T, e *remit.Engine, number string, cents int64) *payment.Payment {
	t.Helper()
	pay := &payment.Payment{
		TenantID: "tenant_1",
		ClientID: "clinic_1",
		Number:   number,
		Amount:   types.USD(cents),
	}
	if err := e.PostPayment(context.Background(), pay); err != nil {
		t.Fatalf("PostPayment: %v", err)
	}
	return pay
}

func TestCreateInvoiceComputesTotal(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := &invoice.Invoice{
		TenantID: "tenant_1",
		ClientID: "clinic_1",
		Number:   "INV-1001",
		LineItems: []invoice.LineItem{
			{Accession: "A1", Amount: types.USD(30000), Active: true},
			{Accession: "A2", Amount: types.USD(20000), Active: true},
			{Accession: "A3", Amount: types.USD(99999), Active: false},
		},
	}
	if err := e.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if inv.Status != invoice.StatusDraft {
		t.Errorf("status: got %s, want draft", inv.Status)
	}
	// Inactive line items do not count toward the total.
	if !inv.Total.Equal(types.USD(50000)) {
		t.Errorf("total: got %v, want %v", inv.Total, types.USD(50000))
	}
	if !inv.Paid.IsZero() {
		t.Errorf("paid: got %v, want zero", inv.Paid)
	}
	for _, li := range inv.LineItems {
		if li.ID.IsNil() {
			t.Error("line item missing generated ID")
		}
		if li.InvoiceID.String() != inv.ID.String() {
			t.Error("line item not stamped with invoice ID")
		}
	}
}

func TestCreateInvoiceRejectsNegativeLineItem(t *testing.T) {
	e := newTestEngine()

	inv := &invoice.Invoice{
		TenantID: "tenant_1",
		ClientID: "clinic_1",
		Number:   "INV-1002",
		LineItems: []invoice.LineItem{
			{Accession: "A1", Amount: types.USD(-100), Active: true},
		},
	}
	if err := e.CreateInvoice(context.Background(), inv); !errors.Is(err, remit.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestFinalizeLocksPricesAndRequiresActiveItems(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	// An invoice whose only line item is inactive cannot be finalized.
	empty := &invoice.Invoice{
		TenantID: "tenant_1",
		ClientID: "clinic_1",
		Number:   "INV-2001",
		LineItems: []invoice.LineItem{
			{Accession: "A1", Amount: types.USD(1000), Active: false},
		},
	}
	if err := e.CreateInvoice(ctx, empty); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, err := e.TransitionInvoice(ctx, empty.ID, invoice.StatusFinalized, ""); !errors.Is(err, remit.ErrNothingToFinalize) {
		t.Fatalf("expected ErrNothingToFinalize, got %v", err)
	}

	inv := &invoice.Invoice{
		TenantID: "tenant_1",
		ClientID: "clinic_1",
		Number:   "INV-2002",
		LineItems: []invoice.LineItem{
			{Accession: "A1", Amount: types.USD(1000), Active: true},
		},
	}
	if err := e.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	finalized, err := e.TransitionInvoice(ctx, inv.ID, invoice.StatusFinalized, "")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalized.FinalizedAt == nil {
		t.Error("FinalizedAt not stamped")
	}
	for _, li := range finalized.LineItems {
		if !li.PriceLocked {
			t.Error("line item price not locked on finalization")
		}
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := &invoice.Invoice{
		TenantID: "tenant_1",
		ClientID: "clinic_1",
		Number:   "INV-2003",
		LineItems: []invoice.LineItem{
			{Accession: "A1", Amount: types.USD(1000), Active: true},
		},
	}
	if err := e.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	// Draft cannot jump straight to sent.
	if _, err := e.TransitionInvoice(ctx, inv.ID, invoice.StatusSent, ""); !errors.Is(err, remit.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}

	// Unknown target status is rejected outright.
	if _, err := e.TransitionInvoice(ctx, inv.ID, invoice.Status("bogus"), ""); !errors.Is(err, remit.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition for unknown status, got %v", err)
	}
}

func TestTransitionHistoryRecorded(t *testing.T) {
	e := newTestEngine()
	ctx := remit.ContextWithActor(context.Background(), "billing-admin")

	inv := &invoice.Invoice{
		TenantID: "tenant_1",
		ClientID: "clinic_1",
		Number:   "INV-2004",
		LineItems: []invoice.LineItem{
			{Accession: "A1", Amount: types.USD(1000), Active: true},
		},
	}
	if err := e.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, err := e.TransitionInvoice(ctx, inv.ID, invoice.StatusFinalized, "ready for billing"); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := e.TransitionInvoice(ctx, inv.ID, invoice.StatusSent, ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	history, err := e.InvoiceHistory(ctx, inv.ID)
	if err != nil {
		t.Fatalf("InvoiceHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(history))
	}
	first := history[0]
	if first.From != invoice.StatusDraft || first.To != invoice.StatusFinalized {
		t.Errorf("first record: %s -> %s", first.From, first.To)
	}
	if first.Actor != "billing-admin" {
		t.Errorf("actor: got %q, want billing-admin", first.Actor)
	}
	if first.Note != "ready for billing" {
		t.Errorf("note: got %q", first.Note)
	}
	if first.Automatic {
		t.Error("caller-requested transition marked automatic")
	}
}

func TestFullPaymentPostsAndPaysInvoice(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-3001", 50000, testClock.AddDate(0, 0, 30))
	pay := newRecordedPayment(t, e, "PAY-3001", 50000)

	res, err := e.AllocateToInvoice(ctx, pay.ID, inv.ID, types.USD(50000))
	if err != nil {
		t.Fatalf("AllocateToInvoice: %v", err)
	}

	if res.InvoiceStatus != invoice.StatusPaid {
		t.Errorf("invoice status: got %s, want paid", res.InvoiceStatus)
	}
	if !res.InvoiceBalance.IsZero() {
		t.Errorf("invoice balance: got %v, want zero", res.InvoiceBalance)
	}
	if !res.PaymentPosted {
		t.Error("payment not posted after full allocation")
	}
	if !res.PaymentUnallocated.IsZero() {
		t.Errorf("payment unallocated: got %v, want zero", res.PaymentUnallocated)
	}

	got, err := e.GetPayment(ctx, pay.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.Status != payment.StatusPosted {
		t.Errorf("payment status: got %s, want posted", got.Status)
	}
	if got.PostedAt == nil {
		t.Error("PostedAt not stamped")
	}
	if !got.Balanced() {
		t.Error("allocated + unallocated no longer equals amount")
	}

	paidInv, err := e.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if paidInv.PaidAt == nil {
		t.Error("PaidAt not stamped")
	}
	if bal := paidInv.LineItems[0].Balance(); !bal.IsZero() {
		t.Errorf("line item balance: got %v, want zero", bal)
	}
}

func TestPartialPaymentAdvancesStatus(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-3002", 50000, testClock.AddDate(0, 0, 30))
	pay := newRecordedPayment(t, e, "PAY-3002", 20000)

	res, err := e.AllocateToInvoice(ctx, pay.ID, inv.ID, types.USD(20000))
	if err != nil {
		t.Fatalf("AllocateToInvoice: %v", err)
	}

	if res.InvoiceStatus != invoice.StatusPartialPayment {
		t.Errorf("invoice status: got %s, want partial_payment", res.InvoiceStatus)
	}
	if !res.InvoiceBalance.Equal(types.USD(30000)) {
		t.Errorf("balance: got %v, want %v", res.InvoiceBalance, types.USD(30000))
	}
	if !res.PaymentPosted {
		t.Error("payment fully consumed but not posted")
	}

	// The automatic edge lands in history flagged automatic.
	history, err := e.InvoiceHistory(ctx, inv.ID)
	if err != nil {
		t.Fatalf("InvoiceHistory: %v", err)
	}
	last := history[len(history)-1]
	if last.To != invoice.StatusPartialPayment || !last.Automatic {
		t.Errorf("last history record: to=%s automatic=%v", last.To, last.Automatic)
	}
}

func TestAllocationValidation(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-3003", 30000, testClock.AddDate(0, 0, 30))
	pay := newRecordedPayment(t, e, "PAY-3003", 50000)

	// Exceeding the invoice balance is rejected with penny-exact context.
	_, err := e.AllocateToInvoice(ctx, pay.ID, inv.ID, types.USD(30001))
	if !errors.Is(err, remit.ErrExceedsInvoiceBalance) {
		t.Fatalf("expected ErrExceedsInvoiceBalance, got %v", err)
	}
	var amountErr *remit.AmountError
	if !errors.As(err, &amountErr) {
		t.Fatalf("expected AmountError, got %T", err)
	}
	if !amountErr.Available.Equal(types.USD(30000)) {
		t.Errorf("available: got %v, want %v", amountErr.Available, types.USD(30000))
	}

	// Exceeding the payment's unallocated remainder is rejected.
	small := newRecordedPayment(t, e, "PAY-3004", 10000)
	if _, err := e.AllocateToInvoice(ctx, small.ID, inv.ID, types.USD(20000)); !errors.Is(err, remit.ErrExceedsPaymentAmount) {
		t.Fatalf("expected ErrExceedsPaymentAmount, got %v", err)
	}

	// Zero and negative amounts are rejected.
	if _, err := e.AllocateToInvoice(ctx, pay.ID, inv.ID, types.USD(0)); !errors.Is(err, remit.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}

	// A draft invoice cannot receive payment.
	draft := &invoice.Invoice{
		TenantID: "tenant_1",
		ClientID: "clinic_1",
		Number:   "INV-3005",
		LineItems: []invoice.LineItem{
			{Accession: "A1", Amount: types.USD(1000), Active: true},
		},
	}
	if err := e.CreateInvoice(ctx, draft); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, err := e.AllocateToInvoice(ctx, pay.ID, draft.ID, types.USD(100)); !errors.Is(err, remit.ErrInvoiceNotPayable) {
		t.Fatalf("expected ErrInvoiceNotPayable, got %v", err)
	}
}

func TestPostedPaymentRefusesFurtherAllocation(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-3006", 50000, testClock.AddDate(0, 0, 30))
	other := newSentInvoice(t, e, "INV-3007", 50000, testClock.AddDate(0, 0, 30))
	pay := newRecordedPayment(t, e, "PAY-3006", 50000)

	if _, err := e.AllocateToInvoice(ctx, pay.ID, inv.ID, types.USD(50000)); err != nil {
		t.Fatalf("AllocateToInvoice: %v", err)
	}

	if _, err := e.AllocateToInvoice(ctx, pay.ID, other.ID, types.USD(100)); !errors.Is(err, remit.ErrAlreadyPosted) {
		t.Fatalf("expected ErrAlreadyPosted, got %v", err)
	}
}

func TestAllocationRowsAppendOnly(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-3008", 50000, testClock.AddDate(0, 0, 30))
	pay := newRecordedPayment(t, e, "PAY-3008", 50000)

	if _, err := e.AllocateToInvoice(ctx, pay.ID, inv.ID, types.USD(20000)); err != nil {
		t.Fatalf("first allocation: %v", err)
	}
	if _, err := e.AllocateToInvoice(ctx, pay.ID, inv.ID, types.USD(30000)); err != nil {
		t.Fatalf("second allocation: %v", err)
	}

	allocs, err := e.AllocationsForPayment(ctx, pay.ID)
	if err != nil {
		t.Fatalf("AllocationsForPayment: %v", err)
	}
	if len(allocs) != 2 {
		t.Fatalf("expected 2 allocation rows, got %d", len(allocs))
	}
	for i, a := range allocs {
		if a.Sequence != int64(i+1) {
			t.Errorf("row %d sequence: got %d, want %d", i, a.Sequence, i+1)
		}
		if a.LineItemID.IsNil() {
			t.Errorf("row %d missing line item target", i)
		}
	}
	if total := types.Sum(allocs[0].Amount, allocs[1].Amount); !total.Equal(types.USD(50000)) {
		t.Errorf("allocation rows sum: got %v, want %v", total, types.USD(50000))
	}

	byInvoice, err := e.AllocationsForInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("AllocationsForInvoice: %v", err)
	}
	if len(byInvoice) != 2 {
		t.Errorf("expected 2 rows by invoice, got %d", len(byInvoice))
	}
}

func TestAllocateAcrossInvoicesOldestDueFirst(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	newest := newSentInvoice(t, e, "INV-4003", 70000, testClock.AddDate(0, 0, 60))
	oldest := newSentInvoice(t, e, "INV-4001", 40000, testClock.AddDate(0, 0, 10))
	middle := newSentInvoice(t, e, "INV-4002", 30000, testClock.AddDate(0, 0, 30))
	pay := newRecordedPayment(t, e, "PAY-4001", 100000)

	// IDs passed out of order; allocation must follow due dates.
	report, err := e.AllocateAcrossInvoices(ctx, pay.ID,
		[]id.InvoiceID{newest.ID, oldest.ID, middle.ID}, remit.StrategyOldestDueFirst)
	if err != nil {
		t.Fatalf("AllocateAcrossInvoices: %v", err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(report.Results))
	}
	if report.Results[0].InvoiceNumber != "INV-4001" ||
		report.Results[1].InvoiceNumber != "INV-4002" ||
		report.Results[2].InvoiceNumber != "INV-4003" {
		t.Errorf("rows out of due-date order: %s, %s, %s",
			report.Results[0].InvoiceNumber, report.Results[1].InvoiceNumber, report.Results[2].InvoiceNumber)
	}

	// $1000.00 covers the first two in full and $300.00 of the third.
	if !report.Results[0].Allocated.Equal(types.USD(40000)) {
		t.Errorf("oldest allocated: got %v", report.Results[0].Allocated)
	}
	if !report.Results[1].Allocated.Equal(types.USD(30000)) {
		t.Errorf("middle allocated: got %v", report.Results[1].Allocated)
	}
	if !report.Results[2].Allocated.Equal(types.USD(30000)) {
		t.Errorf("newest allocated: got %v", report.Results[2].Allocated)
	}
	if !report.TotalAllocated.Equal(types.USD(100000)) {
		t.Errorf("total allocated: got %v", report.TotalAllocated)
	}
	if !report.PaymentUnallocated.IsZero() {
		t.Errorf("unallocated: got %v, want zero", report.PaymentUnallocated)
	}

	// The two fully covered invoices are paid, the third partial.
	for _, tc := range []struct {
		invID  id.InvoiceID
		status invoice.Status
	}{
		{oldest.ID, invoice.StatusPaid},
		{middle.ID, invoice.StatusPaid},
		{newest.ID, invoice.StatusPartialPayment},
	} {
		got, err := e.GetInvoice(ctx, tc.invID)
		if err != nil {
			t.Fatalf("GetInvoice: %v", err)
		}
		if got.Status != tc.status {
			t.Errorf("invoice %s status: got %s, want %s", got.Number, got.Status, tc.status)
		}
	}
}

func TestAllocateAcrossInvoicesUnknownStrategy(t *testing.T) {
	e := newTestEngine()
	pay := newRecordedPayment(t, e, "PAY-4002", 10000)

	_, err := e.AllocateAcrossInvoices(context.Background(), pay.ID, nil, remit.Strategy("newest_first"))
	if !errors.Is(err, remit.ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestResolveOverpaymentCreditRemainder(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-5001", 30000, testClock.AddDate(0, 0, 30))
	pay := newRecordedPayment(t, e, "PAY-5001", 50000)

	outcome, err := e.ResolveOverpayment(ctx, pay.ID, inv.ID, remit.OverpaymentResolution{
		Choice: remit.CreditRemainder,
	})
	if err != nil {
		t.Fatalf("ResolveOverpayment: %v", err)
	}

	if !outcome.Credited.Equal(types.USD(20000)) {
		t.Errorf("credited: got %v, want %v", outcome.Credited, types.USD(20000))
	}
	if outcome.CreditID.IsNil() {
		t.Fatal("expected a credit to be created")
	}
	if outcome.Allocation.InvoiceStatus != invoice.StatusPaid {
		t.Errorf("invoice status: got %s, want paid", outcome.Allocation.InvoiceStatus)
	}
	if !outcome.Allocation.PaymentPosted {
		t.Error("payment not posted after overpayment resolution")
	}

	crd, err := e.GetCredit(ctx, outcome.CreditID)
	if err != nil {
		t.Fatalf("GetCredit: %v", err)
	}
	if crd.SourceType != credit.SourceOverpayment {
		t.Errorf("credit source: got %s, want overpayment", crd.SourceType)
	}
	if !crd.Remaining.Equal(types.USD(20000)) {
		t.Errorf("credit remaining: got %v", crd.Remaining)
	}
	if crd.ClientID != "clinic_1" {
		t.Errorf("credit client: got %s", crd.ClientID)
	}

	got, err := e.GetPayment(ctx, pay.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.Status != payment.StatusPosted {
		t.Errorf("payment status: got %s, want posted", got.Status)
	}
}

func TestResolveOverpaymentAllocateExact(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-5002", 30000, testClock.AddDate(0, 0, 30))
	pay := newRecordedPayment(t, e, "PAY-5002", 50000)

	outcome, err := e.ResolveOverpayment(ctx, pay.ID, inv.ID, remit.OverpaymentResolution{
		Choice: remit.AllocateExact,
		Amount: types.USD(25000),
	})
	if err != nil {
		t.Fatalf("ResolveOverpayment: %v", err)
	}

	if !outcome.Credited.IsZero() {
		t.Errorf("credited: got %v, want zero", outcome.Credited)
	}
	if !outcome.CreditID.IsNil() {
		t.Error("no credit should be created for allocate_exact")
	}
	if !outcome.Allocation.PaymentUnallocated.Equal(types.USD(25000)) {
		t.Errorf("unallocated: got %v, want %v", outcome.Allocation.PaymentUnallocated, types.USD(25000))
	}

	got, err := e.GetPayment(ctx, pay.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.Status != payment.StatusUnposted {
		t.Errorf("payment status: got %s, want unposted", got.Status)
	}
}

func TestResolveOverpaymentRequiresOverpayment(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-5003", 50000, testClock.AddDate(0, 0, 30))
	pay := newRecordedPayment(t, e, "PAY-5003", 30000)

	if _, err := e.ResolveOverpayment(ctx, pay.ID, inv.ID, remit.OverpaymentResolution{
		Choice: remit.CreditRemainder,
	}); !errors.Is(err, remit.ErrNoOverpayment) {
		t.Fatalf("expected ErrNoOverpayment, got %v", err)
	}
}

func TestResolveOverpaymentRejectsUnknownChoice(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-5004", 30000, testClock.AddDate(0, 0, 30))
	pay := newRecordedPayment(t, e, "PAY-5004", 50000)

	if _, err := e.ResolveOverpayment(ctx, pay.ID, inv.ID, remit.OverpaymentResolution{}); !errors.Is(err, remit.ErrUnknownResolution) {
		t.Fatalf("expected ErrUnknownResolution for missing choice, got %v", err)
	}
	if _, err := e.ResolveOverpayment(ctx, pay.ID, inv.ID, remit.OverpaymentResolution{
		Choice: remit.OverpaymentChoice("write_off"),
	}); !errors.Is(err, remit.ErrUnknownResolution) {
		t.Fatalf("expected ErrUnknownResolution for unknown choice, got %v", err)
	}
}

func TestApplyCreditPaysInvoice(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-6001", 20000, testClock.AddDate(0, 0, 30))
	crd, err := e.CreateCredit(ctx, &remit.CreditRequest{
		TenantID:   "tenant_1",
		ClientID:   "clinic_1",
		Amount:     types.USD(50000),
		SourceType: credit.SourceManual,
	})
	if err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}

	res, err := e.ApplyCredit(ctx, crd.ID, inv.ID, types.USD(20000))
	if err != nil {
		t.Fatalf("ApplyCredit: %v", err)
	}

	if res.InvoiceStatus != invoice.StatusPaid {
		t.Errorf("invoice status: got %s, want paid", res.InvoiceStatus)
	}
	if res.CreditStatus != credit.StatusPartial {
		t.Errorf("credit status: got %s, want partial", res.CreditStatus)
	}
	if !res.CreditRemaining.Equal(types.USD(30000)) {
		t.Errorf("credit remaining: got %v, want %v", res.CreditRemaining, types.USD(30000))
	}

	apps, err := e.ApplicationsForCredit(ctx, crd.ID)
	if err != nil {
		t.Fatalf("ApplicationsForCredit: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected 1 application, got %d", len(apps))
	}
	if !apps[0].Amount.Equal(types.USD(20000)) {
		t.Errorf("application amount: got %v", apps[0].Amount)
	}
}

func TestApplyCreditExhaustion(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-6002", 50000, testClock.AddDate(0, 0, 30))
	crd, err := e.CreateCredit(ctx, &remit.CreditRequest{
		TenantID:   "tenant_1",
		ClientID:   "clinic_1",
		Amount:     types.USD(10000),
		SourceType: credit.SourceAdjustment,
	})
	if err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}

	res, err := e.ApplyCredit(ctx, crd.ID, inv.ID, types.USD(10000))
	if err != nil {
		t.Fatalf("ApplyCredit: %v", err)
	}
	if res.CreditStatus != credit.StatusApplied {
		t.Errorf("credit status: got %s, want applied", res.CreditStatus)
	}
	if !res.CreditRemaining.IsZero() {
		t.Errorf("remaining: got %v, want zero", res.CreditRemaining)
	}

	// A fully applied credit refuses further use.
	if _, err := e.ApplyCredit(ctx, crd.ID, inv.ID, types.USD(100)); !errors.Is(err, remit.ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied, got %v", err)
	}
}

func TestApplyCreditValidation(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-6003", 10000, testClock.AddDate(0, 0, 30))
	crd, err := e.CreateCredit(ctx, &remit.CreditRequest{
		TenantID:   "tenant_1",
		ClientID:   "clinic_1",
		Amount:     types.USD(5000),
		SourceType: credit.SourceManual,
	})
	if err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}

	// Exceeding the credit's remaining value is rejected.
	if _, err := e.ApplyCredit(ctx, crd.ID, inv.ID, types.USD(6000)); !errors.Is(err, remit.ErrInsufficientCredit) {
		t.Fatalf("expected ErrInsufficientCredit, got %v", err)
	}

	// An expired credit is unusable.
	past := testClock.Add(-time.Hour)
	expired, err := e.CreateCredit(ctx, &remit.CreditRequest{
		TenantID:   "tenant_1",
		ClientID:   "clinic_1",
		Amount:     types.USD(5000),
		SourceType: credit.SourceManual,
		ExpiresAt:  &past,
	})
	if err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}
	if _, err := e.ApplyCredit(ctx, expired.ID, inv.ID, types.USD(1000)); !errors.Is(err, remit.ErrCreditNotUsable) {
		t.Fatalf("expected ErrCreditNotUsable, got %v", err)
	}
}

func TestAutoApplyCredits(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	older := newSentInvoice(t, e, "INV-7001", 30000, testClock.AddDate(0, 0, 10))
	newer := newSentInvoice(t, e, "INV-7002", 30000, testClock.AddDate(0, 0, 40))

	if _, err := e.CreateCredit(ctx, &remit.CreditRequest{
		TenantID:   "tenant_1",
		ClientID:   "clinic_1",
		Amount:     types.USD(40000),
		SourceType: credit.SourceRefund,
	}); err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}

	report, err := e.AutoApplyCredits(ctx, "tenant_1")
	if err != nil {
		t.Fatalf("AutoApplyCredits: %v", err)
	}
	if report.CreditsApplied != 1 {
		t.Errorf("credits applied: got %d, want 1", report.CreditsApplied)
	}
	if report.InvoicesAffected != 2 {
		t.Errorf("invoices affected: got %d, want 2", report.InvoicesAffected)
	}

	// Oldest due date consumed first: fully paid, then the remainder.
	gotOlder, err := e.GetInvoice(ctx, older.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if gotOlder.Status != invoice.StatusPaid {
		t.Errorf("older invoice: got %s, want paid", gotOlder.Status)
	}

	gotNewer, err := e.GetInvoice(ctx, newer.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if gotNewer.Status != invoice.StatusPartialPayment {
		t.Errorf("newer invoice: got %s, want partial_payment", gotNewer.Status)
	}
	if !gotNewer.Balance().Equal(types.USD(20000)) {
		t.Errorf("newer balance: got %v, want %v", gotNewer.Balance(), types.USD(20000))
	}
}

func TestExpireCredits(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	past := testClock.Add(-24 * time.Hour)
	future := testClock.Add(24 * time.Hour)

	stale, err := e.CreateCredit(ctx, &remit.CreditRequest{
		TenantID:   "tenant_1",
		ClientID:   "clinic_1",
		Amount:     types.USD(10000),
		SourceType: credit.SourceManual,
		ExpiresAt:  &past,
	})
	if err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}
	fresh, err := e.CreateCredit(ctx, &remit.CreditRequest{
		TenantID:   "tenant_1",
		ClientID:   "clinic_1",
		Amount:     types.USD(10000),
		SourceType: credit.SourceManual,
		ExpiresAt:  &future,
	})
	if err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}

	expired, err := e.ExpireCredits(ctx, testClock)
	if err != nil {
		t.Fatalf("ExpireCredits: %v", err)
	}
	if expired != 1 {
		t.Errorf("expired count: got %d, want 1", expired)
	}

	gotStale, err := e.GetCredit(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetCredit: %v", err)
	}
	if gotStale.Status != credit.StatusExpired {
		t.Errorf("stale credit: got %s, want expired", gotStale.Status)
	}

	gotFresh, err := e.GetCredit(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetCredit: %v", err)
	}
	if gotFresh.Status != credit.StatusAvailable {
		t.Errorf("fresh credit: got %s, want available", gotFresh.Status)
	}
}

func TestCancelCredit(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	crd, err := e.CreateCredit(ctx, &remit.CreditRequest{
		TenantID:   "tenant_1",
		ClientID:   "clinic_1",
		Amount:     types.USD(10000),
		SourceType: credit.SourceManual,
	})
	if err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}

	// A reason is mandatory.
	if err := e.CancelCredit(ctx, crd.ID, ""); !errors.Is(err, remit.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}

	if err := e.CancelCredit(ctx, crd.ID, "issued in error"); err != nil {
		t.Fatalf("CancelCredit: %v", err)
	}

	got, err := e.GetCredit(ctx, crd.ID)
	if err != nil {
		t.Fatalf("GetCredit: %v", err)
	}
	if got.Status != credit.StatusCancelled {
		t.Errorf("status: got %s, want cancelled", got.Status)
	}
	if got.CancelReason != "issued in error" {
		t.Errorf("reason: got %q", got.CancelReason)
	}
}

func TestCancelCreditWithApplicationsRefused(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-7003", 50000, testClock.AddDate(0, 0, 30))
	crd, err := e.CreateCredit(ctx, &remit.CreditRequest{
		TenantID:   "tenant_1",
		ClientID:   "clinic_1",
		Amount:     types.USD(10000),
		SourceType: credit.SourceManual,
	})
	if err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}
	if _, err := e.ApplyCredit(ctx, crd.ID, inv.ID, types.USD(5000)); err != nil {
		t.Fatalf("ApplyCredit: %v", err)
	}

	// A partially applied credit is no longer available, so cancellation fails.
	if err := e.CancelCredit(ctx, crd.ID, "change of mind"); !errors.Is(err, remit.ErrCreditNotUsable) {
		t.Fatalf("expected ErrCreditNotUsable, got %v", err)
	}
}

func TestDisputeLifecycle(t *testing.T) {
	e := newTestEngine()
	ctx := remit.ContextWithActor(context.Background(), "lab-billing")

	inv := newSentInvoice(t, e, "INV-8001", 50000, testClock.AddDate(0, 0, 30))
	liID := inv.LineItems[0].ID

	d := &dispute.Dispute{
		InvoiceID:      inv.ID,
		LineItemID:     liID,
		ClinicID:       "clinic_1",
		DisputedAmount: types.USD(5000),
		Reason:         "test not ordered",
	}
	if err := e.OpenDispute(ctx, d); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}
	if d.Status != dispute.StatusOpen {
		t.Errorf("dispute status: got %s, want open", d.Status)
	}
	if d.TenantID != "tenant_1" {
		t.Errorf("tenant not inherited from invoice: %q", d.TenantID)
	}

	// The invoice moved to disputed and the line item is flagged.
	gotInv, err := e.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if gotInv.Status != invoice.StatusDisputed {
		t.Errorf("invoice status: got %s, want disputed", gotInv.Status)
	}
	if !gotInv.LineItem(liID).Disputed {
		t.Error("line item not flagged disputed")
	}

	// Walk the dispute through review to resolution with a partial credit.
	if _, err := e.ResolveDispute(ctx, d.ID, "looking into it", dispute.ActionUnderReview, types.Money{}, false); err != nil {
		t.Fatalf("under review: %v", err)
	}

	outcome, err := e.ResolveDispute(ctx, d.ID, "crediting disputed test", dispute.ActionResolve, types.USD(5000), true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Dispute.Status != dispute.StatusResolved {
		t.Errorf("dispute status: got %s, want resolved", outcome.Dispute.Status)
	}
	if outcome.CreditID.IsNil() {
		t.Fatal("expected a dispute-sourced credit")
	}
	if !outcome.Credited.Equal(types.USD(5000)) {
		t.Errorf("credited: got %v", outcome.Credited)
	}
	if outcome.Dispute.ResolvedAt == nil || outcome.Dispute.ResolvedBy != "lab-billing" {
		t.Errorf("resolution stamp: at=%v by=%q", outcome.Dispute.ResolvedAt, outcome.Dispute.ResolvedBy)
	}
	if len(outcome.Dispute.Messages) != 2 {
		t.Errorf("message thread: got %d entries, want 2", len(outcome.Dispute.Messages))
	}

	crd, err := e.GetCredit(ctx, outcome.CreditID)
	if err != nil {
		t.Fatalf("GetCredit: %v", err)
	}
	if crd.SourceType != credit.SourceDispute {
		t.Errorf("credit source: got %s, want dispute", crd.SourceType)
	}
	if crd.ClientID != "clinic_1" {
		t.Errorf("credit goes to the clinic: got %s", crd.ClientID)
	}

	// The line item is cleared and flagged for re-invoicing.
	gotInv, err = e.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	li := gotInv.LineItem(liID)
	if li.Disputed {
		t.Error("disputed flag not cleared after resolution")
	}
	if !li.NeedsReinvoice {
		t.Error("line item not flagged for re-invoicing")
	}

	// A terminal dispute refuses further responses.
	if _, err := e.ResolveDispute(ctx, d.ID, "one more thing", dispute.ActionEscalate, types.Money{}, false); !errors.Is(err, remit.ErrDisputeClosed) {
		t.Fatalf("expected ErrDisputeClosed, got %v", err)
	}
}

func TestOpenDisputeValidation(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-8002", 50000, testClock.AddDate(0, 0, 30))

	// Reason is mandatory.
	if err := e.OpenDispute(ctx, &dispute.Dispute{
		InvoiceID:      inv.ID,
		ClinicID:       "clinic_1",
		DisputedAmount: types.USD(100),
	}); !errors.Is(err, remit.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}

	// The disputed line item must exist on the invoice.
	if err := e.OpenDispute(ctx, &dispute.Dispute{
		InvoiceID:      inv.ID,
		LineItemID:     id.NewLineItemID(),
		ClinicID:       "clinic_1",
		DisputedAmount: types.USD(100),
		Reason:         "wrong patient",
	}); !errors.Is(err, remit.ErrLineItemNotFound) {
		t.Fatalf("expected ErrLineItemNotFound, got %v", err)
	}
}

func TestRejectedDisputeCreatesNoCredit(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	inv := newSentInvoice(t, e, "INV-8003", 50000, testClock.AddDate(0, 0, 30))
	d := &dispute.Dispute{
		InvoiceID:      inv.ID,
		LineItemID:     inv.LineItems[0].ID,
		ClinicID:       "clinic_1",
		DisputedAmount: types.USD(5000),
		Reason:         "duplicate charge",
	}
	if err := e.OpenDispute(ctx, d); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}

	outcome, err := e.ResolveDispute(ctx, d.ID, "charge verified against requisition", dispute.ActionReject, types.USD(5000), true)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if outcome.Dispute.Status != dispute.StatusRejected {
		t.Errorf("status: got %s, want rejected", outcome.Dispute.Status)
	}
	// Rejection never credits, even when an amount is passed.
	if !outcome.CreditID.IsNil() || !outcome.Credited.IsZero() {
		t.Errorf("rejected dispute credited: id=%v amount=%v", outcome.CreditID, outcome.Credited)
	}

	// The disputed flag clears, but re-invoicing is not requested.
	gotInv, err := e.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	li := gotInv.LineItem(d.LineItemID)
	if li.Disputed {
		t.Error("disputed flag not cleared after rejection")
	}
	if li.NeedsReinvoice {
		t.Error("rejected dispute must not flag re-invoicing")
	}
}

func TestListOutstandingInvoices(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	newSentInvoice(t, e, "INV-9002", 20000, testClock.AddDate(0, 0, 40))
	newSentInvoice(t, e, "INV-9001", 30000, testClock.AddDate(0, 0, 10))
	paid := newSentInvoice(t, e, "INV-9003", 10000, testClock.AddDate(0, 0, 20))

	pay := newRecordedPayment(t, e, "PAY-9001", 10000)
	if _, err := e.AllocateToInvoice(ctx, pay.ID, paid.ID, types.USD(10000)); err != nil {
		t.Fatalf("AllocateToInvoice: %v", err)
	}

	outstanding, err := e.ListOutstandingInvoices(ctx, "tenant_1", "clinic_1")
	if err != nil {
		t.Fatalf("ListOutstandingInvoices: %v", err)
	}
	if len(outstanding) != 2 {
		t.Fatalf("expected 2 outstanding invoices, got %d", len(outstanding))
	}
	if outstanding[0].Number != "INV-9001" || outstanding[1].Number != "INV-9002" {
		t.Errorf("order: got %s, %s", outstanding[0].Number, outstanding[1].Number)
	}
}

func TestInvoiceDelivery(t *testing.T) {
	delivered := make(chan *invoice.Invoice, 10)
	e := newTestEngine(
		remit.WithNotifier(remit.NotifierFunc(func(_ context.Context, inv *invoice.Invoice) error {
			delivered <- inv
			return nil
		})),
		remit.WithDeliveryConfig(10, 20*time.Millisecond),
		remit.WithCreditSweepInterval(0),
	)

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	inv := newSentInvoice(t, e, "INV-9100", 10000, testClock.AddDate(0, 0, 30))

	select {
	case got := <-delivered:
		if got.ID.String() != inv.ID.String() {
			t.Errorf("delivered wrong invoice: %s", got.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("invoice never delivered")
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStopFlushesPendingDeliveries(t *testing.T) {
	delivered := make(chan *invoice.Invoice, 10)
	e := newTestEngine(
		remit.WithNotifier(remit.NotifierFunc(func(_ context.Context, inv *invoice.Invoice) error {
			delivered <- inv
			return nil
		})),
		// A flush interval far beyond the test's lifetime: only the
		// shutdown flush can deliver.
		remit.WithDeliveryConfig(100, time.Hour),
		remit.WithCreditSweepInterval(0),
	)

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	newSentInvoice(t, e, "INV-9101", 10000, testClock.AddDate(0, 0, 30))

	// Give the worker a moment to drain the queue into its batch.
	time.Sleep(50 * time.Millisecond)

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-delivered:
	default:
		t.Fatal("pending delivery not flushed on shutdown")
	}
}

// A second allocation landing between another allocation's validation and
// its payment settlement must not let both consume the same unallocated
// remainder.
func TestInterleavedAllocationsCannotOverdrawPayment(t *testing.T) {
	st := &racingStore{Store: memory.New()}
	e := remit.New(st,
		remit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		remit.WithClock(func() time.Time { return testClock }),
	)
	ctx := context.Background()

	due := testClock.AddDate(0, 0, 30)
	inv1 := newSentInvoice(t, e, "INV-9001", 8000, due)
	inv2 := newSentInvoice(t, e, "INV-9002", 8000, due)
	pay := newRecordedPayment(t, e, "PAY-9001", 10000)

	// Read 1 is the loser's validation; read 2 is its settlement. The
	// winner's full allocation runs in between.
	var raced bool
	var racedErr error
	st.beforePaymentRead = func(n int) {
		if raced || n != 2 {
			return
		}
		raced = true
		_, racedErr = e.AllocateToInvoice(ctx, pay.ID, inv2.ID, types.USD(8000))
	}

	_, err := e.AllocateToInvoice(ctx, pay.ID, inv1.ID, types.USD(8000))
	if !raced {
		t.Fatal("competing allocation never ran")
	}
	if racedErr != nil {
		t.Fatalf("competing allocation: %v", racedErr)
	}
	if !errors.Is(err, remit.ErrExceedsPaymentAmount) {
		t.Fatalf("expected ErrExceedsPaymentAmount for the losing allocation, got %v", err)
	}
	var ae *remit.AmountError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AmountError, got %T", err)
	}
	if !ae.Available.Equal(types.USD(2000)) {
		t.Errorf("available = %s, want $20.00", ae.Available.FormatMajor())
	}

	got, err := e.GetPayment(ctx, pay.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if !got.Allocated.Equal(types.USD(8000)) {
		t.Errorf("allocated = %s, want $80.00", got.Allocated.FormatMajor())
	}
	if !got.Unallocated.Equal(types.USD(2000)) {
		t.Errorf("unallocated = %s, want $20.00", got.Unallocated.FormatMajor())
	}
	if got.Unallocated.LessThan(types.Zero("usd")) {
		t.Error("payment unallocated went negative")
	}

	allocs, err := e.AllocationsForPayment(ctx, pay.ID)
	if err != nil {
		t.Fatalf("AllocationsForPayment: %v", err)
	}
	total := types.Zero("usd")
	for _, a := range allocs {
		total = total.Add(a.Amount)
	}
	if total.GreaterThan(pay.Amount) {
		t.Errorf("allocation rows total %s exceed payment amount %s",
			total.FormatMajor(), pay.Amount.FormatMajor())
	}
	if !total.Equal(types.USD(8000)) {
		t.Errorf("allocation rows total = %s, want $80.00", total.FormatMajor())
	}
}

// The same interleave against a credit: a competing application that drains
// the remaining value between validation and draw-down must make the loser
// fail instead of driving the credit negative.
func TestInterleavedApplicationsCannotOverdrawCredit(t *testing.T) {
	st := &racingStore{Store: memory.New()}
	e := remit.New(st,
		remit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		remit.WithClock(func() time.Time { return testClock }),
	)
	ctx := context.Background()

	due := testClock.AddDate(0, 0, 30)
	inv1 := newSentInvoice(t, e, "INV-9003", 8000, due)
	inv2 := newSentInvoice(t, e, "INV-9004", 8000, due)

	crd, err := e.CreateCredit(ctx, &remit.CreditRequest{
		TenantID:   "tenant_1",
		ClientID:   "clinic_1",
		Amount:     types.USD(10000),
		SourceType: credit.SourceManual,
	})
	if err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}

	var raced bool
	var racedErr error
	st.beforeCreditRead = func(n int) {
		if raced || n != 2 {
			return
		}
		raced = true
		_, racedErr = e.ApplyCredit(ctx, crd.ID, inv2.ID, types.USD(8000))
	}

	_, err = e.ApplyCredit(ctx, crd.ID, inv1.ID, types.USD(8000))
	if !raced {
		t.Fatal("competing application never ran")
	}
	if racedErr != nil {
		t.Fatalf("competing application: %v", racedErr)
	}
	if !errors.Is(err, remit.ErrInsufficientCredit) {
		t.Fatalf("expected ErrInsufficientCredit for the losing application, got %v", err)
	}
	var ae *remit.AmountError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AmountError, got %T", err)
	}
	if !ae.Available.Equal(types.USD(2000)) {
		t.Errorf("available = %s, want $20.00", ae.Available.FormatMajor())
	}

	got, err := e.GetCredit(ctx, crd.ID)
	if err != nil {
		t.Fatalf("GetCredit: %v", err)
	}
	if !got.Remaining.Equal(types.USD(2000)) {
		t.Errorf("remaining = %s, want $20.00", got.Remaining.FormatMajor())
	}
	if got.Remaining.LessThan(types.Zero("usd")) {
		t.Error("credit remaining went negative")
	}
	if got.Status != credit.StatusPartial {
		t.Errorf("status = %s, want partial", got.Status)
	}

	apps, err := e.ApplicationsForCredit(ctx, crd.ID)
	if err != nil {
		t.Fatalf("ApplicationsForCredit: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected 1 application, got %d", len(apps))
	}
	if !apps[0].Amount.Equal(types.USD(8000)) {
		t.Errorf("application amount = %s, want $80.00", apps[0].Amount.FormatMajor())
	}
}
