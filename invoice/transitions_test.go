package invoice

import (
	"testing"

	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"draft to finalized", StatusDraft, StatusFinalized, true},
		{"draft to cancelled", StatusDraft, StatusCancelled, true},
		{"draft to sent", StatusDraft, StatusSent, false},
		{"draft to paid", StatusDraft, StatusPaid, false},
		{"finalized to sent", StatusFinalized, StatusSent, true},
		{"finalized back to draft", StatusFinalized, StatusDraft, true},
		{"finalized to cancelled", StatusFinalized, StatusCancelled, true},
		{"finalized to paid", StatusFinalized, StatusPaid, false},
		{"sent to paid", StatusSent, StatusPaid, true},
		{"sent to partial_payment", StatusSent, StatusPartialPayment, true},
		{"sent to disputed", StatusSent, StatusDisputed, true},
		{"sent to on_hold", StatusSent, StatusOnHold, true},
		{"sent to cancelled", StatusSent, StatusCancelled, false},
		{"sent back to draft", StatusSent, StatusDraft, false},
		{"partial to paid", StatusPartialPayment, StatusPaid, true},
		{"partial to disputed", StatusPartialPayment, StatusDisputed, true},
		{"partial to on_hold", StatusPartialPayment, StatusOnHold, true},
		{"partial back to sent", StatusPartialPayment, StatusSent, false},
		{"disputed to resolved", StatusDisputed, StatusResolved, true},
		{"disputed to on_hold", StatusDisputed, StatusOnHold, true},
		{"disputed to cancelled", StatusDisputed, StatusCancelled, true},
		{"disputed to paid", StatusDisputed, StatusPaid, false},
		{"on_hold to sent", StatusOnHold, StatusSent, true},
		{"on_hold to disputed", StatusOnHold, StatusDisputed, true},
		{"on_hold to cancelled", StatusOnHold, StatusCancelled, true},
		{"on_hold to paid", StatusOnHold, StatusPaid, false},
		{"resolved to paid", StatusResolved, StatusPaid, true},
		{"resolved to cancelled", StatusResolved, StatusCancelled, true},
		{"resolved to disputed", StatusResolved, StatusDisputed, false},
		{"paid is terminal", StatusPaid, StatusCancelled, false},
		{"cancelled is terminal", StatusCancelled, StatusDraft, false},
		{"unknown from", Status("bogus"), StatusDraft, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s, %s): got %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestAllowedTargets(t *testing.T) {
	targets := AllowedTargets(StatusDraft)
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets from draft, got %d", len(targets))
	}

	// Mutating the returned slice must not corrupt the table.
	targets[0] = StatusPaid
	if CanTransition(StatusDraft, StatusPaid) {
		t.Error("transition table was mutated through AllowedTargets result")
	}

	if got := AllowedTargets(StatusPaid); len(got) != 0 {
		t.Errorf("expected no targets from paid, got %v", got)
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPaid, true},
		{StatusCancelled, true},
		{StatusDraft, false},
		{StatusSent, false},
		{StatusDisputed, false},
		{StatusResolved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal: got %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestStatusPayable(t *testing.T) {
	tests := []struct {
		status  Status
		payable bool
	}{
		{StatusFinalized, true},
		{StatusSent, true},
		{StatusPartialPayment, true},
		{StatusOnHold, true},
		{StatusResolved, true},
		{StatusDraft, false},
		{StatusPaid, false},
		{StatusDisputed, false},
		{StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Payable(); got != tt.payable {
				t.Errorf("Payable: got %v, want %v", got, tt.payable)
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{
		StatusDraft, StatusFinalized, StatusSent, StatusPartialPayment,
		StatusPaid, StatusDisputed, StatusOnHold, StatusCancelled, StatusResolved,
	} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if Status("pending").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestInvoiceBalance(t *testing.T) {
	inv := &Invoice{
		Total: types.USD(50000),
		Paid:  types.USD(30000),
	}
	if got := inv.Balance(); !got.Equal(types.USD(20000)) {
		t.Errorf("Balance: got %v, want %v", got, types.USD(20000))
	}
}

func TestActiveLineItems(t *testing.T) {
	inv := &Invoice{
		LineItems: []LineItem{
			{ID: id.NewLineItemID(), Active: true},
			{ID: id.NewLineItemID(), Active: false},
			{ID: id.NewLineItemID(), Active: true},
		},
	}

	active := inv.ActiveLineItems()
	if len(active) != 2 {
		t.Errorf("expected 2 active line items, got %d", len(active))
	}
}

func TestInvoiceLineItemLookup(t *testing.T) {
	liID := id.NewLineItemID()
	inv := &Invoice{
		LineItems: []LineItem{
			{ID: id.NewLineItemID()},
			{ID: liID, Accession: "ACC-100"},
		},
	}

	li := inv.LineItem(liID)
	if li == nil {
		t.Fatal("expected line item to be found")
	}
	if li.Accession != "ACC-100" {
		t.Errorf("wrong line item returned: %+v", li)
	}

	// Mutations through the pointer must be visible on the invoice.
	li.Paid = types.USD(500)
	if !inv.LineItems[1].Paid.Equal(types.USD(500)) {
		t.Error("expected LineItem to return a pointer into the invoice")
	}

	if got := inv.LineItem(id.NewLineItemID()); got != nil {
		t.Errorf("expected nil for unknown line item, got %+v", got)
	}
}

func TestLockPrices(t *testing.T) {
	inv := &Invoice{
		LineItems: []LineItem{
			{ID: id.NewLineItemID()},
			{ID: id.NewLineItemID()},
		},
	}

	inv.LockPrices()
	for i, li := range inv.LineItems {
		if !li.PriceLocked {
			t.Errorf("line item %d not price locked", i)
		}
	}
}

func TestLineItemBalance(t *testing.T) {
	li := &LineItem{
		Amount: types.USD(12500),
		Paid:   types.USD(2500),
	}
	if got := li.Balance(); !got.Equal(types.USD(10000)) {
		t.Errorf("Balance: got %v, want %v", got, types.USD(10000))
	}
}
