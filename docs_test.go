package remit_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/halcyonlabs/remit"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/payment"
	"github.com/halcyonlabs/remit/store/memory"
	"github.com/halcyonlabs/remit/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Initialize Remit
		e := remit.New(store,
			remit.WithLogger(slog.Default()),
			remit.WithDeliveryConfig(50, 5*time.Second),
			remit.WithCreditSweepInterval(time.Hour),
		)

		// Start the engine
		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		// Create an invoice for a clinic
		inv := &invoice.Invoice{
			TenantID: "lab_123",
			ClientID: "clinic_456",
			Number:   "INV-2026-0042",
			DueDate:  time.Now().AddDate(0, 1, 0),
			LineItems: []invoice.LineItem{
				{
					Accession:   "ACC-88201",
					CPTCode:     "80053", // Comprehensive metabolic panel
					PatientName: "Doe, Jane",
					Amount:      types.USD(12500), // $125.00
					Active:      true,
				},
				{
					Accession:   "ACC-88202",
					CPTCode:     "85025", // CBC with differential
					PatientName: "Doe, John",
					Amount:      types.USD(37500), // $375.00
					Active:      true,
				},
			},
		}

		if err := e.CreateInvoice(ctx, inv); err != nil {
			t.Fatal(err)
		}

		// Finalize locks line-item prices; send makes it payable
		if _, err := e.TransitionInvoice(ctx, inv.ID, invoice.StatusFinalized, ""); err != nil {
			t.Fatal(err)
		}
		if _, err := e.TransitionInvoice(ctx, inv.ID, invoice.StatusSent, ""); err != nil {
			t.Fatal(err)
		}

		// Record a remittance from the clinic
		pay := &payment.Payment{
			TenantID: "lab_123",
			ClientID: "clinic_456",
			Number:   "CHK-9981",
			Amount:   types.USD(50000), // $500.00
		}
		if err := e.PostPayment(ctx, pay); err != nil {
			t.Fatal(err)
		}

		// Allocate the full payment against the invoice
		res, err := e.AllocateToInvoice(ctx, pay.ID, inv.ID, types.USD(50000))
		if err != nil {
			t.Fatal(err)
		}

		log.Printf("Invoice %s is now %s, payment posted: %v\n",
			inv.Number, res.InvoiceStatus, res.PaymentPosted)
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(50000)  // $500.00
		_ = types.Zero("usd") // $0.00

		// Parsing caller-submitted amounts
		m, err := types.ParseAmount("500.70", "usd")
		if err != nil {
			t.Fatal(err)
		}

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(200)
		_ = m1.Add(m2)      // $3.00
		_ = m2.Subtract(m1) // $1.00

		// Comparison
		if m1.LessThan(m2) {
			// m1 is less than m2
		}

		// Formatting
		_ = m.String()      // "$500.70"
		_ = m.FormatMajor() // "500.70"
	})
}
