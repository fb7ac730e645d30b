// Package remit provides a payment allocation and invoice lifecycle engine
// for multi-tenant medical billing in Go applications.
//
// Remit is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - Penny-exact payment allocation across invoices and line items
//   - An invoice lifecycle state machine with an append-only audit trail
//   - Account credits from overpayments, refunds, and dispute resolutions
//   - Greedy oldest-due-first multi-invoice allocation for consolidated billing
//   - Explicit, caller-decided overpayment resolution
//   - A dispute-to-credit-to-reinvoice pipeline
//   - Optimistic concurrency on every balance mutation
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/halcyonlabs/remit"
//	    "github.com/halcyonlabs/remit/store/postgres"
//	)
//
//	// Initialize store from your application's grove.DB
//	store := postgres.New(db)
//
//	// Create engine
//	eng := remit.New(store)
//
//	// Start the engine (begins background workers)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// Invoices carry line items and move through a closed lifecycle:
//
//	draft → finalized → sent → partial_payment → paid
//
// Payments are recorded unposted and consumed by the allocation engine:
//
//	_ = eng.PostPayment(ctx, pay)
//	res, err := eng.AllocateToInvoice(ctx, pay.ID, inv.ID, remit.USD(50000))
//
// A payment becomes posted once its unallocated remainder is within a penny
// of zero. Overpayments require an explicit decision:
//
//	out, err := eng.ResolveOverpayment(ctx, pay.ID, inv.ID, remit.OverpaymentResolution{
//	    Choice: remit.CreditRemainder,
//	})
//
// Credits are consumable against future invoice balances and can be applied
// individually or in an oldest-due-first batch:
//
//	report, err := eng.AutoApplyCredits(ctx, tenantID)
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (cents for USD). Settledness checks tolerate a single penny
// of rounding drift; arithmetic itself is always exact.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	inv_01h455vb4pex5vsknk084sn02q    // Invoice ID
//	pay_01h2xcejqtf2nbrexx3vqjhp41   // Payment ID
//	crd_01h2xcejqtf2nbrexx3vqjhp41   // Credit ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package remit
