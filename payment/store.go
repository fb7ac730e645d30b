package payment

import (
	"context"

	"github.com/halcyonlabs/remit/id"
)

// Store is the persistence boundary for payments and their allocations.
// Update is a conditional write keyed on the entity version; Allocation
// rows are append-only and never updated or deleted.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, payID id.PaymentID) (*Payment, error)
	List(ctx context.Context, tenantID string, opts ListOpts) ([]*Payment, error)
	Update(ctx context.Context, p *Payment, expectedVersion int64) error
	CreateAllocation(ctx context.Context, a *Allocation) error
	ListAllocationsByPayment(ctx context.Context, payID id.PaymentID) ([]*Allocation, error)
	ListAllocationsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*Allocation, error)
}

// ListOpts filters payment list queries.
type ListOpts struct {
	ClientID string
	Status   Status
	Limit    int
	Offset   int
}
