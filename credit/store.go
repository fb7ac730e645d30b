package credit

import (
	"context"
	"time"

	"github.com/halcyonlabs/remit/id"
)

// Store is the persistence boundary for credits and their applications.
// Update is a conditional write keyed on the entity version; Application
// rows are append-only.
type Store interface {
	Create(ctx context.Context, c *Credit) error
	Get(ctx context.Context, crdID id.CreditID) (*Credit, error)
	List(ctx context.Context, tenantID string, opts ListOpts) ([]*Credit, error)
	ListOpen(ctx context.Context, tenantID string) ([]*Credit, error)
	ListExpiring(ctx context.Context, asOf time.Time) ([]*Credit, error)
	Update(ctx context.Context, c *Credit, expectedVersion int64) error
	CreateApplication(ctx context.Context, a *Application) error
	ListApplicationsByCredit(ctx context.Context, crdID id.CreditID) ([]*Application, error)
	ListApplicationsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*Application, error)
}

// ListOpts filters credit list queries.
type ListOpts struct {
	ClientID string
	Status   Status
	Limit    int
	Offset   int
}
