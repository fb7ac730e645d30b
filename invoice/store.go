package invoice

import (
	"context"

	"github.com/halcyonlabs/remit/id"
)

// Store is the persistence boundary for invoices and their history.
//
// Update is a conditional write: it succeeds only when the stored version
// equals expectedVersion, otherwise it fails with the engine's stale-balance
// error. History records are append-only.
type Store interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	List(ctx context.Context, tenantID string, opts ListOpts) ([]*Invoice, error)
	ListOutstanding(ctx context.Context, tenantID, clientID string) ([]*Invoice, error)
	Update(ctx context.Context, inv *Invoice, expectedVersion int64) error
	AppendHistory(ctx context.Context, rec *HistoryRecord) error
	ListHistory(ctx context.Context, invID id.InvoiceID) ([]*HistoryRecord, error)
}

// ListOpts filters invoice list queries.
type ListOpts struct {
	ClientID string
	Status   Status
	Limit    int
	Offset   int
}
