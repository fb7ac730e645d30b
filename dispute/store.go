package dispute

import (
	"context"

	"github.com/halcyonlabs/remit/id"
)

// Store is the persistence boundary for disputes. Update is a conditional
// write keyed on the entity version; the message thread travels with the
// dispute record.
type Store interface {
	Create(ctx context.Context, d *Dispute) error
	Get(ctx context.Context, dspID id.DisputeID) (*Dispute, error)
	List(ctx context.Context, tenantID string, opts ListOpts) ([]*Dispute, error)
	Update(ctx context.Context, d *Dispute, expectedVersion int64) error
}

// ListOpts filters dispute list queries.
type ListOpts struct {
	InvoiceID id.InvoiceID
	ClinicID  string
	Status    Status
	Limit     int
	Offset    int
}
