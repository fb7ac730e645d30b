package remit

import "github.com/halcyonlabs/remit/id"

// ID is the primary identifier type for all Remit entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
