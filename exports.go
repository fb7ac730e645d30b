package remit

import "github.com/halcyonlabs/remit/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors and helpers
var (
	USD         = types.USD
	Zero        = types.Zero
	Sum         = types.Sum
	ParseAmount = types.ParseAmount
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
