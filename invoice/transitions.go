package invoice

// transitions is the caller-requested status transition table. The two
// automatic edges into partial_payment and paid are driven by the allocation
// engine and deliberately absent here.
var transitions = map[Status][]Status{
	StatusDraft:          {StatusFinalized, StatusCancelled},
	StatusFinalized:      {StatusSent, StatusDraft, StatusCancelled},
	StatusSent:           {StatusPaid, StatusPartialPayment, StatusDisputed, StatusOnHold},
	StatusPartialPayment: {StatusPaid, StatusDisputed, StatusOnHold},
	StatusDisputed:       {StatusResolved, StatusOnHold, StatusCancelled},
	StatusOnHold:         {StatusSent, StatusDisputed, StatusCancelled},
	StatusResolved:       {StatusPaid, StatusCancelled},
	StatusPaid:           {},
	StatusCancelled:      {},
}

// CanTransition reports whether a caller-requested transition from one
// status to another follows the transition table.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the caller-requestable targets from a status.
func AllowedTargets(from Status) []Status {
	targets := transitions[from]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}

// Terminal reports whether a status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Payable reports whether an invoice in this status may receive payment
// allocations or credit applications.
func (s Status) Payable() bool {
	switch s {
	case StatusFinalized, StatusSent, StatusPartialPayment, StatusOnHold, StatusResolved:
		return true
	case StatusDraft, StatusPaid, StatusDisputed, StatusCancelled:
		return false
	}
	return false
}

// Valid reports whether s is a known invoice status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusFinalized, StatusSent, StatusPartialPayment,
		StatusPaid, StatusDisputed, StatusOnHold, StatusCancelled, StatusResolved:
		return true
	}
	return false
}
