package remit

import (
	"errors"
	"fmt"

	"github.com/halcyonlabs/remit/types"
)

// Sentinel errors for common failure scenarios.
var (
	// Validation errors. The caller made a mistake and no mutation occurred.
	ErrInvalidAmount         = errors.New("remit: invalid amount")
	ErrExceedsPaymentAmount  = errors.New("remit: allocation exceeds payment amount")
	ErrExceedsInvoiceBalance = errors.New("remit: allocation exceeds invoice balance")
	ErrInsufficientCredit    = errors.New("remit: insufficient credit remaining")
	ErrIllegalTransition     = errors.New("remit: illegal status transition")
	ErrNothingToFinalize     = errors.New("remit: invoice has no active line items")
	ErrDisputeClosed         = errors.New("remit: dispute is closed")
	ErrInvoiceNotPayable     = errors.New("remit: invoice cannot receive payment in its current status")
	ErrPaymentNotAllocatable = errors.New("remit: payment cannot be allocated in its current status")
	ErrNoOverpayment         = errors.New("remit: payment does not exceed invoice balance")
	ErrUnknownStrategy       = errors.New("remit: unknown allocation strategy")
	ErrUnknownResolution     = errors.New("remit: unknown overpayment resolution")
	ErrCreditNotUsable       = errors.New("remit: credit is not usable")
	ErrCreditInUse           = errors.New("remit: credit has applications and cannot be cancelled")
	ErrReasonRequired        = errors.New("remit: a reason is required")

	// Conflict errors. A concurrent writer won the race; re-read and retry.
	ErrStaleBalance = errors.New("remit: stale balance, concurrent update lost")

	// Idempotence errors.
	ErrAlreadyPosted  = errors.New("remit: payment already fully allocated")
	ErrAlreadyApplied = errors.New("remit: credit already fully applied")

	// Not-found errors.
	ErrNotFound         = errors.New("remit: not found")
	ErrInvoiceNotFound  = errors.New("remit: invoice not found")
	ErrPaymentNotFound  = errors.New("remit: payment not found")
	ErrCreditNotFound   = errors.New("remit: credit not found")
	ErrDisputeNotFound  = errors.New("remit: dispute not found")
	ErrLineItemNotFound = errors.New("remit: line item not found")

	// Collaborator errors. Persistence is unavailable; the whole operation
	// failed without partial state and may be retried.
	ErrStoreUnavailable = errors.New("remit: store unavailable")
	ErrStoreClosed      = errors.New("remit: store is closed")
)

// AmountError wraps a validation sentinel with the penny-exact amounts the
// caller needs to render an actionable message, e.g. "allocation exceeds
// invoice balance: remaining balance is $70.00".
type AmountError struct {
	Err       error
	Requested types.Money
	Available types.Money
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("%v: requested %s, available %s",
		e.Err, e.Requested.FormatMajor(), e.Available.FormatMajor())
}

// Unwrap lets errors.Is match the wrapped sentinel.
func (e *AmountError) Unwrap() error { return e.Err }

// amountErr builds an AmountError around a sentinel.
func amountErr(sentinel error, requested, available types.Money) error {
	return &AmountError{Err: sentinel, Requested: requested, Available: available}
}

// IsValidation returns true if the error is a caller mistake that left no
// partial state behind.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, types.ErrInvalidAmount) ||
		errors.Is(err, ErrExceedsPaymentAmount) ||
		errors.Is(err, ErrExceedsInvoiceBalance) ||
		errors.Is(err, ErrInsufficientCredit) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrNothingToFinalize) ||
		errors.Is(err, ErrDisputeClosed) ||
		errors.Is(err, ErrInvoiceNotPayable) ||
		errors.Is(err, ErrPaymentNotAllocatable) ||
		errors.Is(err, ErrNoOverpayment) ||
		errors.Is(err, ErrUnknownStrategy) ||
		errors.Is(err, ErrUnknownResolution) ||
		errors.Is(err, ErrCreditNotUsable) ||
		errors.Is(err, ErrCreditInUse) ||
		errors.Is(err, ErrReasonRequired)
}

// IsConflict returns true if a concurrent writer won and the caller should
// re-read and retry against fresh balances.
func IsConflict(err error) bool {
	return errors.Is(err, ErrStaleBalance)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrCreditNotFound) ||
		errors.Is(err, ErrDisputeNotFound) ||
		errors.Is(err, ErrLineItemNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried with the same idempotence guarantees.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleBalance) ||
		errors.Is(err, ErrStoreUnavailable)
}
