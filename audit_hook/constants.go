package audithook

// Action constants for audit events.
const (
	// Payment actions
	ActionPaymentRecorded  = "payment.recorded"
	ActionPaymentAllocated = "payment.allocated"
	ActionPaymentPosted    = "payment.posted"
	ActionOverpayment      = "payment.overpayment_resolved"

	// Invoice actions
	ActionInvoiceCreated      = "invoice.created"
	ActionInvoiceTransitioned = "invoice.transitioned"
	ActionInvoiceFinalized    = "invoice.finalized"
	ActionInvoicePaid         = "invoice.paid"

	// Credit actions
	ActionCreditCreated   = "credit.created"
	ActionCreditApplied   = "credit.applied"
	ActionCreditExpired   = "credit.expired"
	ActionCreditCancelled = "credit.cancelled"

	// Dispute actions
	ActionDisputeOpened   = "dispute.opened"
	ActionDisputeResolved = "dispute.resolved"
)

// Resource constants for audit events.
const (
	ResourcePayment = "payment"
	ResourceInvoice = "invoice"
	ResourceCredit  = "credit"
	ResourceDispute = "dispute"
)

// Category constants for audit events.
const (
	CategoryPayment = "payment"
	CategoryBilling = "billing"
	CategoryCredit  = "credit"
	CategoryDispute = "dispute"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
