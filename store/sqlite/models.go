package sqlite

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/dispute"
	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/payment"
	"github.com/halcyonlabs/remit/types"
)

// SQLite has no native JSON column type, so structured fields are stored as
// serialized TEXT and decoded on read.

// ==================== Invoice models ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:remit_invoices"`

	ID            string     `grove:"id,pk"`
	TenantID      string     `grove:"tenant_id"`
	ClientID      string     `grove:"client_id"`
	Number        string     `grove:"number"`
	Status        string     `grove:"status"`
	Currency      string     `grove:"currency"`
	TotalCents    int64      `grove:"total_cents"`
	TotalCurrency string     `grove:"total_currency"`
	PaidCents     int64      `grove:"paid_cents"`
	PaidCurrency  string     `grove:"paid_currency"`
	DueDate       time.Time  `grove:"due_date"`
	LineItems     string     `grove:"line_items"`
	FinalizedAt   *time.Time `grove:"finalized_at"`
	PaidAt        *time.Time `grove:"paid_at"`
	CancelledAt   *time.Time `grove:"cancelled_at"`
	Metadata      string     `grove:"metadata"`
	Version       int64      `grove:"version"`
	CreatedAt     time.Time  `grove:"created_at"`
	UpdatedAt     time.Time  `grove:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	lineItems, _ := json.Marshal(inv.LineItems) //nolint:errcheck // best-effort
	metadata, _ := json.Marshal(inv.Metadata)   //nolint:errcheck // best-effort

	return &invoiceModel{
		ID:            inv.ID.String(),
		TenantID:      inv.TenantID,
		ClientID:      inv.ClientID,
		Number:        inv.Number,
		Status:        string(inv.Status),
		Currency:      inv.Currency,
		TotalCents:    inv.Total.Amount,
		TotalCurrency: inv.Total.Currency,
		PaidCents:     inv.Paid.Amount,
		PaidCurrency:  inv.Paid.Currency,
		DueDate:       inv.DueDate,
		LineItems:     string(lineItems),
		FinalizedAt:   inv.FinalizedAt,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		Metadata:      string(metadata),
		Version:       inv.Version,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}

	var lineItems []invoice.LineItem
	if m.LineItems != "" {
		_ = json.Unmarshal([]byte(m.LineItems), &lineItems) //nolint:errcheck // best-effort
	}
	var metadata map[string]string
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &metadata) //nolint:errcheck // best-effort
	}

	return &invoice.Invoice{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Version:   m.Version,
		},
		ID:          invID,
		TenantID:    m.TenantID,
		ClientID:    m.ClientID,
		Number:      m.Number,
		Status:      invoice.Status(m.Status),
		Currency:    m.Currency,
		Total:       types.Money{Amount: m.TotalCents, Currency: m.TotalCurrency},
		Paid:        types.Money{Amount: m.PaidCents, Currency: m.PaidCurrency},
		DueDate:     m.DueDate,
		LineItems:   lineItems,
		FinalizedAt: m.FinalizedAt,
		PaidAt:      m.PaidAt,
		CancelledAt: m.CancelledAt,
		Metadata:    metadata,
	}, nil
}

// ==================== Invoice history models ====================

type historyModel struct {
	grove.BaseModel `grove:"table:remit_invoice_history"`

	ID         string    `grove:"id,pk"`
	InvoiceID  string    `grove:"invoice_id"`
	FromStatus string    `grove:"from_status"`
	ToStatus   string    `grove:"to_status"`
	Actor      string    `grove:"actor"`
	Note       string    `grove:"note"`
	Automatic  bool      `grove:"automatic"`
	At         time.Time `grove:"at"`
}

func toHistoryModel(rec *invoice.HistoryRecord) *historyModel {
	return &historyModel{
		ID:         rec.ID.String(),
		InvoiceID:  rec.InvoiceID.String(),
		FromStatus: string(rec.From),
		ToStatus:   string(rec.To),
		Actor:      rec.Actor,
		Note:       rec.Note,
		Automatic:  rec.Automatic,
		At:         rec.At,
	}
}

func fromHistoryModel(m *historyModel) (*invoice.HistoryRecord, error) {
	recID, err := id.ParseHistoryID(m.ID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}

	return &invoice.HistoryRecord{
		ID:        recID,
		InvoiceID: invID,
		From:      invoice.Status(m.FromStatus),
		To:        invoice.Status(m.ToStatus),
		Actor:     m.Actor,
		Note:      m.Note,
		Automatic: m.Automatic,
		At:        m.At,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:remit_payments"`

	ID                  string     `grove:"id,pk"`
	TenantID            string     `grove:"tenant_id"`
	ClientID            string     `grove:"client_id"`
	Number              string     `grove:"number"`
	Status              string     `grove:"status"`
	Currency            string     `grove:"currency"`
	AmountCents         int64      `grove:"amount_cents"`
	AmountCurrency      string     `grove:"amount_currency"`
	AllocatedCents      int64      `grove:"allocated_cents"`
	AllocatedCurrency   string     `grove:"allocated_currency"`
	UnallocatedCents    int64      `grove:"unallocated_cents"`
	UnallocatedCurrency string     `grove:"unallocated_currency"`
	ReceivedAt          time.Time  `grove:"received_at"`
	PostedAt            *time.Time `grove:"posted_at"`
	Metadata            string     `grove:"metadata"`
	Version             int64      `grove:"version"`
	CreatedAt           time.Time  `grove:"created_at"`
	UpdatedAt           time.Time  `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	metadata, _ := json.Marshal(p.Metadata) //nolint:errcheck // best-effort

	return &paymentModel{
		ID:                  p.ID.String(),
		TenantID:            p.TenantID,
		ClientID:            p.ClientID,
		Number:              p.Number,
		Status:              string(p.Status),
		Currency:            p.Currency,
		AmountCents:         p.Amount.Amount,
		AmountCurrency:      p.Amount.Currency,
		AllocatedCents:      p.Allocated.Amount,
		AllocatedCurrency:   p.Allocated.Currency,
		UnallocatedCents:    p.Unallocated.Amount,
		UnallocatedCurrency: p.Unallocated.Currency,
		ReceivedAt:          p.ReceivedAt,
		PostedAt:            p.PostedAt,
		Metadata:            string(metadata),
		Version:             p.Version,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}

	var metadata map[string]string
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &metadata) //nolint:errcheck // best-effort
	}

	return &payment.Payment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Version:   m.Version,
		},
		ID:          payID,
		TenantID:    m.TenantID,
		ClientID:    m.ClientID,
		Number:      m.Number,
		Status:      payment.Status(m.Status),
		Currency:    m.Currency,
		Amount:      types.Money{Amount: m.AmountCents, Currency: m.AmountCurrency},
		Allocated:   types.Money{Amount: m.AllocatedCents, Currency: m.AllocatedCurrency},
		Unallocated: types.Money{Amount: m.UnallocatedCents, Currency: m.UnallocatedCurrency},
		ReceivedAt:  m.ReceivedAt,
		PostedAt:    m.PostedAt,
		Metadata:    metadata,
	}, nil
}

// ==================== Allocation models ====================

type allocationModel struct {
	grove.BaseModel `grove:"table:remit_allocations"`

	ID             string    `grove:"id,pk"`
	TenantID       string    `grove:"tenant_id"`
	PaymentID      string    `grove:"payment_id"`
	InvoiceID      string    `grove:"invoice_id"`
	LineItemID     string    `grove:"line_item_id"`
	AmountCents    int64     `grove:"amount_cents"`
	AmountCurrency string    `grove:"amount_currency"`
	Sequence       int64     `grove:"sequence"`
	CreatedAt      time.Time `grove:"created_at"`
}

func toAllocationModel(a *payment.Allocation) *allocationModel {
	lineItemID := ""
	if !a.LineItemID.IsNil() {
		lineItemID = a.LineItemID.String()
	}
	return &allocationModel{
		ID:             a.ID.String(),
		TenantID:       a.TenantID,
		PaymentID:      a.PaymentID.String(),
		InvoiceID:      a.InvoiceID.String(),
		LineItemID:     lineItemID,
		AmountCents:    a.Amount.Amount,
		AmountCurrency: a.Amount.Currency,
		Sequence:       a.Sequence,
		CreatedAt:      a.CreatedAt,
	}
}

func fromAllocationModel(m *allocationModel) (*payment.Allocation, error) {
	allocID, err := id.ParseAllocationID(m.ID)
	if err != nil {
		return nil, err
	}
	payID, err := id.ParsePaymentID(m.PaymentID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}
	var lineItemID id.LineItemID
	if m.LineItemID != "" {
		lineItemID, err = id.ParseLineItemID(m.LineItemID)
		if err != nil {
			return nil, err
		}
	}

	return &payment.Allocation{
		ID:         allocID,
		TenantID:   m.TenantID,
		PaymentID:  payID,
		InvoiceID:  invID,
		LineItemID: lineItemID,
		Amount:     types.Money{Amount: m.AmountCents, Currency: m.AmountCurrency},
		Sequence:   m.Sequence,
		CreatedAt:  m.CreatedAt,
	}, nil
}

// ==================== Credit models ====================

type creditModel struct {
	grove.BaseModel `grove:"table:remit_credits"`

	ID                string     `grove:"id,pk"`
	TenantID          string     `grove:"tenant_id"`
	ClientID          string     `grove:"client_id"`
	Status            string     `grove:"status"`
	SourceType        string     `grove:"source_type"`
	Currency          string     `grove:"currency"`
	AmountCents       int64      `grove:"amount_cents"`
	AmountCurrency    string     `grove:"amount_currency"`
	RemainingCents    int64      `grove:"remaining_cents"`
	RemainingCurrency string     `grove:"remaining_currency"`
	ExpiresAt         *time.Time `grove:"expires_at"`
	CancelReason      string     `grove:"cancel_reason"`
	Metadata          string     `grove:"metadata"`
	Version           int64      `grove:"version"`
	CreatedAt         time.Time  `grove:"created_at"`
	UpdatedAt         time.Time  `grove:"updated_at"`
}

func toCreditModel(c *credit.Credit) *creditModel {
	metadata, _ := json.Marshal(c.Metadata) //nolint:errcheck // best-effort

	return &creditModel{
		ID:                c.ID.String(),
		TenantID:          c.TenantID,
		ClientID:          c.ClientID,
		Status:            string(c.Status),
		SourceType:        string(c.SourceType),
		Currency:          c.Currency,
		AmountCents:       c.Amount.Amount,
		AmountCurrency:    c.Amount.Currency,
		RemainingCents:    c.Remaining.Amount,
		RemainingCurrency: c.Remaining.Currency,
		ExpiresAt:         c.ExpiresAt,
		CancelReason:      c.CancelReason,
		Metadata:          string(metadata),
		Version:           c.Version,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func fromCreditModel(m *creditModel) (*credit.Credit, error) {
	crdID, err := id.ParseCreditID(m.ID)
	if err != nil {
		return nil, err
	}

	var metadata map[string]string
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &metadata) //nolint:errcheck // best-effort
	}

	return &credit.Credit{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Version:   m.Version,
		},
		ID:           crdID,
		TenantID:     m.TenantID,
		ClientID:     m.ClientID,
		Status:       credit.Status(m.Status),
		SourceType:   credit.SourceType(m.SourceType),
		Currency:     m.Currency,
		Amount:       types.Money{Amount: m.AmountCents, Currency: m.AmountCurrency},
		Remaining:    types.Money{Amount: m.RemainingCents, Currency: m.RemainingCurrency},
		ExpiresAt:    m.ExpiresAt,
		CancelReason: m.CancelReason,
		Metadata:     metadata,
	}, nil
}

// ==================== Credit application models ====================

type applicationModel struct {
	grove.BaseModel `grove:"table:remit_credit_applications"`

	ID             string    `grove:"id,pk"`
	TenantID       string    `grove:"tenant_id"`
	CreditID       string    `grove:"credit_id"`
	InvoiceID      string    `grove:"invoice_id"`
	LineItemID     string    `grove:"line_item_id"`
	AmountCents    int64     `grove:"amount_cents"`
	AmountCurrency string    `grove:"amount_currency"`
	CreatedAt      time.Time `grove:"created_at"`
}

func toApplicationModel(a *credit.Application) *applicationModel {
	lineItemID := ""
	if !a.LineItemID.IsNil() {
		lineItemID = a.LineItemID.String()
	}
	return &applicationModel{
		ID:             a.ID.String(),
		TenantID:       a.TenantID,
		CreditID:       a.CreditID.String(),
		InvoiceID:      a.InvoiceID.String(),
		LineItemID:     lineItemID,
		AmountCents:    a.Amount.Amount,
		AmountCurrency: a.Amount.Currency,
		CreatedAt:      a.CreatedAt,
	}
}

func fromApplicationModel(m *applicationModel) (*credit.Application, error) {
	appID, err := id.ParseApplicationID(m.ID)
	if err != nil {
		return nil, err
	}
	crdID, err := id.ParseCreditID(m.CreditID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}
	var lineItemID id.LineItemID
	if m.LineItemID != "" {
		lineItemID, err = id.ParseLineItemID(m.LineItemID)
		if err != nil {
			return nil, err
		}
	}

	return &credit.Application{
		ID:         appID,
		TenantID:   m.TenantID,
		CreditID:   crdID,
		InvoiceID:  invID,
		LineItemID: lineItemID,
		Amount:     types.Money{Amount: m.AmountCents, Currency: m.AmountCurrency},
		CreatedAt:  m.CreatedAt,
	}, nil
}

// ==================== Dispute models ====================

type disputeModel struct {
	grove.BaseModel `grove:"table:remit_disputes"`

	ID               string     `grove:"id,pk"`
	TenantID         string     `grove:"tenant_id"`
	InvoiceID        string     `grove:"invoice_id"`
	LineItemID       string     `grove:"line_item_id"`
	ClinicID         string     `grove:"clinic_id"`
	Status           string     `grove:"status"`
	DisputedCents    int64      `grove:"disputed_cents"`
	DisputedCurrency string     `grove:"disputed_currency"`
	Reason           string     `grove:"reason"`
	Messages         string     `grove:"messages"`
	Resolution       string     `grove:"resolution"`
	ResolvedBy       string     `grove:"resolved_by"`
	ResolvedAt       *time.Time `grove:"resolved_at"`
	Version          int64      `grove:"version"`
	CreatedAt        time.Time  `grove:"created_at"`
	UpdatedAt        time.Time  `grove:"updated_at"`
}

func toDisputeModel(d *dispute.Dispute) *disputeModel {
	lineItemID := ""
	if !d.LineItemID.IsNil() {
		lineItemID = d.LineItemID.String()
	}
	messages, _ := json.Marshal(d.Messages) //nolint:errcheck // best-effort

	return &disputeModel{
		ID:               d.ID.String(),
		TenantID:         d.TenantID,
		InvoiceID:        d.InvoiceID.String(),
		LineItemID:       lineItemID,
		ClinicID:         d.ClinicID,
		Status:           string(d.Status),
		DisputedCents:    d.DisputedAmount.Amount,
		DisputedCurrency: d.DisputedAmount.Currency,
		Reason:           d.Reason,
		Messages:         string(messages),
		Resolution:       d.Resolution,
		ResolvedBy:       d.ResolvedBy,
		ResolvedAt:       d.ResolvedAt,
		Version:          d.Version,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func fromDisputeModel(m *disputeModel) (*dispute.Dispute, error) {
	dspID, err := id.ParseDisputeID(m.ID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}
	var lineItemID id.LineItemID
	if m.LineItemID != "" {
		lineItemID, err = id.ParseLineItemID(m.LineItemID)
		if err != nil {
			return nil, err
		}
	}

	var messages []dispute.Message
	if m.Messages != "" {
		_ = json.Unmarshal([]byte(m.Messages), &messages) //nolint:errcheck // best-effort
	}

	return &dispute.Dispute{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Version:   m.Version,
		},
		ID:             dspID,
		TenantID:       m.TenantID,
		InvoiceID:      invID,
		LineItemID:     lineItemID,
		ClinicID:       m.ClinicID,
		Status:         dispute.Status(m.Status),
		DisputedAmount: types.Money{Amount: m.DisputedCents, Currency: m.DisputedCurrency},
		Reason:         m.Reason,
		Messages:       messages,
		Resolution:     m.Resolution,
		ResolvedBy:     m.ResolvedBy,
		ResolvedAt:     m.ResolvedAt,
	}, nil
}
