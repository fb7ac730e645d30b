package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/halcyonlabs/remit/credit"
	"github.com/halcyonlabs/remit/dispute"
	"github.com/halcyonlabs/remit/id"
	"github.com/halcyonlabs/remit/invoice"
	"github.com/halcyonlabs/remit/payment"
	"github.com/halcyonlabs/remit/types"
)

// ==================== Invoice models ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:remit_invoices"`

	ID            string            `grove:"id,pk"          bson:"_id"`
	TenantID      string            `grove:"tenant_id"      bson:"tenant_id"`
	ClientID      string            `grove:"client_id"      bson:"client_id"`
	Number        string            `grove:"number"         bson:"number"`
	Status        string            `grove:"status"         bson:"status"`
	Currency      string            `grove:"currency"       bson:"currency"`
	TotalCents    int64             `grove:"total_cents"    bson:"total_cents"`
	TotalCurrency string            `grove:"total_currency" bson:"total_currency"`
	PaidCents     int64             `grove:"paid_cents"     bson:"paid_cents"`
	PaidCurrency  string            `grove:"paid_currency"  bson:"paid_currency"`
	DueDate       time.Time         `grove:"due_date"       bson:"due_date"`
	LineItems     []lineItemModel   `grove:"line_items"     bson:"line_items,omitempty"`
	FinalizedAt   *time.Time        `grove:"finalized_at"   bson:"finalized_at,omitempty"`
	PaidAt        *time.Time        `grove:"paid_at"        bson:"paid_at,omitempty"`
	CancelledAt   *time.Time        `grove:"cancelled_at"   bson:"cancelled_at,omitempty"`
	Metadata      map[string]string `grove:"metadata"       bson:"metadata,omitempty"`
	Version       int64             `grove:"version"        bson:"version"`
	CreatedAt     time.Time         `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time         `grove:"updated_at"     bson:"updated_at"`
}

type lineItemModel struct {
	ID             string `bson:"id"`
	InvoiceID      string `bson:"invoice_id"`
	Accession      string `bson:"accession"`
	CPTCode        string `bson:"cpt_code"`
	PatientName    string `bson:"patient_name"`
	AmountCents    int64  `bson:"amount_cents"`
	AmountCurrency string `bson:"amount_currency"`
	PaidCents      int64  `bson:"paid_cents"`
	PaidCurrency   string `bson:"paid_currency"`
	Active         bool   `bson:"active"`
	Disputed       bool   `bson:"disputed"`
	NeedsReinvoice bool   `bson:"needs_reinvoice"`
	PriceLocked    bool   `bson:"price_locked"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	lineItems := make([]lineItemModel, len(inv.LineItems))
	for i, li := range inv.LineItems {
		lineItems[i] = lineItemModel{
			ID:             li.ID.String(),
			InvoiceID:      li.InvoiceID.String(),
			Accession:      li.Accession,
			CPTCode:        li.CPTCode,
			PatientName:    li.PatientName,
			AmountCents:    li.Amount.Amount,
			AmountCurrency: li.Amount.Currency,
			PaidCents:      li.Paid.Amount,
			PaidCurrency:   li.Paid.Currency,
			Active:         li.Active,
			Disputed:       li.Disputed,
			NeedsReinvoice: li.NeedsReinvoice,
			PriceLocked:    li.PriceLocked,
		}
	}

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
		LineItems:     lineItems,
		FinalizedAt:   inv.FinalizedAt,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		Metadata:      inv.Metadata,
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

	lineItems := make([]invoice.LineItem, len(m.LineItems))
	for i, li := range m.LineItems {
		liID, err := id.ParseLineItemID(li.ID)
		if err != nil {
			return nil, err
		}
		var liInvID id.InvoiceID
		if li.InvoiceID != "" {
			liInvID, err = id.ParseInvoiceID(li.InvoiceID)
			if err != nil {
				return nil, err
			}
		}
		lineItems[i] = invoice.LineItem{
			ID:             liID,
			InvoiceID:      liInvID,
			Accession:      li.Accession,
			CPTCode:        li.CPTCode,
			PatientName:    li.PatientName,
			Amount:         types.Money{Amount: li.AmountCents, Currency: li.AmountCurrency},
			Paid:           types.Money{Amount: li.PaidCents, Currency: li.PaidCurrency},
			Active:         li.Active,
			Disputed:       li.Disputed,
			NeedsReinvoice: li.NeedsReinvoice,
			PriceLocked:    li.PriceLocked,
		}
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
		Metadata:    m.Metadata,
	}, nil
}

// ==================== Invoice history models ====================

type historyModel struct {
	grove.BaseModel `grove:"table:remit_invoice_history"`

	ID         string    `grove:"id,pk"       bson:"_id"`
	InvoiceID  string    `grove:"invoice_id"  bson:"invoice_id"`
	FromStatus string    `grove:"from_status" bson:"from_status"`
	ToStatus   string    `grove:"to_status"   bson:"to_status"`
	Actor      string    `grove:"actor"       bson:"actor"`
	Note       string    `grove:"note"        bson:"note"`
	Automatic  bool      `grove:"automatic"   bson:"automatic"`
	At         time.Time `grove:"at"          bson:"at"`
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

	ID                  string            `grove:"id,pk"                bson:"_id"`
	TenantID            string            `grove:"tenant_id"            bson:"tenant_id"`
	ClientID            string            `grove:"client_id"            bson:"client_id"`
	Number              string            `grove:"number"               bson:"number"`
	Status              string            `grove:"status"               bson:"status"`
	Currency            string            `grove:"currency"             bson:"currency"`
	AmountCents         int64             `grove:"amount_cents"         bson:"amount_cents"`
	AmountCurrency      string            `grove:"amount_currency"      bson:"amount_currency"`
	AllocatedCents      int64             `grove:"allocated_cents"      bson:"allocated_cents"`
	AllocatedCurrency   string            `grove:"allocated_currency"   bson:"allocated_currency"`
	UnallocatedCents    int64             `grove:"unallocated_cents"    bson:"unallocated_cents"`
	UnallocatedCurrency string            `grove:"unallocated_currency" bson:"unallocated_currency"`
	ReceivedAt          time.Time         `grove:"received_at"          bson:"received_at"`
	PostedAt            *time.Time        `grove:"posted_at"            bson:"posted_at,omitempty"`
	Metadata            map[string]string `grove:"metadata"             bson:"metadata,omitempty"`
	Version             int64             `grove:"version"              bson:"version"`
	CreatedAt           time.Time         `grove:"created_at"           bson:"created_at"`
	UpdatedAt           time.Time         `grove:"updated_at"           bson:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
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
		Metadata:            p.Metadata,
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
		Metadata:    m.Metadata,
	}, nil
}

// ==================== Allocation models ====================

type allocationModel struct {
	grove.BaseModel `grove:"table:remit_allocations"`

	ID             string    `grove:"id,pk"           bson:"_id"`
	TenantID       string    `grove:"tenant_id"       bson:"tenant_id"`
	PaymentID      string    `grove:"payment_id"      bson:"payment_id"`
	InvoiceID      string    `grove:"invoice_id"      bson:"invoice_id"`
	LineItemID     string    `grove:"line_item_id"    bson:"line_item_id,omitempty"`
	AmountCents    int64     `grove:"amount_cents"    bson:"amount_cents"`
	AmountCurrency string    `grove:"amount_currency" bson:"amount_currency"`
	Sequence       int64     `grove:"sequence"        bson:"sequence"`
	CreatedAt      time.Time `grove:"created_at"      bson:"created_at"`
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

	ID                string            `grove:"id,pk"              bson:"_id"`
	TenantID          string            `grove:"tenant_id"          bson:"tenant_id"`
	ClientID          string            `grove:"client_id"          bson:"client_id"`
	Status            string            `grove:"status"             bson:"status"`
	SourceType        string            `grove:"source_type"        bson:"source_type"`
	Currency          string            `grove:"currency"           bson:"currency"`
	AmountCents       int64             `grove:"amount_cents"       bson:"amount_cents"`
	AmountCurrency    string            `grove:"amount_currency"    bson:"amount_currency"`
	RemainingCents    int64             `grove:"remaining_cents"    bson:"remaining_cents"`
	RemainingCurrency string            `grove:"remaining_currency" bson:"remaining_currency"`
	ExpiresAt         *time.Time        `grove:"expires_at"         bson:"expires_at,omitempty"`
	CancelReason      string            `grove:"cancel_reason"      bson:"cancel_reason"`
	Metadata          map[string]string `grove:"metadata"           bson:"metadata,omitempty"`
	Version           int64             `grove:"version"            bson:"version"`
	CreatedAt         time.Time         `grove:"created_at"         bson:"created_at"`
	UpdatedAt         time.Time         `grove:"updated_at"         bson:"updated_at"`
}

func toCreditModel(c *credit.Credit) *creditModel {
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
		Metadata:          c.Metadata,
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
		Metadata:     m.Metadata,
	}, nil
}

// ==================== Credit application models ====================

type applicationModel struct {
	grove.BaseModel `grove:"table:remit_credit_applications"`

	ID             string    `grove:"id,pk"           bson:"_id"`
	TenantID       string    `grove:"tenant_id"       bson:"tenant_id"`
	CreditID       string    `grove:"credit_id"       bson:"credit_id"`
	InvoiceID      string    `grove:"invoice_id"      bson:"invoice_id"`
	LineItemID     string    `grove:"line_item_id"    bson:"line_item_id,omitempty"`
	AmountCents    int64     `grove:"amount_cents"    bson:"amount_cents"`
	AmountCurrency string    `grove:"amount_currency" bson:"amount_currency"`
	CreatedAt      time.Time `grove:"created_at"      bson:"created_at"`
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

	ID               string         `grove:"id,pk"             bson:"_id"`
	TenantID         string         `grove:"tenant_id"         bson:"tenant_id"`
	InvoiceID        string         `grove:"invoice_id"        bson:"invoice_id"`
	LineItemID       string         `grove:"line_item_id"      bson:"line_item_id,omitempty"`
	ClinicID         string         `grove:"clinic_id"         bson:"clinic_id"`
	Status           string         `grove:"status"            bson:"status"`
	DisputedCents    int64          `grove:"disputed_cents"    bson:"disputed_cents"`
	DisputedCurrency string         `grove:"disputed_currency" bson:"disputed_currency"`
	Reason           string         `grove:"reason"            bson:"reason"`
	Messages         []messageModel `grove:"messages"          bson:"messages,omitempty"`
	Resolution       string         `grove:"resolution"        bson:"resolution"`
	ResolvedBy       string         `grove:"resolved_by"       bson:"resolved_by"`
	ResolvedAt       *time.Time     `grove:"resolved_at"       bson:"resolved_at,omitempty"`
	Version          int64          `grove:"version"           bson:"version"`
	CreatedAt        time.Time      `grove:"created_at"        bson:"created_at"`
	UpdatedAt        time.Time      `grove:"updated_at"        bson:"updated_at"`
}

type messageModel struct {
	Author string    `bson:"author"`
	Body   string    `bson:"body"`
	At     time.Time `bson:"at"`
}

func toDisputeModel(d *dispute.Dispute) *disputeModel {
	lineItemID := ""
	if !d.LineItemID.IsNil() {
		lineItemID = d.LineItemID.String()
	}
	messages := make([]messageModel, len(d.Messages))
	for i, msg := range d.Messages {
		messages[i] = messageModel{
			Author: msg.Author,
			Body:   msg.Body,
			At:     msg.At,
		}
	}

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
		Messages:         messages,
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

	messages := make([]dispute.Message, len(m.Messages))
	for i, msg := range m.Messages {
		messages[i] = dispute.Message{
			Author: msg.Author,
			Body:   msg.Body,
			At:     msg.At,
		}
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
