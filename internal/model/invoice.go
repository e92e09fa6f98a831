package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusVoid          InvoiceStatus = "VOID"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard    PaymentMethod = "DEBIT_CARD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodInsurance    PaymentMethod = "INSURANCE"
	PaymentMethodMobileMoney  PaymentMethod = "MOBILE_MONEY"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCreditCard, PaymentMethodDebitCard,
		PaymentMethodBankTransfer, PaymentMethodInsurance, PaymentMethodMobileMoney, PaymentMethodOther:
		return true
	}
	return false
}

// Invoice is the aggregate root for line items and payments. TotalAmount and
// PaidAmount are derived from Items and Payments and persisted for querying;
// AmountDue and IsOverdue are computed on read and never stored.
type Invoice struct {
	Base
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	PatientID     uuid.UUID       `db:"patient_id" json:"patient_id"`
	IssueDate     time.Time       `db:"issue_date" json:"issue_date"`
	DueDate       time.Time       `db:"due_date" json:"due_date"`
	Status        InvoiceStatus   `db:"status" json:"status"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaidAmount    decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	Notes         string          `db:"notes" json:"notes,omitempty"`
	CreatedByID   uuid.UUID       `db:"created_by" json:"created_by"`
	Items         []LineItem      `db:"-" json:"items"`
	Payments      []Payment       `db:"-" json:"payments"`

	AmountDue decimal.Decimal `db:"-" json:"amount_due"`
	IsOverdue bool            `db:"-" json:"is_overdue"`
}

type LineItem struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	InvoiceID     uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	Position      int             `db:"position" json:"position"`
	Description   string          `db:"description" json:"description"`
	Quantity      int             `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`
	AppointmentID *uuid.UUID      `db:"appointment_id" json:"appointment_id,omitempty"`
}

// Subtotal is quantity × unit price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Payment is immutable once recorded.
type Payment struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	InvoiceID      uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Method         PaymentMethod   `db:"method" json:"method"`
	PaidAt         time.Time       `db:"paid_at" json:"paid_at"`
	TransactionRef string          `db:"transaction_ref" json:"transaction_ref,omitempty"`
	RecordedByID   uuid.UUID       `db:"recorded_by" json:"recorded_by"`
	Notes          string          `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

type CreateInvoiceRequest struct {
	PatientID uuid.UUID         `json:"patient_id" validate:"required"`
	IssueDate time.Time         `json:"issue_date" validate:"required"`
	DueDate   time.Time         `json:"due_date" validate:"required"`
	Notes     string            `json:"notes" validate:"max=2000"`
	Items     []LineItemRequest `json:"items" validate:"dive"`
}

type LineItemRequest struct {
	Description   string          `json:"description" validate:"required,max=255"`
	Quantity      int             `json:"quantity" validate:"required,gte=1"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	AppointmentID *uuid.UUID      `json:"appointment_id"`
}

type RecordPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method" validate:"required,oneof=CASH CREDIT_CARD DEBIT_CARD BANK_TRANSFER INSURANCE MOBILE_MONEY OTHER"`
	PaidAt         *time.Time      `json:"paid_at"`
	TransactionRef string          `json:"transaction_ref" validate:"max=100"`
	Notes          string          `json:"notes" validate:"max=2000"`
	// IdempotencyKey is taken from the Idempotency-Key header.
	IdempotencyKey string `json:"-"`
}
