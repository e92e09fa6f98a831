package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/hms-api/internal/model"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

// The functions in this file are pure: they take an invoice by value, never
// modify it or its slices, and return the next state or a Denial.

// PaymentInput is a payment about to be applied to an invoice.
type PaymentInput struct {
	ID             uuid.UUID
	Amount         decimal.Decimal
	Method         model.PaymentMethod
	PaidAt         time.Time
	TransactionRef string
	RecordedBy     uuid.UUID
	Notes          string
}

// PaymentResult is the outcome of RecordPayment. Replayed is set when the
// transaction reference was already applied and nothing changed.
type PaymentResult struct {
	Invoice  model.Invoice
	Payment  model.Payment
	Replayed bool
}

// Total sums quantity × unit price over all line items.
func Total(items []model.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// Paid sums all recorded payments.
func Paid(payments []model.Payment) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// AmountDue is total minus paid, floored at zero.
func AmountDue(inv model.Invoice) decimal.Decimal {
	due := inv.TotalAmount.Sub(inv.PaidAmount)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// IsOverdue reports whether inv is unsettled and asOf falls on a day after
// the due date.
func IsOverdue(inv model.Invoice, asOf time.Time) bool {
	if inv.Status == model.InvoiceStatusPaid || inv.Status == model.InvoiceStatusVoid {
		return false
	}
	return dateOf(asOf).After(dateOf(inv.DueDate))
}

// WithDerived fills the read-only AmountDue and IsOverdue fields.
func WithDerived(inv model.Invoice, asOf time.Time) model.Invoice {
	inv.AmountDue = AmountDue(inv)
	inv.IsOverdue = IsOverdue(inv, asOf)
	return inv
}

// AddLineItem appends item to a DRAFT invoice.
func AddLineItem(inv model.Invoice, item model.LineItem, at time.Time) (model.Invoice, error) {
	if inv.Status != model.InvoiceStatusDraft {
		return inv, apperrors.Deny(apperrors.DenialInvoiceNotEditable)
	}
	if err := validateItem(item); err != nil {
		return inv, err
	}
	next := clone(inv)
	item.InvoiceID = inv.ID
	next.Items = append(next.Items, item)
	return recompute(next, at), nil
}

// EditLineItem replaces the line item with the same ID.
func EditLineItem(inv model.Invoice, item model.LineItem, at time.Time) (model.Invoice, error) {
	if inv.Status != model.InvoiceStatusDraft {
		return inv, apperrors.Deny(apperrors.DenialInvoiceNotEditable)
	}
	if err := validateItem(item); err != nil {
		return inv, err
	}
	idx := indexOfItem(inv.Items, item.ID)
	if idx < 0 {
		return inv, apperrors.NotFound("line item", nil)
	}
	next := clone(inv)
	item.InvoiceID = inv.ID
	next.Items[idx] = item
	return recompute(next, at), nil
}

// RemoveLineItem drops the line item with itemID.
func RemoveLineItem(inv model.Invoice, itemID uuid.UUID, at time.Time) (model.Invoice, error) {
	if inv.Status != model.InvoiceStatusDraft {
		return inv, apperrors.Deny(apperrors.DenialInvoiceNotEditable)
	}
	idx := indexOfItem(inv.Items, itemID)
	if idx < 0 {
		return inv, apperrors.NotFound("line item", nil)
	}
	next := clone(inv)
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	return recompute(next, at), nil
}

// Send moves a DRAFT invoice to SENT.
func Send(inv model.Invoice, at time.Time) (model.Invoice, error) {
	if inv.Status != model.InvoiceStatusDraft {
		return inv, apperrors.Deny(apperrors.DenialIllegalTransition)
	}
	if len(inv.Items) == 0 {
		return inv, apperrors.BadRequest("an invoice needs at least one line item before it is sent", nil)
	}
	if !Total(inv.Items).IsPositive() {
		return inv, apperrors.BadRequest("an invoice with a zero total cannot be sent", nil)
	}
	next := clone(inv)
	next.Status = model.InvoiceStatusSent
	return recompute(next, at), nil
}

// RecordPayment applies p to inv. A transaction reference already present on
// the invoice replays the earlier payment instead of counting it twice.
func RecordPayment(inv model.Invoice, p PaymentInput, at time.Time) (PaymentResult, error) {
	if ref := strings.TrimSpace(p.TransactionRef); ref != "" {
		for _, existing := range inv.Payments {
			if existing.TransactionRef != ref {
				continue
			}
			if !existing.Amount.Equal(p.Amount) {
				return PaymentResult{Invoice: inv}, apperrors.Conflict(
					fmt.Sprintf("transaction %s was already recorded with a different amount", ref), nil)
			}
			return PaymentResult{Invoice: inv, Payment: existing, Replayed: true}, nil
		}
	}

	if !p.Method.Valid() {
		return PaymentResult{Invoice: inv}, apperrors.BadRequest(fmt.Sprintf("unknown payment method %q", p.Method), nil)
	}

	switch inv.Status {
	case model.InvoiceStatusSent, model.InvoiceStatusPartiallyPaid:
	case model.InvoiceStatusPaid:
		return PaymentResult{Invoice: inv}, apperrors.Deny(apperrors.DenialAlreadyPaid)
	default:
		return PaymentResult{Invoice: inv}, apperrors.Deny(apperrors.DenialInvoiceNotPayable)
	}

	if !p.Amount.IsPositive() || !isCents(p.Amount) || p.Amount.GreaterThan(AmountDue(inv)) {
		return PaymentResult{Invoice: inv}, apperrors.Deny(apperrors.DenialAmountOutOfRange)
	}

	paidAt := p.PaidAt
	if paidAt.IsZero() {
		paidAt = at
	}
	payment := model.Payment{
		ID:             p.ID,
		InvoiceID:      inv.ID,
		Amount:         p.Amount,
		Method:         p.Method,
		PaidAt:         paidAt,
		TransactionRef: strings.TrimSpace(p.TransactionRef),
		RecordedByID:   p.RecordedBy,
		Notes:          p.Notes,
		CreatedAt:      at,
	}

	next := clone(inv)
	next.Payments = append(next.Payments, payment)
	next.PaidAmount = inv.PaidAmount.Add(p.Amount)
	if next.PaidAmount.Equal(next.TotalAmount) {
		next.Status = model.InvoiceStatusPaid
	} else {
		next.Status = model.InvoiceStatusPartiallyPaid
	}
	next.UpdatedAt = at
	return PaymentResult{Invoice: next, Payment: payment}, nil
}

// Void moves inv to VOID from any status as long as nothing has been paid.
func Void(inv model.Invoice, at time.Time) (model.Invoice, error) {
	if len(inv.Payments) > 0 || inv.PaidAmount.IsPositive() {
		return inv, apperrors.Deny(apperrors.DenialCannotVoidPayments)
	}
	next := clone(inv)
	next.Status = model.InvoiceStatusVoid
	next.UpdatedAt = at
	return next, nil
}

func validateItem(item model.LineItem) error {
	if strings.TrimSpace(item.Description) == "" {
		return apperrors.BadRequest("line item description is required", nil)
	}
	if item.Quantity < 1 {
		return apperrors.BadRequest("line item quantity must be at least 1", nil)
	}
	if item.UnitPrice.IsNegative() {
		return apperrors.BadRequest("line item unit price cannot be negative", nil)
	}
	if !isCents(item.UnitPrice) {
		return apperrors.BadRequest("line item unit price cannot have more than two decimal places", nil)
	}
	return nil
}

// isCents reports whether d fits the NUMERIC(12,2) money columns unchanged.
func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func indexOfItem(items []model.LineItem, id uuid.UUID) int {
	for i, li := range items {
		if li.ID == id {
			return i
		}
	}
	return -1
}

func recompute(inv model.Invoice, at time.Time) model.Invoice {
	for i := range inv.Items {
		inv.Items[i].Position = i + 1
	}
	inv.TotalAmount = Total(inv.Items)
	inv.UpdatedAt = at
	return inv
}

func clone(inv model.Invoice) model.Invoice {
	next := inv
	next.Items = append([]model.LineItem(nil), inv.Items...)
	next.Payments = append([]model.Payment(nil), inv.Payments...)
	return next
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
