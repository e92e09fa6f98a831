package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hms-api/internal/model"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

var testNow = time.Date(2024, 4, 10, 14, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(desc string, qty int, price string) model.LineItem {
	return model.LineItem{ID: uuid.New(), Description: desc, Quantity: qty, UnitPrice: dec(price)}
}

// sentInvoice returns a SENT invoice whose items sum to total.
func sentInvoice(t *testing.T, total string) model.Invoice {
	t.Helper()
	inv := model.Invoice{
		Base:      model.Base{ID: uuid.New()},
		PatientID: uuid.New(),
		IssueDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
		Status:    model.InvoiceStatusDraft,
	}
	inv, err := AddLineItem(inv, item("Consultation", 1, total), testNow)
	require.NoError(t, err)
	inv, err = Send(inv, testNow)
	require.NoError(t, err)
	return inv
}

func pay(amount string) PaymentInput {
	return PaymentInput{ID: uuid.New(), Amount: dec(amount), Method: model.PaymentMethodCash, RecordedBy: uuid.New()}
}

func TestRecordPayment_PartialThenFull(t *testing.T) {
	inv := sentInvoice(t, "150.00")

	res, err := RecordPayment(inv, pay("100.00"), testNow)
	require.NoError(t, err)
	inv = res.Invoice
	assert.Equal(t, model.InvoiceStatusPartiallyPaid, inv.Status)
	assert.True(t, AmountDue(inv).Equal(dec("50.00")))

	res, err = RecordPayment(inv, pay("50.00"), testNow)
	require.NoError(t, err)
	inv = res.Invoice
	assert.Equal(t, model.InvoiceStatusPaid, inv.Status)
	assert.True(t, AmountDue(inv).IsZero())
	assert.Len(t, inv.Payments, 2)

	_, err = RecordPayment(inv, pay("1.00"), testNow)
	assert.True(t, apperrors.IsDenied(err, apperrors.DenialAlreadyPaid))
}

func TestRecordPayment_AmountBound(t *testing.T) {
	inv := sentInvoice(t, "80.00")
	res, err := RecordPayment(inv, pay("30.00"), testNow)
	require.NoError(t, err)
	inv = res.Invoice

	for _, amount := range []string{"50.01", "51", "1000", "0", "-5"} {
		res, err := RecordPayment(inv, pay(amount), testNow)
		assert.True(t, apperrors.IsDenied(err, apperrors.DenialAmountOutOfRange), "amount %s", amount)
		assert.True(t, res.Invoice.PaidAmount.Equal(dec("30.00")))
		assert.True(t, inv.PaidAmount.Equal(dec("30.00")))
		assert.Len(t, inv.Payments, 1)
	}
}

func TestRecordPayment_RejectsSubCentAmounts(t *testing.T) {
	tests := []struct {
		name   string
		total  string
		amount string
	}{
		{"rounds up to the full total", "10.00", "9.995"},
		{"rounds down to zero", "10.00", "0.004"},
		{"three places below the due", "10.00", "1.001"},
		{"four places", "10.00", "0.0050"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := sentInvoice(t, tt.total)
			res, err := RecordPayment(inv, pay(tt.amount), testNow)
			assert.True(t, apperrors.IsDenied(err, apperrors.DenialAmountOutOfRange))
			assert.Equal(t, model.InvoiceStatusSent, res.Invoice.Status)
			assert.True(t, res.Invoice.PaidAmount.IsZero())
			assert.Empty(t, res.Invoice.Payments)
		})
	}

	inv := sentInvoice(t, "10.00")
	res, err := RecordPayment(inv, pay("9.990"), testNow)
	require.NoError(t, err)
	assert.True(t, AmountDue(res.Invoice).Equal(dec("0.01")))
}

func TestRecordPayment_StatusDerivation(t *testing.T) {
	inv := sentInvoice(t, "100.00")
	for _, amount := range []string{"10.00", "0.01", "39.99", "25.00", "25.00"} {
		res, err := RecordPayment(inv, pay(amount), testNow)
		require.NoError(t, err)
		inv = res.Invoice

		assert.True(t, inv.PaidAmount.Equal(Paid(inv.Payments)))
		if inv.PaidAmount.Equal(inv.TotalAmount) {
			assert.Equal(t, model.InvoiceStatusPaid, inv.Status)
		} else {
			assert.Equal(t, model.InvoiceStatusPartiallyPaid, inv.Status)
			assert.True(t, inv.PaidAmount.IsPositive())
			assert.True(t, inv.PaidAmount.LessThan(inv.TotalAmount))
		}
	}
	assert.Equal(t, model.InvoiceStatusPaid, inv.Status)
}

func TestRecordPayment_NotPayable(t *testing.T) {
	draft := model.Invoice{Base: model.Base{ID: uuid.New()}, Status: model.InvoiceStatusDraft}
	draft, err := AddLineItem(draft, item("X-ray", 1, "40"), testNow)
	require.NoError(t, err)

	_, err = RecordPayment(draft, pay("10"), testNow)
	assert.True(t, apperrors.IsDenied(err, apperrors.DenialInvoiceNotPayable))

	voided, err := Void(draft, testNow)
	require.NoError(t, err)
	_, err = RecordPayment(voided, pay("10"), testNow)
	assert.True(t, apperrors.IsDenied(err, apperrors.DenialInvoiceNotPayable))
}

func TestRecordPayment_InvalidMethod(t *testing.T) {
	inv := sentInvoice(t, "10")
	p := pay("5")
	p.Method = "CHEQUE"
	_, err := RecordPayment(inv, p, testNow)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
}

func TestRecordPayment_TransactionRefReplay(t *testing.T) {
	inv := sentInvoice(t, "120.00")
	p := pay("20.00")
	p.TransactionRef = "TXN-001"

	first, err := RecordPayment(inv, p, testNow)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again := pay("20.00")
	again.TransactionRef = " TXN-001 "
	second, err := RecordPayment(first.Invoice, again, testNow)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.Len(t, second.Invoice.Payments, 1)
	assert.True(t, second.Invoice.PaidAmount.Equal(dec("20.00")))

	conflicting := pay("25.00")
	conflicting.TransactionRef = "TXN-001"
	_, err = RecordPayment(first.Invoice, conflicting, testNow)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
}

func TestRecordPayment_DefaultsPaidAt(t *testing.T) {
	inv := sentInvoice(t, "10")
	res, err := RecordPayment(inv, pay("10"), testNow)
	require.NoError(t, err)
	assert.Equal(t, testNow, res.Payment.PaidAt)
	assert.Equal(t, inv.ID, res.Payment.InvoiceID)
}

func TestVoid(t *testing.T) {
	t.Run("paid invoice cannot be voided", func(t *testing.T) {
		inv := sentInvoice(t, "10")
		res, err := RecordPayment(inv, pay("10"), testNow)
		require.NoError(t, err)

		_, err = Void(res.Invoice, testNow)
		assert.True(t, apperrors.IsDenied(err, apperrors.DenialCannotVoidPayments))
	})

	t.Run("partially paid invoice cannot be voided", func(t *testing.T) {
		inv := sentInvoice(t, "10")
		res, err := RecordPayment(inv, pay("4"), testNow)
		require.NoError(t, err)

		_, err = Void(res.Invoice, testNow)
		assert.True(t, apperrors.IsDenied(err, apperrors.DenialCannotVoidPayments))
	})

	t.Run("no payments always voids", func(t *testing.T) {
		statuses := []model.InvoiceStatus{
			model.InvoiceStatusDraft,
			model.InvoiceStatusSent,
			model.InvoiceStatusVoid,
		}
		for _, s := range statuses {
			inv := model.Invoice{Base: model.Base{ID: uuid.New()}, Status: s}
			next, err := Void(inv, testNow)
			require.NoError(t, err, s)
			assert.Equal(t, model.InvoiceStatusVoid, next.Status)
			assert.Equal(t, s, inv.Status)
		}
	})
}

func TestLineItems_DraftOnly(t *testing.T) {
	inv := model.Invoice{Base: model.Base{ID: uuid.New()}, Status: model.InvoiceStatusDraft}

	inv, err := AddLineItem(inv, item("Consultation", 1, "100.00"), testNow)
	require.NoError(t, err)
	blood := item("Blood panel", 2, "12.50")
	inv, err = AddLineItem(inv, blood, testNow)
	require.NoError(t, err)
	assert.True(t, inv.TotalAmount.Equal(dec("125.00")))
	assert.Equal(t, 2, inv.Items[1].Position)
	assert.Equal(t, inv.ID, inv.Items[1].InvoiceID)

	blood.Quantity = 4
	inv, err = EditLineItem(inv, blood, testNow)
	require.NoError(t, err)
	assert.True(t, inv.TotalAmount.Equal(dec("150.00")))

	inv, err = RemoveLineItem(inv, inv.Items[0].ID, testNow)
	require.NoError(t, err)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, 1, inv.Items[0].Position)
	assert.True(t, inv.TotalAmount.Equal(dec("50.00")))

	_, err = RemoveLineItem(inv, uuid.New(), testNow)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))

	sent, err := Send(inv, testNow)
	require.NoError(t, err)

	_, err = AddLineItem(sent, item("Extra", 1, "1"), testNow)
	assert.True(t, apperrors.IsDenied(err, apperrors.DenialInvoiceNotEditable))
	_, err = EditLineItem(sent, sent.Items[0], testNow)
	assert.True(t, apperrors.IsDenied(err, apperrors.DenialInvoiceNotEditable))
	_, err = RemoveLineItem(sent, sent.Items[0].ID, testNow)
	assert.True(t, apperrors.IsDenied(err, apperrors.DenialInvoiceNotEditable))
}

func TestLineItems_Validation(t *testing.T) {
	inv := model.Invoice{Base: model.Base{ID: uuid.New()}, Status: model.InvoiceStatusDraft}

	bad := []model.LineItem{
		item("  ", 1, "10"),
		item("Gauze", 0, "10"),
		item("Gauze", 1, "-0.01"),
		item("Gauze", 1, "1.005"),
		item("Gauze", 3, "0.333"),
	}
	for _, li := range bad {
		_, err := AddLineItem(inv, li, testNow)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest), "%+v", li)
	}

	free := item("Follow-up call", 1, "0")
	_, err := AddLineItem(inv, free, testNow)
	assert.NoError(t, err)

	_, err = AddLineItem(inv, item("Bandage", 2, "1.50"), testNow)
	assert.NoError(t, err)
}

func TestLineItems_DoNotAliasInput(t *testing.T) {
	inv := model.Invoice{Base: model.Base{ID: uuid.New()}, Status: model.InvoiceStatusDraft}
	inv, err := AddLineItem(inv, item("A", 1, "1"), testNow)
	require.NoError(t, err)
	inv, err = AddLineItem(inv, item("B", 1, "2"), testNow)
	require.NoError(t, err)

	before := append([]model.LineItem(nil), inv.Items...)
	_, err = RemoveLineItem(inv, inv.Items[0].ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, before, inv.Items)
}

func TestSend(t *testing.T) {
	empty := model.Invoice{Status: model.InvoiceStatusDraft}
	_, err := Send(empty, testNow)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))

	inv := sentInvoice(t, "5")
	_, err = Send(inv, testNow)
	assert.True(t, apperrors.IsDenied(err, apperrors.DenialIllegalTransition))
}

func TestSend_RefusesZeroTotal(t *testing.T) {
	draft := model.Invoice{Base: model.Base{ID: uuid.New()}, Status: model.InvoiceStatusDraft}
	draft, err := AddLineItem(draft, item("Follow-up call", 1, "0"), testNow)
	require.NoError(t, err)
	draft, err = AddLineItem(draft, item("Leaflet", 3, "0.00"), testNow)
	require.NoError(t, err)

	res, err := Send(draft, testNow)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
	assert.Equal(t, model.InvoiceStatusDraft, res.Status)

	draft, err = AddLineItem(draft, item("Consultation", 1, "0.01"), testNow)
	require.NoError(t, err)
	res, err = Send(draft, testNow)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusSent, res.Status)
	assert.True(t, res.TotalAmount.Equal(dec("0.01")))
}

func TestIsOverdue(t *testing.T) {
	inv := sentInvoice(t, "10")

	assert.False(t, IsOverdue(inv, time.Date(2024, 4, 30, 23, 59, 0, 0, time.UTC)))
	assert.True(t, IsOverdue(inv, time.Date(2024, 5, 1, 0, 0, 1, 0, time.UTC)))

	inv.Status = model.InvoiceStatusDraft
	assert.True(t, IsOverdue(inv, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)))

	for _, s := range []model.InvoiceStatus{model.InvoiceStatusPaid, model.InvoiceStatusVoid} {
		inv.Status = s
		assert.False(t, IsOverdue(inv, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	}
}

func TestWithDerived(t *testing.T) {
	inv := sentInvoice(t, "75")
	res, err := RecordPayment(inv, pay("25"), testNow)
	require.NoError(t, err)

	out := WithDerived(res.Invoice, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, out.AmountDue.Equal(dec("50")))
	assert.True(t, out.IsOverdue)

	inv.PaidAmount = dec("100")
	assert.True(t, AmountDue(inv).IsZero())
}
