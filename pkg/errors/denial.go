package errors

import (
	stderrors "errors"
)

// DenialReason is the enumerable cause of a refused operation. Denials are
// expected outcomes, not system failures.
type DenialReason string

const (
	DenialForbidden           DenialReason = "FORBIDDEN"
	DenialNotOwner            DenialReason = "NOT_OWNER"
	DenialAlreadyTerminal     DenialReason = "ALREADY_TERMINAL"
	DenialIllegalTransition   DenialReason = "ILLEGAL_TRANSITION"
	DenialForbiddenTransition DenialReason = "FORBIDDEN_TRANSITION"
	DenialInvoiceNotEditable  DenialReason = "INVOICE_NOT_EDITABLE"
	DenialInvoiceNotPayable   DenialReason = "INVOICE_NOT_PAYABLE"
	DenialAlreadyPaid         DenialReason = "ALREADY_PAID"
	DenialAmountOutOfRange    DenialReason = "AMOUNT_OUT_OF_RANGE"
	DenialCannotVoidPayments  DenialReason = "CANNOT_VOID_WITH_PAYMENTS"
)

// Denial is returned by every gated or state-machine operation that refuses
// to proceed. It carries no human-readable text.
type Denial struct {
	Reason DenialReason `json:"reason"`
}

func (d *Denial) Error() string {
	return "denied: " + string(d.Reason)
}

// Deny builds a Denial for reason.
func Deny(reason DenialReason) *Denial {
	return &Denial{Reason: reason}
}

// AsDenial extracts a Denial from err.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if stderrors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// IsDenied reports whether err is a Denial with the given reason.
func IsDenied(err error, reason DenialReason) bool {
	d, ok := AsDenial(err)
	return ok && d.Reason == reason
}
