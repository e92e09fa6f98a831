package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_StatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"not found", NotFound("invoice", nil), http.StatusNotFound},
		{"bad request", BadRequest("bad", nil), http.StatusBadRequest},
		{"unauthorized", Unauthorized(nil), http.StatusUnauthorized},
		{"forbidden", &AppError{Code: ErrForbidden}, http.StatusForbidden},
		{"conflict", Conflict("again", nil), http.StatusConflict},
		{"internal", Internal(nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestAppError_Wrapping(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := fmt.Errorf("load: %w", Internal(cause))

	assert.True(t, IsCode(err, ErrInternal))
	assert.False(t, IsCode(err, ErrNotFound))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error: connection reset", Internal(cause).Error())
	assert.Equal(t, "appointment not found", NotFound("appointment", nil).Error())
}

func TestDenial(t *testing.T) {
	err := fmt.Errorf("record payment: %w", Deny(DenialAmountOutOfRange))

	d, ok := AsDenial(err)
	assert.True(t, ok)
	assert.Equal(t, DenialAmountOutOfRange, d.Reason)
	assert.True(t, IsDenied(err, DenialAmountOutOfRange))
	assert.False(t, IsDenied(err, DenialAlreadyPaid))
	assert.Equal(t, "denied: AMOUNT_OUT_OF_RANGE", d.Error())

	_, ok = AsDenial(Conflict("x", nil))
	assert.False(t, ok)
}
