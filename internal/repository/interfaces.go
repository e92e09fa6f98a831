package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/hms-api/internal/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStaleWrite is returned when a guarded update matched no row because
	// the stored state changed since it was read.
	ErrStaleWrite = errors.New("record was modified concurrently")
	// ErrDuplicate is returned on a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// UpdateStatus persists apt.Status and apt.UpdatedAt only if the stored
		// status still equals from.
		UpdateStatus(ctx context.Context, apt *model.Appointment, from model.AppointmentStatus) error
		// Reschedule marks original RESCHEDULED and inserts successor atomically.
		Reschedule(ctx context.Context, original *model.Appointment, from model.AppointmentStatus, successor *model.Appointment) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	InvoiceRepository interface {
		Create(ctx context.Context, invoice *model.Invoice) error
		// Get loads the invoice with its items and payments.
		Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
		// Save writes header fields and replaces line items, guarded on the
		// previously stored status.
		Save(ctx context.Context, invoice *model.Invoice, from model.InvoiceStatus) error
		// AppendPayment inserts payment and writes the invoice's paid amount and
		// status, guarded on the previously stored status and paid amount.
		AppendPayment(ctx context.Context, invoice *model.Invoice, payment *model.Payment, from model.InvoiceStatus, paidBefore decimal.Decimal) error
		NextInvoiceSequence(ctx context.Context, day time.Time) (int, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filter *model.AuditFilter) ([]*model.AuditLog, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}

	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	}
)
