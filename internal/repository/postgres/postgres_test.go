package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/repository"
	"github.com/jwalitptl/hms-api/pkg/metrics"
)

func newMock(t *testing.T) (BaseRepository, sqlmock.Sqlmock, *metrics.Metrics) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m := metrics.New("test", nil)
	return NewBaseRepository(sqlx.NewDb(db, "postgres"), m), mock, m
}

var appointmentRowColumns = []string{
	"id", "patient_id", "doctor_id", "scheduled_by", "appointment_type",
	"scheduled_at", "duration_minutes", "status", "reason", "notes",
	"original_appointment_id", "created_at", "updated_at",
}

func TestAppointmentRepository_Get(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewAppointmentRepository(base)
	ctx := context.Background()

	id := uuid.New()
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM appointments WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns).AddRow(
			id.String(), uuid.NewString(), uuid.NewString(), uuid.NewString(), "FOLLOW_UP",
			at, 30, "CONFIRMED", "", "", nil, at, at,
		))

	apt, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, apt.ID)
	assert.Equal(t, model.AppointmentStatusConfirmed, apt.Status)
	assert.Equal(t, model.AppointmentTypeFollowUp, apt.Type)
	assert.Nil(t, apt.OriginalAppointmentID)

	mock.ExpectQuery(`SELECT .+ FROM appointments`).WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_UpdateStatusIsGuarded(t *testing.T) {
	base, mock, m := newMock(t)
	repo := NewAppointmentRepository(base)
	ctx := context.Background()

	apt := &model.Appointment{
		Base:   model.Base{ID: uuid.New(), UpdatedAt: time.Now().UTC()},
		Status: model.AppointmentStatusCompleted,
	}

	mock.ExpectExec(`UPDATE appointments\s+SET status = \$1, updated_at = \$2\s+WHERE id = \$3 AND status = \$4`).
		WithArgs("COMPLETED", apt.UpdatedAt, apt.ID, "SCHEDULED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(ctx, apt, model.AppointmentStatusScheduled))

	mock.ExpectExec(`UPDATE appointments`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(ctx, apt, model.AppointmentStatusScheduled)
	assert.ErrorIs(t, err, repository.ErrStaleWrite)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("appointment_update_status", "success")))
}

func TestAppointmentRepository_RescheduleRollsBackOnStaleWrite(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewAppointmentRepository(base)

	original := &model.Appointment{Base: model.Base{ID: uuid.New()}, Status: model.AppointmentStatusRescheduled}
	successor := &model.Appointment{Base: model.Base{ID: uuid.New()}, Status: model.AppointmentStatusScheduled}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE appointments`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Reschedule(context.Background(), original, model.AppointmentStatusScheduled, successor)
	assert.ErrorIs(t, err, repository.ErrStaleWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_Reschedule(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewAppointmentRepository(base)

	original := &model.Appointment{Base: model.Base{ID: uuid.New()}, Status: model.AppointmentStatusRescheduled}
	origID := original.ID
	successor := &model.Appointment{
		Base:                  model.Base{ID: uuid.New()},
		Status:                model.AppointmentStatusScheduled,
		OriginalAppointmentID: &origID,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE appointments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO appointments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Reschedule(context.Background(), original, model.AppointmentStatusConfirmed, successor))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_CreateDuplicate(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectExec(`INSERT INTO appointments`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "appointments_pkey"})

	err := repo.Create(context.Background(), &model.Appointment{Base: model.Base{ID: uuid.New()}})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_Delete(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewAppointmentRepository(base)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM appointments WHERE id = \$1`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec(`DELETE FROM appointments`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_Get(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewInvoiceRepository(base)

	id := uuid.New()
	day := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM invoices WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "invoice_number", "patient_id", "issue_date", "due_date", "status",
			"total_amount", "paid_amount", "notes", "created_by", "created_at", "updated_at",
		}).AddRow(id.String(), "INV-20240401-0001", uuid.NewString(), day, day, "PARTIALLY_PAID",
			"150.00", "100.00", "", uuid.NewString(), day, day))
	mock.ExpectQuery(`FROM invoice_items`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "invoice_id", "position", "description", "quantity", "unit_price", "appointment_id",
		}).AddRow(uuid.NewString(), id.String(), 1, "Consultation", 1, "150.00", nil))
	mock.ExpectQuery(`FROM payments`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "invoice_id", "amount", "method", "paid_at", "transaction_ref", "recorded_by", "notes", "created_at",
		}).AddRow(uuid.NewString(), id.String(), "100.00", "CASH", day, "", uuid.NewString(), "", day))

	inv, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPartiallyPaid, inv.Status)
	assert.True(t, inv.TotalAmount.Equal(decimal.RequireFromString("150")))
	require.Len(t, inv.Items, 1)
	require.Len(t, inv.Payments, 1)
	assert.Equal(t, model.PaymentMethodCash, inv.Payments[0].Method)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_SaveDraftReplacesItems(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewInvoiceRepository(base)

	inv := &model.Invoice{
		Base:   model.Base{ID: uuid.New()},
		Status: model.InvoiceStatusDraft,
		Items: []model.LineItem{
			{ID: uuid.New(), Position: 1, Description: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
			{ID: uuid.New(), Position: 2, Description: "B", Quantity: 2, UnitPrice: decimal.NewFromInt(3)},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE invoices\s+SET status`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM invoice_items WHERE invoice_id = \$1`).WithArgs(inv.ID).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO invoice_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO invoice_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), inv, model.InvoiceStatusDraft))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_SaveSentKeepsItems(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewInvoiceRepository(base)
	inv := &model.Invoice{Base: model.Base{ID: uuid.New()}, Status: model.InvoiceStatusVoid}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE invoices`).
		WithArgs("VOID", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), inv.ID, "SENT").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), inv, model.InvoiceStatusSent))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_AppendPayment(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewInvoiceRepository(base)

	inv := &model.Invoice{
		Base:       model.Base{ID: uuid.New()},
		Status:     model.InvoiceStatusPaid,
		PaidAmount: decimal.RequireFromString("150.00"),
	}
	payment := &model.Payment{ID: uuid.New(), InvoiceID: inv.ID, Amount: decimal.RequireFromString("50.00"), Method: model.PaymentMethodCash}
	paidBefore := decimal.RequireFromString("100.00")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE invoices\s+SET paid_amount = \$1, status = \$2, updated_at = \$3\s+WHERE id = \$4 AND paid_amount = \$5 AND status = \$6`).
		WithArgs("150", "PAID", sqlmock.AnyArg(), inv.ID, "100", "PARTIALLY_PAID").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.AppendPayment(context.Background(), inv, payment, model.InvoiceStatusPartiallyPaid, paidBefore))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE invoices`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	err := repo.AppendPayment(context.Background(), inv, payment, model.InvoiceStatusPartiallyPaid, paidBefore)
	assert.ErrorIs(t, err, repository.ErrStaleWrite)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE invoices`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO payments`).WillReturnError(&pq.Error{Code: "23505", Constraint: "payments_invoice_ref_key"})
	mock.ExpectRollback()
	err = repo.AppendPayment(context.Background(), inv, payment, model.InvoiceStatusPartiallyPaid, paidBefore)
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_AppendPaymentAfterVoid(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewInvoiceRepository(base)

	inv := &model.Invoice{
		Base:       model.Base{ID: uuid.New()},
		Status:     model.InvoiceStatusPartiallyPaid,
		PaidAmount: decimal.RequireFromString("20.00"),
	}
	payment := &model.Payment{ID: uuid.New(), InvoiceID: inv.ID, Amount: decimal.RequireFromString("20.00"), Method: model.PaymentMethodCreditCard}

	// The row is VOID by now, so the status guard matches nothing even
	// though paid_amount is still zero.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE invoices`).
		WithArgs("20", "PARTIALLY_PAID", sqlmock.AnyArg(), inv.ID, "0", "SENT").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AppendPayment(context.Background(), inv, payment, model.InvoiceStatusSent, decimal.Zero)
	assert.ErrorIs(t, err, repository.ErrStaleWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_NextInvoiceSequence(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewInvoiceRepository(base)

	mock.ExpectQuery(`INSERT INTO invoice_sequences`).
		WithArgs("2024-04-10").
		WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(7))

	seq, err := repo.NextInvoiceSequence(context.Background(), time.Date(2024, 4, 10, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 7, seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_ListBuildsFilters(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewAuditRepository(base)

	actorID := uuid.New()
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM audit_logs WHERE 1=1 AND actor_id = \$1 AND outcome = \$2 AND created_at >= \$3 ORDER BY created_at DESC LIMIT \$4`).
		WithArgs(actorID, "denied", since, 100).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "actor_id", "actor_role", "action", "entity_type", "entity_id",
			"outcome", "reason", "changes", "metadata", "ip_address", "user_agent", "created_at",
		}).AddRow(uuid.NewString(), actorID.String(), "PATIENT", "transition", "appointment", uuid.NewString(),
			"denied", "NOT_OWNER", []byte("null"), []byte(`{"request_id":"abc"}`), "10.0.0.1", "curl", since))

	logs, err := repo.List(context.Background(), &model.AuditFilter{
		ActorID: &actorID,
		Outcome: "denied",
		Since:   since,
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "NOT_OWNER", logs[0].Reason)
	assert.JSONEq(t, `{"request_id":"abc"}`, string(logs[0].Metadata))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_CreateAndCleanup(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewAuditRepository(base)

	entry := &model.AuditLog{ID: uuid.New(), Action: "void", Outcome: "success", CreatedAt: time.Now().UTC()}
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(entry.ID, sqlmock.AnyArg(), sqlmock.AnyArg(), "void", sqlmock.AnyArg(), sqlmock.AnyArg(),
			"success", "", nil, nil, "", "", entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), entry))

	cutoff := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM audit_logs\s+WHERE created_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))
	n, err := repo.Cleanup(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmailNormalizes(t *testing.T) {
	base, mock, _ := newMock(t)
	repo := NewUserRepository(base)

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM users WHERE lower\(email\) = \$1`).
		WithArgs("nurse@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "full_name", "password_hash", "role", "is_active", "last_login_at", "created_at", "updated_at",
		}).AddRow(id.String(), "Nurse@Example.com", "Night Nurse", "hash", "NURSE", true, nil, now, now))

	user, err := repo.GetByEmail(context.Background(), "  Nurse@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, model.RoleNurse, user.Role)
	assert.Nil(t, user.LastLoginAt)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
