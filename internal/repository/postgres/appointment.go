package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/repository"
)

const appointmentColumns = `
	id, patient_id, doctor_id, scheduled_by, appointment_type,
	scheduled_at, duration_minutes, status, reason, notes,
	original_appointment_id, created_at, updated_at`

const insertAppointment = `
	INSERT INTO appointments (` + appointmentColumns + `
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const updateAppointmentStatus = `
	UPDATE appointments
	SET status = $1, updated_at = $2
	WHERE id = $3 AND status = $4`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, insertAppointment, appointmentArgs(appointment)...)
	r.observe("appointment_create", start, err)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", translate(err))
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	start := time.Now()
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	r.observe("appointment_get", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, apt *model.Appointment, from model.AppointmentStatus) error {
	start := time.Now()
	result, err := r.db.ExecContext(ctx, updateAppointmentStatus, apt.Status, apt.UpdatedAt, apt.ID, from)
	r.observe("appointment_update_status", start, err)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	return checkAffected(result)
}

func (r *appointmentRepository) Reschedule(ctx context.Context, original *model.Appointment, from model.AppointmentStatus, successor *model.Appointment) error {
	start := time.Now()
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, updateAppointmentStatus, original.Status, original.UpdatedAt, original.ID, from)
		if err != nil {
			return fmt.Errorf("failed to update appointment status: %w", err)
		}
		if err := checkAffected(result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertAppointment, appointmentArgs(successor)...); err != nil {
			return fmt.Errorf("failed to create rescheduled appointment: %w", translate(err))
		}
		return nil
	})
	r.observe("appointment_reschedule", start, err)
	return err
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	result, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	r.observe("appointment_delete", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func appointmentArgs(a *model.Appointment) []interface{} {
	return []interface{}{
		a.ID,
		a.PatientID,
		a.DoctorID,
		a.ScheduledByID,
		a.Type,
		a.ScheduledAt,
		a.DurationMinutes,
		a.Status,
		a.Reason,
		a.Notes,
		a.OriginalAppointmentID,
		a.CreatedAt,
		a.UpdatedAt,
	}
}

// checkAffected turns a guarded update that matched nothing into
// ErrStaleWrite.
func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrStaleWrite
	}
	return nil
}
