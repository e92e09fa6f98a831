package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled          AppointmentStatus = "SCHEDULED"
	AppointmentStatusConfirmed          AppointmentStatus = "CONFIRMED"
	AppointmentStatusCancelledByPatient AppointmentStatus = "CANCELLED_BY_PATIENT"
	AppointmentStatusCancelledByStaff   AppointmentStatus = "CANCELLED_BY_STAFF"
	AppointmentStatusCompleted          AppointmentStatus = "COMPLETED"
	AppointmentStatusNoShow             AppointmentStatus = "NO_SHOW"
	AppointmentStatusRescheduled        AppointmentStatus = "RESCHEDULED"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed,
		AppointmentStatusCancelledByPatient, AppointmentStatusCancelledByStaff,
		AppointmentStatusCompleted, AppointmentStatusNoShow, AppointmentStatusRescheduled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from s.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCancelledByPatient, AppointmentStatusCancelledByStaff,
		AppointmentStatusCompleted, AppointmentStatusNoShow, AppointmentStatusRescheduled:
		return true
	}
	return false
}

type AppointmentType string

const (
	AppointmentTypeGeneralConsultation AppointmentType = "GENERAL_CONSULTATION"
	AppointmentTypeSpecialistVisit     AppointmentType = "SPECIALIST_VISIT"
	AppointmentTypeFollowUp            AppointmentType = "FOLLOW_UP"
	AppointmentTypeTelemedicine        AppointmentType = "TELEMEDICINE"
	AppointmentTypeProcedure           AppointmentType = "PROCEDURE"
	AppointmentTypeCheckUp             AppointmentType = "CHECK_UP"
	AppointmentTypeEmergency           AppointmentType = "EMERGENCY"
)

// DefaultAppointmentDuration is applied when a request omits a duration.
const DefaultAppointmentDuration = 30

type Appointment struct {
	Base
	PatientID             uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID              uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	ScheduledByID         uuid.UUID         `db:"scheduled_by" json:"scheduled_by"`
	Type                  AppointmentType   `db:"appointment_type" json:"appointment_type"`
	ScheduledAt           time.Time         `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes       int               `db:"duration_minutes" json:"duration_minutes"`
	Status                AppointmentStatus `db:"status" json:"status"`
	Reason                string            `db:"reason" json:"reason,omitempty"`
	Notes                 string            `db:"notes" json:"notes,omitempty"`
	OriginalAppointmentID *uuid.UUID        `db:"original_appointment_id" json:"original_appointment_id,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID         `json:"patient_id" validate:"required"`
	DoctorID        uuid.UUID         `json:"doctor_id" validate:"required"`
	Type            AppointmentType   `json:"appointment_type" validate:"omitempty,oneof=GENERAL_CONSULTATION SPECIALIST_VISIT FOLLOW_UP TELEMEDICINE PROCEDURE CHECK_UP EMERGENCY"`
	ScheduledAt     time.Time         `json:"scheduled_at" validate:"required"`
	DurationMinutes int               `json:"duration_minutes" validate:"omitempty,gt=0,lte=720"`
	Status          AppointmentStatus `json:"status" validate:"omitempty,oneof=SCHEDULED CONFIRMED"`
	Reason          string            `json:"reason" validate:"max=1000"`
	Notes           string            `json:"notes" validate:"max=2000"`
}

type TransitionAppointmentRequest struct {
	Status AppointmentStatus `json:"status" validate:"required"`
	// NewScheduledAt is mandatory when Status is RESCHEDULED.
	NewScheduledAt *time.Time `json:"new_scheduled_at"`
}

type RescheduleAppointmentRequest struct {
	NewScheduledAt time.Time `json:"new_scheduled_at" validate:"required"`
	Notes          string    `json:"notes" validate:"max=2000"`
}
