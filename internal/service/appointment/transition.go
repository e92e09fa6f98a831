package appointment

import (
	"fmt"
	"time"

	"github.com/jwalitptl/hms-api/internal/model"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

// Reachable targets per non-terminal status. Terminal statuses have no entry.
var transitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusScheduled: {
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCancelledByPatient,
		model.AppointmentStatusCancelledByStaff,
		model.AppointmentStatusCompleted,
		model.AppointmentStatusNoShow,
		model.AppointmentStatusRescheduled,
	},
	model.AppointmentStatusConfirmed: {
		model.AppointmentStatusCancelledByPatient,
		model.AppointmentStatusCancelledByStaff,
		model.AppointmentStatusCompleted,
		model.AppointmentStatusNoShow,
		model.AppointmentStatusRescheduled,
	},
}

var (
	anyStaff = []model.Role{model.RoleDoctor, model.RoleNurse, model.RoleReceptionist, model.RoleAdmin}

	// Roles allowed to request each target status.
	transitionRoles = map[model.AppointmentStatus][]model.Role{
		model.AppointmentStatusCancelledByPatient: {model.RolePatient},
		model.AppointmentStatusCancelledByStaff:   {model.RoleDoctor, model.RoleReceptionist, model.RoleAdmin},
		model.AppointmentStatusConfirmed:          anyStaff,
		model.AppointmentStatusNoShow:             anyStaff,
		model.AppointmentStatusCompleted:          anyStaff,
		model.AppointmentStatusRescheduled:        anyStaff,
	}
)

// TransitionRequest describes a requested status change.
type TransitionRequest struct {
	Status         model.AppointmentStatus
	Actor          model.Actor
	NewScheduledAt *time.Time
	At             time.Time
}

// CanTransition reports whether to is reachable from from, ignoring roles.
func CanTransition(from, to model.AppointmentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition applies req to apt and returns the updated copy. apt is never
// modified. Refusals are *errors.Denial; a malformed request is an AppError.
func Transition(apt model.Appointment, req TransitionRequest) (model.Appointment, error) {
	if apt.Status.IsTerminal() {
		return apt, apperrors.Deny(apperrors.DenialAlreadyTerminal)
	}
	if !req.Status.Valid() {
		return apt, apperrors.BadRequest(fmt.Sprintf("unknown appointment status %q", req.Status), nil)
	}
	if !CanTransition(apt.Status, req.Status) {
		return apt, apperrors.Deny(apperrors.DenialIllegalTransition)
	}
	if !roleAllowed(req.Status, req.Actor.Role) {
		return apt, apperrors.Deny(apperrors.DenialForbiddenTransition)
	}
	if req.Status == model.AppointmentStatusCancelledByPatient && apt.PatientID != req.Actor.ID {
		return apt, apperrors.Deny(apperrors.DenialNotOwner)
	}
	if req.Status == model.AppointmentStatusRescheduled {
		if req.NewScheduledAt == nil || req.NewScheduledAt.IsZero() {
			return apt, apperrors.BadRequest("new_scheduled_at is required to reschedule", nil)
		}
		if req.NewScheduledAt.Equal(apt.ScheduledAt) {
			return apt, apperrors.BadRequest("new_scheduled_at must differ from the current time", nil)
		}
	}

	next := apt
	next.Status = req.Status
	next.UpdatedAt = req.At
	return next, nil
}

// InitialStatus resolves the status a new appointment starts in. Only staff
// may pre-confirm.
func InitialStatus(requested model.AppointmentStatus, actor model.Actor) (model.AppointmentStatus, error) {
	switch requested {
	case "", model.AppointmentStatusScheduled:
		return model.AppointmentStatusScheduled, nil
	case model.AppointmentStatusConfirmed:
		if !actor.Role.IsStaff() {
			return "", apperrors.Deny(apperrors.DenialForbiddenTransition)
		}
		return model.AppointmentStatusConfirmed, nil
	default:
		return "", apperrors.Deny(apperrors.DenialIllegalTransition)
	}
}

func roleAllowed(status model.AppointmentStatus, role model.Role) bool {
	for _, r := range transitionRoles[status] {
		if r == role {
			return true
		}
	}
	return false
}
