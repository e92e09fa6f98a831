package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/repository"
	"github.com/jwalitptl/hms-api/internal/service/audit"
	"github.com/jwalitptl/hms-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
	"github.com/jwalitptl/hms-api/pkg/metrics"
)

// Auditor records successful and refused operations.
type Auditor interface {
	Log(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, opts *audit.LogOptions) error
	LogDenial(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, denial error) error
}

type Service struct {
	repo    repository.AppointmentRepository
	authz   *rbac.Service
	auditor Auditor
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo repository.AppointmentRepository, authz *rbac.Service, auditor Auditor, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		authz:   authz,
		auditor: auditor,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateAppointment(ctx context.Context, actor model.Actor, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	var err error
	if actor.Role == model.RolePatient {
		err = s.authz.Check(actor, rbac.ScheduleAppointmentForSelf, rbac.Owns(actor, req.PatientID))
	} else {
		err = s.authz.Check(actor, rbac.ScheduleAppointmentForOthers, nil)
	}
	if err != nil {
		return nil, s.denied(ctx, actor, "create_appointment", model.AuditActionCreate, uuid.Nil, err)
	}

	status, err := InitialStatus(req.Status, actor)
	if err != nil {
		return nil, s.denied(ctx, actor, "create_appointment", model.AuditActionCreate, uuid.Nil, err)
	}

	if req.PatientID == req.DoctorID {
		return nil, apperrors.BadRequest("doctor and patient must be different people", nil)
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = model.DefaultAppointmentDuration
	}
	if duration < 0 {
		return nil, apperrors.BadRequest("duration_minutes must be positive", nil)
	}
	aptType := req.Type
	if aptType == "" {
		aptType = model.AppointmentTypeGeneralConsultation
	}

	now := s.now().UTC()
	apt := &model.Appointment{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		ScheduledByID:   actor.ID,
		Type:            aptType,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: duration,
		Status:          status,
		Reason:          req.Reason,
		Notes:           req.Notes,
	}

	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, repository.AppError("appointment", err)
	}

	s.audit(ctx, actor, model.AuditActionCreate, apt.ID, &audit.LogOptions{
		Changes: map[string]interface{}{"status": apt.Status, "scheduled_at": apt.ScheduledAt},
	})
	s.metrics.ObserveDecision("create_appointment", model.AuditOutcomeSuccess, "")
	return apt, nil
}

// GetAppointment returns an appointment visible to actor: staff see all,
// patients only their own.
func (s *Service) GetAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CheckAny(actor,
		rbac.Rule{Permission: rbac.ViewAllAppointments},
		rbac.Rule{Permission: rbac.ViewOwnAppointments, Ownership: rbac.Owns(actor, apt.PatientID)},
	); err != nil {
		return nil, s.denied(ctx, actor, "get_appointment", model.AuditActionRead, id, err)
	}
	return apt, nil
}

// AttemptTransition authorizes actor, loads the appointment and applies the
// requested status change. A refusal at any stage is returned as a Denial
// and leaves storage untouched.
func (s *Service) AttemptTransition(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.TransitionAppointmentRequest) (*model.Appointment, error) {
	if err := s.authz.Check(actor, transitionPermission(actor), nil); err != nil {
		return nil, s.denied(ctx, actor, "transition_appointment", model.AuditActionTransition, id, err)
	}
	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.AuthorizeTransition(actor, apt); err != nil {
		return nil, s.denied(ctx, actor, "transition_appointment", model.AuditActionTransition, id, err)
	}

	if req.Status == model.AppointmentStatusRescheduled {
		orig, _, err := s.reschedule(ctx, actor, apt, req.NewScheduledAt, "")
		return orig, err
	}

	next, err := Transition(*apt, TransitionRequest{
		Status: req.Status,
		Actor:  actor,
		At:     s.now().UTC(),
	})
	if err != nil {
		return nil, s.denied(ctx, actor, "transition_appointment", model.AuditActionTransition, id, err)
	}

	if err := s.repo.UpdateStatus(ctx, &next, apt.Status); err != nil {
		return nil, repository.AppError("appointment", err)
	}

	s.audit(ctx, actor, model.AuditActionTransition, id, &audit.LogOptions{
		Changes: map[string]interface{}{"from": apt.Status, "to": next.Status},
	})
	s.metrics.ObserveDecision("transition_appointment", model.AuditOutcomeSuccess, "")
	s.metrics.ObserveTransition(model.AuditEntityAppointment, string(apt.Status), string(next.Status))
	return &next, nil
}

// AuthorizeTransition is the permission gate in front of Transition. Patients
// act through CANCEL_OWN_APPOINTMENT_PATIENT on their own appointments; staff
// through UPDATE_APPOINTMENT_STATUS.
func (s *Service) AuthorizeTransition(actor model.Actor, apt *model.Appointment) error {
	perm := transitionPermission(actor)
	if perm == rbac.CancelOwnAppointmentPatient {
		return s.authz.Check(actor, perm, rbac.Owns(actor, apt.PatientID))
	}
	return s.authz.Check(actor, perm, nil)
}

func transitionPermission(actor model.Actor) rbac.Permission {
	if actor.Role == model.RolePatient {
		return rbac.CancelOwnAppointmentPatient
	}
	return rbac.UpdateAppointmentStatus
}

// RescheduleAppointment moves the original to RESCHEDULED and books a new
// SCHEDULED appointment linked back to it.
func (s *Service) RescheduleAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.Appointment, *model.Appointment, error) {
	if err := s.authz.Check(actor, rbac.UpdateAppointmentStatus, nil); err != nil {
		return nil, nil, s.denied(ctx, actor, "reschedule_appointment", model.AuditActionReschedule, id, err)
	}
	apt, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	at := req.NewScheduledAt
	return s.reschedule(ctx, actor, apt, &at, req.Notes)
}

func (s *Service) reschedule(ctx context.Context, actor model.Actor, apt *model.Appointment, newAt *time.Time, notes string) (*model.Appointment, *model.Appointment, error) {
	now := s.now().UTC()
	next, err := Transition(*apt, TransitionRequest{
		Status:         model.AppointmentStatusRescheduled,
		Actor:          actor,
		NewScheduledAt: newAt,
		At:             now,
	})
	if err != nil {
		return nil, nil, s.denied(ctx, actor, "reschedule_appointment", model.AuditActionReschedule, apt.ID, err)
	}

	if notes == "" {
		notes = apt.Notes
	}
	originalID := apt.ID
	successor := &model.Appointment{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PatientID:             apt.PatientID,
		DoctorID:              apt.DoctorID,
		ScheduledByID:         actor.ID,
		Type:                  apt.Type,
		ScheduledAt:           newAt.UTC(),
		DurationMinutes:       apt.DurationMinutes,
		Status:                model.AppointmentStatusScheduled,
		Reason:                apt.Reason,
		Notes:                 notes,
		OriginalAppointmentID: &originalID,
	}

	if err := s.repo.Reschedule(ctx, &next, apt.Status, successor); err != nil {
		return nil, nil, repository.AppError("appointment", err)
	}

	s.audit(ctx, actor, model.AuditActionReschedule, apt.ID, &audit.LogOptions{
		Changes: map[string]interface{}{
			"from":             apt.Status,
			"to":               next.Status,
			"successor_id":     successor.ID,
			"new_scheduled_at": successor.ScheduledAt,
		},
	})
	s.metrics.ObserveDecision("reschedule_appointment", model.AuditOutcomeSuccess, "")
	s.metrics.ObserveTransition(model.AuditEntityAppointment, string(apt.Status), string(next.Status))
	return &next, successor, nil
}

// HardDeleteAppointment physically removes an appointment regardless of its
// status. Admin only.
func (s *Service) HardDeleteAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := s.authz.Check(actor, rbac.HardDeleteAppointment, nil); err != nil {
		return s.denied(ctx, actor, "hard_delete_appointment", model.AuditActionHardDelete, id, err)
	}
	apt, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return repository.AppError("appointment", err)
	}

	s.audit(ctx, actor, model.AuditActionHardDelete, id, &audit.LogOptions{
		Changes: apt,
	})
	s.metrics.ObserveDecision("hard_delete_appointment", model.AuditOutcomeSuccess, "")
	log.Info().
		Str("appointment_id", id.String()).
		Str("actor_id", actor.ID.String()).
		Str("status", string(apt.Status)).
		Msg("appointment hard-deleted")
	return nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.AppError("appointment", err)
	}
	return apt, nil
}

// denied records a refusal and returns err unchanged. Non-denial errors pass
// straight through.
func (s *Service) denied(ctx context.Context, actor model.Actor, operation, action string, id uuid.UUID, err error) error {
	d, ok := apperrors.AsDenial(err)
	if !ok {
		return err
	}
	log.Debug().
		Str("operation", operation).
		Str("actor_id", actor.ID.String()).
		Str("role", string(actor.Role)).
		Str("reason", string(d.Reason)).
		Msg("operation denied")
	s.metrics.ObserveDecision(operation, model.AuditOutcomeDenied, string(d.Reason))
	if s.auditor != nil {
		if aerr := s.auditor.LogDenial(ctx, actor, action, model.AuditEntityAppointment, id, err); aerr != nil {
			log.Warn().Err(aerr).Str("operation", operation).Msg("failed to audit denial")
		}
	}
	return err
}

func (s *Service) audit(ctx context.Context, actor model.Actor, action string, id uuid.UUID, opts *audit.LogOptions) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Log(ctx, actor, action, model.AuditEntityAppointment, id, opts); err != nil {
		log.Warn().Err(err).
			Str("action", action).
			Str("appointment_id", id.String()).
			Msg("failed to audit appointment")
	}
}
