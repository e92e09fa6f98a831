package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/repository"
	"github.com/jwalitptl/hms-api/internal/service/audit"
	"github.com/jwalitptl/hms-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
	"github.com/jwalitptl/hms-api/pkg/idempotency"
	"github.com/jwalitptl/hms-api/pkg/metrics"
)

// Auditor records successful and refused operations.
type Auditor interface {
	Log(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, opts *audit.LogOptions) error
	LogDenial(ctx context.Context, actor model.Actor, action, entityType string, entityID uuid.UUID, denial error) error
}

// PaymentOutcome is returned by AttemptRecordPayment and is what an
// idempotency key replays.
type PaymentOutcome struct {
	Invoice  *model.Invoice `json:"invoice"`
	Payment  *model.Payment `json:"payment"`
	Replayed bool           `json:"replayed"`
}

type Service struct {
	repo    repository.InvoiceRepository
	authz   *rbac.Service
	auditor Auditor
	idem    idempotency.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIdempotencyStore enables Idempotency-Key handling for payments.
func WithIdempotencyStore(store idempotency.Store) Option {
	return func(s *Service) {
		s.idem = store
	}
}

func NewService(repo repository.InvoiceRepository, authz *rbac.Service, auditor Auditor, m *metrics.Metrics, opts ...Option) *Service {
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

func (s *Service) CreateInvoice(ctx context.Context, actor model.Actor, req *model.CreateInvoiceRequest) (*model.Invoice, error) {
	if err := s.authz.Check(actor, rbac.CreateInvoice, nil); err != nil {
		return nil, s.denied(ctx, actor, "create_invoice", model.AuditActionCreate, uuid.Nil, err)
	}
	if dateOf(req.DueDate).Before(dateOf(req.IssueDate)) {
		return nil, apperrors.BadRequest("due_date cannot be before issue_date", nil)
	}

	now := s.now().UTC()
	seq, err := s.repo.NextInvoiceSequence(ctx, req.IssueDate)
	if err != nil {
		return nil, repository.AppError("invoice", err)
	}

	inv := model.Invoice{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		InvoiceNumber: InvoiceNumber(req.IssueDate, seq),
		PatientID:     req.PatientID,
		IssueDate:     dateOf(req.IssueDate),
		DueDate:       dateOf(req.DueDate),
		Status:        model.InvoiceStatusDraft,
		Notes:         req.Notes,
		CreatedByID:   actor.ID,
	}
	for _, item := range req.Items {
		inv, err = AddLineItem(inv, newLineItem(uuid.New(), item), now)
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, &inv); err != nil {
		return nil, repository.AppError("invoice", err)
	}

	s.audit(ctx, actor, model.AuditActionCreate, inv.ID, &audit.LogOptions{
		Changes: map[string]interface{}{
			"invoice_number": inv.InvoiceNumber,
			"total_amount":   inv.TotalAmount,
		},
	})
	s.metrics.ObserveDecision("create_invoice", model.AuditOutcomeSuccess, "")
	out := WithDerived(inv, now)
	return &out, nil
}

// InvoiceNumber formats the human-facing number INV-YYYYMMDD-NNNN.
func InvoiceNumber(issue time.Time, seq int) string {
	return fmt.Sprintf("INV-%s-%04d", issue.UTC().Format("20060102"), seq)
}

// GetInvoice returns an invoice with its derived fields. Staff may read any
// invoice, patients only their own.
func (s *Service) GetInvoice(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Invoice, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CheckAny(actor,
		rbac.Rule{Permission: rbac.ViewAllInvoices},
		rbac.Rule{Permission: rbac.ViewOwnInvoices, Ownership: rbac.Owns(actor, inv.PatientID)},
	); err != nil {
		return nil, s.denied(ctx, actor, "get_invoice", model.AuditActionRead, id, err)
	}
	out := WithDerived(*inv, s.now())
	return &out, nil
}

func (s *Service) AddLineItem(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.LineItemRequest) (*model.Invoice, error) {
	return s.editItems(ctx, actor, id, func(inv model.Invoice, at time.Time) (model.Invoice, error) {
		return AddLineItem(inv, newLineItem(uuid.New(), *req), at)
	})
}

func (s *Service) EditLineItem(ctx context.Context, actor model.Actor, id, itemID uuid.UUID, req *model.LineItemRequest) (*model.Invoice, error) {
	return s.editItems(ctx, actor, id, func(inv model.Invoice, at time.Time) (model.Invoice, error) {
		return EditLineItem(inv, newLineItem(itemID, *req), at)
	})
}

func (s *Service) RemoveLineItem(ctx context.Context, actor model.Actor, id, itemID uuid.UUID) (*model.Invoice, error) {
	return s.editItems(ctx, actor, id, func(inv model.Invoice, at time.Time) (model.Invoice, error) {
		return RemoveLineItem(inv, itemID, at)
	})
}

func (s *Service) editItems(ctx context.Context, actor model.Actor, id uuid.UUID, apply func(model.Invoice, time.Time) (model.Invoice, error)) (*model.Invoice, error) {
	if err := s.authz.Check(actor, rbac.ManageInvoices, nil); err != nil {
		return nil, s.denied(ctx, actor, "edit_invoice_items", model.AuditActionEditItems, id, err)
	}
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next, err := apply(*inv, now)
	if err != nil {
		return nil, s.denied(ctx, actor, "edit_invoice_items", model.AuditActionEditItems, id, err)
	}
	if err := s.repo.Save(ctx, &next, inv.Status); err != nil {
		return nil, repository.AppError("invoice", err)
	}

	s.audit(ctx, actor, model.AuditActionEditItems, id, &audit.LogOptions{
		Changes: map[string]interface{}{
			"items":        len(next.Items),
			"total_before": inv.TotalAmount,
			"total_after":  next.TotalAmount,
		},
	})
	s.metrics.ObserveDecision("edit_invoice_items", model.AuditOutcomeSuccess, "")
	out := WithDerived(next, now)
	return &out, nil
}

// SendInvoice issues a DRAFT invoice to the patient.
func (s *Service) SendInvoice(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Invoice, error) {
	if err := s.authz.Check(actor, rbac.ManageInvoices, nil); err != nil {
		return nil, s.denied(ctx, actor, "send_invoice", model.AuditActionSend, id, err)
	}
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next, err := Send(*inv, now)
	if err != nil {
		return nil, s.denied(ctx, actor, "send_invoice", model.AuditActionSend, id, err)
	}
	if err := s.repo.Save(ctx, &next, inv.Status); err != nil {
		return nil, repository.AppError("invoice", err)
	}

	s.audit(ctx, actor, model.AuditActionSend, id, &audit.LogOptions{
		Changes: map[string]interface{}{"from": inv.Status, "to": next.Status},
	})
	s.metrics.ObserveDecision("send_invoice", model.AuditOutcomeSuccess, "")
	s.metrics.ObserveTransition(model.AuditEntityInvoice, string(inv.Status), string(next.Status))
	out := WithDerived(next, now)
	return &out, nil
}

// AttemptRecordPayment authorizes actor and applies a payment. Retries with
// the same Idempotency-Key or the same transaction reference are answered
// with the original outcome and change nothing.
func (s *Service) AttemptRecordPayment(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RecordPaymentRequest) (*PaymentOutcome, error) {
	if err := s.authz.Check(actor, rbac.RecordPayment, nil); err != nil {
		return nil, s.denied(ctx, actor, "record_payment", model.AuditActionPayment, id, err)
	}

	var key, fingerprint string
	if s.idem != nil && req.IdempotencyKey != "" {
		key = idempotency.Key("record_payment", id.String(), req.IdempotencyKey)
		fingerprint = paymentFingerprint(req)
		payload, found, err := idempotency.Lookup(ctx, s.idem, key, fingerprint)
		if errors.Is(err, idempotency.ErrKeyReused) {
			return nil, apperrors.Conflict("Idempotency-Key was already used for a different payment", err)
		}
		if err != nil {
			log.Warn().Err(err).Str("invoice_id", id.String()).Msg("idempotency lookup failed; processing request")
		}
		if found {
			var prev PaymentOutcome
			if err := json.Unmarshal(payload, &prev); err == nil {
				prev.Replayed = true
				s.metrics.ObserveReplay("record_payment")
				return &prev, nil
			}
		}
	}

	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	input := PaymentInput{
		ID:             uuid.New(),
		Amount:         req.Amount,
		Method:         req.Method,
		TransactionRef: req.TransactionRef,
		RecordedBy:     actor.ID,
		Notes:          req.Notes,
	}
	if req.PaidAt != nil {
		input.PaidAt = req.PaidAt.UTC()
	}

	res, err := RecordPayment(*inv, input, now)
	if err != nil {
		return nil, s.denied(ctx, actor, "record_payment", model.AuditActionPayment, id, err)
	}

	if res.Replayed {
		s.metrics.ObserveReplay("record_payment")
		out := WithDerived(res.Invoice, now)
		payment := res.Payment
		return &PaymentOutcome{Invoice: &out, Payment: &payment, Replayed: true}, nil
	}

	if err := s.repo.AppendPayment(ctx, &res.Invoice, &res.Payment, inv.Status, inv.PaidAmount); err != nil {
		return nil, repository.AppError("invoice", err)
	}

	s.audit(ctx, actor, model.AuditActionPayment, id, &audit.LogOptions{
		Changes: map[string]interface{}{
			"payment_id":  res.Payment.ID,
			"amount":      res.Payment.Amount,
			"method":      res.Payment.Method,
			"from":        inv.Status,
			"to":          res.Invoice.Status,
			"paid_amount": res.Invoice.PaidAmount,
		},
	})
	s.metrics.ObserveDecision("record_payment", model.AuditOutcomeSuccess, "")
	s.metrics.ObservePayment(string(res.Payment.Method), res.Payment.Amount.InexactFloat64())
	if inv.Status != res.Invoice.Status {
		s.metrics.ObserveTransition(model.AuditEntityInvoice, string(inv.Status), string(res.Invoice.Status))
	}

	out := WithDerived(res.Invoice, now)
	payment := res.Payment
	outcome := &PaymentOutcome{Invoice: &out, Payment: &payment}

	if key != "" {
		if err := idempotency.Save(ctx, s.idem, key, fingerprint, outcome); err != nil {
			log.Warn().Err(err).Str("invoice_id", id.String()).Msg("failed to store idempotency record")
		}
	}
	return outcome, nil
}

// AttemptVoidInvoice authorizes actor and voids the invoice.
func (s *Service) AttemptVoidInvoice(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Invoice, error) {
	if err := s.authz.Check(actor, rbac.VoidInvoice, nil); err != nil {
		return nil, s.denied(ctx, actor, "void_invoice", model.AuditActionVoid, id, err)
	}
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next, err := Void(*inv, now)
	if err != nil {
		return nil, s.denied(ctx, actor, "void_invoice", model.AuditActionVoid, id, err)
	}
	if err := s.repo.Save(ctx, &next, inv.Status); err != nil {
		return nil, repository.AppError("invoice", err)
	}

	s.audit(ctx, actor, model.AuditActionVoid, id, &audit.LogOptions{
		Changes: map[string]interface{}{"from": inv.Status, "to": next.Status},
	})
	s.metrics.ObserveDecision("void_invoice", model.AuditOutcomeSuccess, "")
	s.metrics.ObserveTransition(model.AuditEntityInvoice, string(inv.Status), string(next.Status))
	out := WithDerived(next, now)
	return &out, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repository.AppError("invoice", err)
	}
	return inv, nil
}

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
		if aerr := s.auditor.LogDenial(ctx, actor, action, model.AuditEntityInvoice, id, err); aerr != nil {
			log.Warn().Err(aerr).Str("operation", operation).Msg("failed to audit denial")
		}
	}
	return err
}

func (s *Service) audit(ctx context.Context, actor model.Actor, action string, id uuid.UUID, opts *audit.LogOptions) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Log(ctx, actor, action, model.AuditEntityInvoice, id, opts); err != nil {
		log.Warn().Err(err).
			Str("action", action).
			Str("invoice_id", id.String()).
			Msg("failed to audit invoice")
	}
}

func newLineItem(id uuid.UUID, req model.LineItemRequest) model.LineItem {
	return model.LineItem{
		ID:            id,
		Description:   req.Description,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		AppointmentID: req.AppointmentID,
	}
}

func paymentFingerprint(req *model.RecordPaymentRequest) string {
	paidAt := ""
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC().Format(time.RFC3339)
	}
	return idempotency.Fingerprint(req.Amount.StringFixed(2), string(req.Method), req.TransactionRef, paidAt)
}
