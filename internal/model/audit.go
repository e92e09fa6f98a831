package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    uuid.UUID       `json:"actor_id" db:"actor_id"`
	ActorRole  Role            `json:"actor_role" db:"actor_role"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Outcome    string          `json:"outcome" db:"outcome"`
	Reason     string          `json:"reason,omitempty" db:"reason"`
	Changes    json.RawMessage `json:"changes,omitempty" db:"changes"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	UserAgent  string          `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate     = "create"
	AuditActionRead       = "read"
	AuditActionTransition = "transition"
	AuditActionReschedule = "reschedule"
	AuditActionHardDelete = "hard_delete"
	AuditActionEditItems  = "edit_items"
	AuditActionSend       = "send"
	AuditActionPayment    = "record_payment"
	AuditActionVoid       = "void"
	AuditActionLogin      = "login"

	// Entity types
	AuditEntityAppointment = "appointment"
	AuditEntityInvoice     = "invoice"
	AuditEntityUser        = "user"

	// Outcomes
	AuditOutcomeSuccess = "success"
	AuditOutcomeDenied  = "denied"
)

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	ActorID    *uuid.UUID
	EntityType string
	EntityID   *uuid.UUID
	Outcome    string
	Since      time.Time
	Limit      int
}
