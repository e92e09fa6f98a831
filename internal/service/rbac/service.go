package rbac

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jwalitptl/hms-api/internal/model"
	apperrors "github.com/jwalitptl/hms-api/pkg/errors"
)

// OwnershipCheck is an optional predicate for permissions that require the
// actor to own the entity as well as hold the role.
type OwnershipCheck func() bool

// Owns returns an OwnershipCheck comparing an entity owner with the actor.
func Owns(actor model.Actor, ownerID uuid.UUID) OwnershipCheck {
	return func() bool {
		return actor.ID == ownerID
	}
}

type Service struct {
	table atomic.Pointer[Table]
}

func NewService(table *Table) *Service {
	s := &Service{}
	s.table.Store(table)
	return s
}

// Replace swaps in a new permission table. In-flight checks finish against
// the table they started with.
func (s *Service) Replace(table *Table) {
	s.table.Store(table)
}

// CanPerform answers the role-only capability question.
func (s *Service) CanPerform(role model.Role, perm Permission) bool {
	return s.table.Load().HasPermission(role, perm)
}

// Authorize is the boolean form of Check.
func (s *Service) Authorize(role model.Role, perm Permission, ownership OwnershipCheck) bool {
	return s.Check(model.Actor{Role: role}, perm, ownership) == nil
}

// Check gates an operation: a missing permission yields FORBIDDEN, a failed
// ownership predicate yields NOT_OWNER.
func (s *Service) Check(actor model.Actor, perm Permission, ownership OwnershipCheck) error {
	if !s.table.Load().HasPermission(actor.Role, perm) {
		return apperrors.Deny(apperrors.DenialForbidden)
	}
	if ownership != nil && !ownership() {
		return apperrors.Deny(apperrors.DenialNotOwner)
	}
	return nil
}

// CheckAny passes when any of the (permission, ownership) pairs passes. The
// most specific denial wins: NOT_OWNER beats FORBIDDEN.
func (s *Service) CheckAny(actor model.Actor, rules ...Rule) error {
	denied := apperrors.Deny(apperrors.DenialForbidden)
	for _, r := range rules {
		err := s.Check(actor, r.Permission, r.Ownership)
		if err == nil {
			return nil
		}
		if apperrors.IsDenied(err, apperrors.DenialNotOwner) {
			denied = apperrors.Deny(apperrors.DenialNotOwner)
		}
	}
	return denied
}

// Rule pairs a permission with an optional ownership predicate.
type Rule struct {
	Permission Permission
	Ownership  OwnershipCheck
}

// Permissions lists what role may do.
func (s *Service) Permissions(role model.Role) []Permission {
	return s.table.Load().Permissions(role)
}

func (s *Service) Table() *Table {
	return s.table.Load()
}
