package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the fixed set of actor roles. A role is bound to an actor for the
// whole session.
type Role string

const (
	RolePatient      Role = "PATIENT"
	RoleDoctor       Role = "DOCTOR"
	RoleNurse        Role = "NURSE"
	RoleReceptionist Role = "RECEPTIONIST"
	RoleAdmin        Role = "ADMIN"
)

// Roles returns every known role.
func Roles() []Role {
	return []Role{RolePatient, RoleDoctor, RoleNurse, RoleReceptionist, RoleAdmin}
}

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleNurse, RoleReceptionist, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to hospital personnel.
func (r Role) IsStaff() bool {
	return r.Valid() && r != RolePatient
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}
