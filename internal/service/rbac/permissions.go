package rbac

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hms-api/internal/model"
)

// Permission is a named capability granted to a set of roles.
type Permission string

const (
	ViewPatientList      Permission = "VIEW_PATIENT_LIST"
	ManagePatientProfile Permission = "MANAGE_PATIENT_PROFILE"
	CreateMedicalRecord  Permission = "CREATE_MEDICAL_RECORD"
	ManageMedicalRecord  Permission = "MANAGE_MEDICAL_RECORD"

	ScheduleAppointmentForSelf   Permission = "SCHEDULE_APPOINTMENT_FOR_SELF"
	ScheduleAppointmentForOthers Permission = "SCHEDULE_APPOINTMENT_FOR_OTHERS"
	ManageAllAppointments        Permission = "MANAGE_ALL_APPOINTMENTS"
	ManageOwnAppointmentsDoctor  Permission = "MANAGE_OWN_APPOINTMENTS_DOCTOR"
	CancelOwnAppointmentPatient  Permission = "CANCEL_OWN_APPOINTMENT_PATIENT"
	UpdateAppointmentStatus      Permission = "UPDATE_APPOINTMENT_STATUS"
	ViewAllAppointments          Permission = "VIEW_ALL_APPOINTMENTS"
	ViewOwnAppointments          Permission = "VIEW_OWN_APPOINTMENTS"
	HardDeleteAppointment        Permission = "HARD_DELETE_APPOINTMENT"

	CreatePrescription Permission = "CREATE_PRESCRIPTION"
	ManagePrescription Permission = "MANAGE_PRESCRIPTION"
	RecordTreatment    Permission = "RECORD_TREATMENT"
	ManageTreatment    Permission = "MANAGE_TREATMENT"
	LogObservation     Permission = "LOG_OBSERVATION"
	ManageObservation  Permission = "MANAGE_OBSERVATION"

	ManageInvoices  Permission = "MANAGE_INVOICES"
	CreateInvoice   Permission = "CREATE_INVOICE"
	RecordPayment   Permission = "RECORD_PAYMENT"
	VoidInvoice     Permission = "VOID_INVOICE"
	ViewAllInvoices Permission = "VIEW_ALL_INVOICES"
	ViewOwnInvoices Permission = "VIEW_OWN_INVOICES"

	ManageTelemedicineSessions Permission = "MANAGE_TELEMEDICINE_SESSIONS"
	JoinTelemedicinePatient    Permission = "JOIN_TELEMEDICINE_PATIENT"
	JoinTelemedicineDoctor     Permission = "JOIN_TELEMEDICINE_DOCTOR"

	ManageInquiriesStaff Permission = "MANAGE_INQUIRIES_STAFF"
	SubmitInquiry        Permission = "SUBMIT_INQUIRY"

	ViewAdminDashboard Permission = "VIEW_ADMIN_DASHBOARD"
	ViewReports        Permission = "VIEW_REPORTS"
	ViewAuditLog       Permission = "VIEW_AUDIT_LOG"
	ManageAllUsers     Permission = "MANAGE_ALL_USERS"
)

var (
	staff     = []model.Role{model.RoleAdmin, model.RoleDoctor, model.RoleNurse, model.RoleReceptionist}
	billing   = []model.Role{model.RoleAdmin, model.RoleReceptionist}
	clinical  = []model.Role{model.RoleAdmin, model.RoleDoctor, model.RoleNurse}
	adminOnly = []model.Role{model.RoleAdmin}
)

// DefaultGrants is the hospital's role-capability matrix.
var DefaultGrants = map[Permission][]model.Role{
	ViewPatientList:      staff,
	ManagePatientProfile: billing,
	CreateMedicalRecord:  clinical,
	ManageMedicalRecord:  clinical,

	ScheduleAppointmentForSelf:   {model.RolePatient},
	ScheduleAppointmentForOthers: staff,
	ManageAllAppointments:        billing,
	ManageOwnAppointmentsDoctor:  {model.RoleDoctor},
	CancelOwnAppointmentPatient:  {model.RolePatient},
	UpdateAppointmentStatus:      staff,
	ViewAllAppointments:          staff,
	ViewOwnAppointments:          {model.RolePatient},
	HardDeleteAppointment:        adminOnly,

	CreatePrescription: {model.RoleDoctor},
	ManagePrescription: {model.RoleDoctor, model.RoleAdmin},
	RecordTreatment:    {model.RoleDoctor, model.RoleNurse},
	ManageTreatment:    clinical,
	LogObservation:     {model.RoleDoctor, model.RoleNurse},
	ManageObservation:  clinical,

	ManageInvoices:  billing,
	CreateInvoice:   billing,
	RecordPayment:   billing,
	VoidInvoice:     billing,
	ViewAllInvoices: staff,
	ViewOwnInvoices: {model.RolePatient},

	ManageTelemedicineSessions: {model.RoleAdmin, model.RoleReceptionist, model.RoleDoctor},
	JoinTelemedicinePatient:    {model.RolePatient},
	JoinTelemedicineDoctor:     {model.RoleDoctor},

	ManageInquiriesStaff: {model.RoleAdmin, model.RoleReceptionist, model.RoleNurse},
	SubmitInquiry:        {model.RolePatient, model.RoleAdmin, model.RoleReceptionist, model.RoleNurse},

	ViewAdminDashboard: adminOnly,
	ViewReports:        adminOnly,
	ViewAuditLog:       adminOnly,
	ManageAllUsers:     adminOnly,
}

// Table is an immutable permission → role-set lookup. Changing capabilities
// means building a new Table.
type Table struct {
	grants map[Permission]map[model.Role]struct{}
	logger zerolog.Logger
}

type TableOption func(*Table)

// WithLogger routes undefined-permission diagnostics to logger.
func WithLogger(logger zerolog.Logger) TableOption {
	return func(t *Table) {
		t.logger = logger
	}
}

// NewTable copies grants into a fresh Table. Every permission must map to a
// non-empty set of known roles.
func NewTable(grants map[Permission][]model.Role, opts ...TableOption) (*Table, error) {
	t := &Table{
		grants: make(map[Permission]map[model.Role]struct{}, len(grants)),
		logger: log.Logger,
	}
	for perm, roles := range grants {
		if len(roles) == 0 {
			return nil, fmt.Errorf("permission %s has no roles", perm)
		}
		set := make(map[model.Role]struct{}, len(roles))
		for _, r := range roles {
			if !r.Valid() {
				return nil, fmt.Errorf("permission %s grants unknown role %q", perm, r)
			}
			set[r] = struct{}{}
		}
		t.grants[perm] = set
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// MustNewTable is NewTable that panics on an invalid matrix.
func MustNewTable(grants map[Permission][]model.Role, opts ...TableOption) *Table {
	t, err := NewTable(grants, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultTable builds a Table from DefaultGrants.
func DefaultTable(opts ...TableOption) *Table {
	return MustNewTable(DefaultGrants, opts...)
}

// HasPermission reports whether role holds perm. Undefined permissions are
// denied to everyone and logged.
func (t *Table) HasPermission(role model.Role, perm Permission) bool {
	roles, ok := t.grants[perm]
	if !ok {
		t.logger.Warn().
			Str("permission", string(perm)).
			Str("role", string(role)).
			Msg("permission is not defined; denying")
		return false
	}
	_, ok = roles[role]
	return ok
}

// Defined reports whether perm appears in the table.
func (t *Table) Defined(perm Permission) bool {
	_, ok := t.grants[perm]
	return ok
}

// Roles lists the roles holding perm, sorted.
func (t *Table) Roles(perm Permission) []model.Role {
	set := t.grants[perm]
	out := make([]model.Role, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Permissions lists the permissions held by role, sorted.
func (t *Table) Permissions(role model.Role) []Permission {
	var out []Permission
	for perm, set := range t.grants {
		if _, ok := set[role]; ok {
			out = append(out, perm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
