package postgres

import (
	"github.com/jwalitptl/hms-api/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

type invoiceRepository struct {
	BaseRepository
}

type auditRepository struct {
	BaseRepository
}

type userRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func NewInvoiceRepository(base BaseRepository) repository.InvoiceRepository {
	return &invoiceRepository{base}
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}
