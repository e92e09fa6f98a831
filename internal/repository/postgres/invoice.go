package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/hms-api/internal/model"
	"github.com/jwalitptl/hms-api/internal/repository"
)

const invoiceColumns = `
	id, invoice_number, patient_id, issue_date, due_date, status,
	total_amount, paid_amount, notes, created_by, created_at, updated_at`

const insertLineItem = `
	INSERT INTO invoice_items (
		id, invoice_id, position, description, quantity, unit_price, appointment_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	start := time.Now()
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			invoice.ID,
			invoice.InvoiceNumber,
			invoice.PatientID,
			invoice.IssueDate,
			invoice.DueDate,
			invoice.Status,
			invoice.TotalAmount,
			invoice.PaidAmount,
			invoice.Notes,
			invoice.CreatedByID,
			invoice.CreatedAt,
			invoice.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create invoice: %w", translate(err))
		}
		return insertItems(ctx, tx, invoice.Items)
	})
	r.observe("invoice_create", start, err)
	return err
}

func (r *invoiceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	start := time.Now()
	invoice, err := r.get(ctx, id)
	r.observe("invoice_get", start, err)
	return invoice, err
}

func (r *invoiceRepository) get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.GetContext(ctx, &invoice, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	invoice.Items = []model.LineItem{}
	if err := r.db.SelectContext(ctx, &invoice.Items, `
		SELECT id, invoice_id, position, description, quantity, unit_price, appointment_id
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position`, id); err != nil {
		return nil, fmt.Errorf("failed to get invoice items: %w", err)
	}

	invoice.Payments = []model.Payment{}
	if err := r.db.SelectContext(ctx, &invoice.Payments, `
		SELECT id, invoice_id, amount, method, paid_at, transaction_ref, recorded_by, notes, created_at
		FROM payments
		WHERE invoice_id = $1
		ORDER BY created_at`, id); err != nil {
		return nil, fmt.Errorf("failed to get invoice payments: %w", err)
	}

	return &invoice, nil
}

// Save writes the header and, for invoices that were still DRAFT, replaces
// the line items.
func (r *invoiceRepository) Save(ctx context.Context, invoice *model.Invoice, from model.InvoiceStatus) error {
	query := `
		UPDATE invoices
		SET status = $1, total_amount = $2, notes = $3, updated_at = $4
		WHERE id = $5 AND status = $6`

	start := time.Now()
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			invoice.Status,
			invoice.TotalAmount,
			invoice.Notes,
			invoice.UpdatedAt,
			invoice.ID,
			from,
		)
		if err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		if err := checkAffected(result); err != nil {
			return err
		}
		if from != model.InvoiceStatusDraft {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoice.ID); err != nil {
			return fmt.Errorf("failed to clear invoice items: %w", err)
		}
		return insertItems(ctx, tx, invoice.Items)
	})
	r.observe("invoice_save", start, err)
	return err
}

func (r *invoiceRepository) AppendPayment(ctx context.Context, invoice *model.Invoice, payment *model.Payment, from model.InvoiceStatus, paidBefore decimal.Decimal) error {
	update := `
		UPDATE invoices
		SET paid_amount = $1, status = $2, updated_at = $3
		WHERE id = $4 AND paid_amount = $5 AND status = $6`
	insert := `
		INSERT INTO payments (
			id, invoice_id, amount, method, paid_at, transaction_ref, recorded_by, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	start := time.Now()
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, update,
			invoice.PaidAmount,
			invoice.Status,
			invoice.UpdatedAt,
			invoice.ID,
			paidBefore,
			from,
		)
		if err != nil {
			return fmt.Errorf("failed to update invoice balance: %w", err)
		}
		if err := checkAffected(result); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, insert,
			payment.ID,
			payment.InvoiceID,
			payment.Amount,
			payment.Method,
			payment.PaidAt,
			payment.TransactionRef,
			payment.RecordedByID,
			payment.Notes,
			payment.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record payment: %w", translate(err))
		}
		return nil
	})
	r.observe("invoice_append_payment", start, err)
	return err
}

// NextInvoiceSequence hands out per-day invoice numbers starting at 1.
func (r *invoiceRepository) NextInvoiceSequence(ctx context.Context, day time.Time) (int, error) {
	query := `
		INSERT INTO invoice_sequences (day, last_value)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`

	start := time.Now()
	var seq int
	err := r.db.GetContext(ctx, &seq, query, day.UTC().Format("2006-01-02"))
	r.observe("invoice_next_sequence", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate invoice number: %w", err)
	}
	return seq, nil
}

func insertItems(ctx context.Context, tx *sqlx.Tx, items []model.LineItem) error {
	for _, item := range items {
		_, err := tx.ExecContext(ctx, insertLineItem,
			item.ID,
			item.InvoiceID,
			item.Position,
			item.Description,
			item.Quantity,
			item.UnitPrice,
			item.AppointmentID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert invoice item: %w", err)
		}
	}
	return nil
}
