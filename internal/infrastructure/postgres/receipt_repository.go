package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.ReceiptRepository = (*ReceiptRepo)(nil)

// ReceiptRepo implementación de ReceiptRepository sobre PostgreSQL.
type ReceiptRepo struct {
	q Querier
}

// NewReceiptRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReceiptRepository(q Querier) *ReceiptRepo {
	return &ReceiptRepo{q: q}
}

const receiptColumns = `
	id, company_id, purchase_order_id, status, notes,
	created_by, submitted_by, submitted_at, received_by, received_at,
	voided_by, voided_at, void_reason, created_at, updated_at`

func scanReceipt(row pgx.Row) (*entity.Receipt, error) {
	var rc entity.Receipt
	err := row.Scan(
		&rc.ID, &rc.CompanyID, &rc.PurchaseOrderID, &rc.Status, &rc.Notes,
		&rc.CreatedBy, &rc.SubmittedBy, &rc.SubmittedAt, &rc.ReceivedBy, &rc.ReceivedAt,
		&rc.VoidedBy, &rc.VoidedAt, &rc.VoidReason, &rc.CreatedAt, &rc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// Create inserta la recepción.
func (r *ReceiptRepo) Create(rc *entity.Receipt) error {
	query := `
		INSERT INTO receipts (
			id, company_id, purchase_order_id, status, notes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(context.Background(), query,
		rc.ID, rc.CompanyID, rc.PurchaseOrderID, rc.Status, rc.Notes, rc.CreatedBy, rc.CreatedAt, rc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create receipt: %w", err)
	}
	return nil
}

// GetByID obtiene una recepción por ID. Devuelve nil si no existe.
func (r *ReceiptRepo) GetByID(id string) (*entity.Receipt, error) {
	query := `SELECT` + receiptColumns + `
		FROM receipts WHERE id = $1`
	rc, err := scanReceipt(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	return rc, nil
}

// GetForUpdate obtiene la recepción bloqueando la fila (SELECT FOR UPDATE).
// Las transiciones siempre bloquean esta fila antes que los ítems.
func (r *ReceiptRepo) GetForUpdate(id string) (*entity.Receipt, error) {
	query := `SELECT` + receiptColumns + `
		FROM receipts WHERE id = $1
		FOR UPDATE`
	rc, err := scanReceipt(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get receipt for update: %w", err)
	}
	return rc, nil
}

// Update persiste la recepción completa.
func (r *ReceiptRepo) Update(rc *entity.Receipt) error {
	query := `
		UPDATE receipts SET
			status = $2, notes = $3,
			submitted_by = $4, submitted_at = $5,
			received_by = $6, received_at = $7,
			voided_by = $8, voided_at = $9, void_reason = $10,
			updated_at = $11
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		rc.ID, rc.Status, rc.Notes,
		rc.SubmittedBy, rc.SubmittedAt,
		rc.ReceivedBy, rc.ReceivedAt,
		rc.VoidedBy, rc.VoidedAt, rc.VoidReason,
		rc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update receipt: %w", err)
	}
	return nil
}

// ListByCompany lista las recepciones de una empresa, más recientes primero.
func (r *ReceiptRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.Receipt, error) {
	query := `SELECT` + receiptColumns + `
		FROM receipts
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(context.Background(), query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*entity.Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, rc)
	}
	return receipts, rows.Err()
}

const receiptLineColumns = `
	id, receipt_id, item_id, po_line_id,
	expected_qty, received_qty, rejected_qty, reject_reason,
	created_at, updated_at`

func scanReceiptLine(row pgx.Row) (*entity.ReceiptLine, error) {
	var l entity.ReceiptLine
	err := row.Scan(
		&l.ID, &l.ReceiptID, &l.ItemID, &l.POLineID,
		&l.ExpectedQty, &l.ReceivedQty, &l.RejectedQty, &l.RejectReason,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Lines lista las líneas de una recepción.
func (r *ReceiptRepo) Lines(receiptID string) ([]*entity.ReceiptLine, error) {
	query := `SELECT` + receiptLineColumns + `
		FROM receipt_lines
		WHERE receipt_id = $1
		ORDER BY created_at, id`
	rows, err := r.q.Query(context.Background(), query, receiptID)
	if err != nil {
		return nil, fmt.Errorf("list receipt lines: %w", err)
	}
	defer rows.Close()

	var lines []*entity.ReceiptLine
	for rows.Next() {
		l, err := scanReceiptLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetLine obtiene una línea por ID. Devuelve nil si no existe.
func (r *ReceiptRepo) GetLine(lineID string) (*entity.ReceiptLine, error) {
	query := `SELECT` + receiptLineColumns + `
		FROM receipt_lines WHERE id = $1`
	l, err := scanReceiptLine(r.q.QueryRow(context.Background(), query, lineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get receipt line: %w", err)
	}
	return l, nil
}

// CreateLine inserta una línea de recepción.
func (r *ReceiptRepo) CreateLine(l *entity.ReceiptLine) error {
	query := `
		INSERT INTO receipt_lines (
			id, receipt_id, item_id, po_line_id,
			expected_qty, received_qty, rejected_qty, reject_reason,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(context.Background(), query,
		l.ID, l.ReceiptID, l.ItemID, l.POLineID,
		l.ExpectedQty, l.ReceivedQty, l.RejectedQty, l.RejectReason,
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create receipt line: %w", err)
	}
	return nil
}

// UpdateLine persiste una línea de recepción.
func (r *ReceiptRepo) UpdateLine(l *entity.ReceiptLine) error {
	query := `
		UPDATE receipt_lines SET
			item_id = $2, po_line_id = $3,
			expected_qty = $4, received_qty = $5, rejected_qty = $6, reject_reason = $7,
			updated_at = $8
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		l.ID, l.ItemID, l.POLineID,
		l.ExpectedQty, l.ReceivedQty, l.RejectedQty, l.RejectReason,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update receipt line: %w", err)
	}
	return nil
}

// DeleteLine borra una línea de recepción (solo se usa en draft).
func (r *ReceiptRepo) DeleteLine(lineID string) error {
	query := `DELETE FROM receipt_lines WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query, lineID)
	if err != nil {
		return fmt.Errorf("delete receipt line: %w", err)
	}
	return nil
}
