package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.PurchaseOrderRepository = (*PurchaseOrderRepo)(nil)

// PurchaseOrderRepo implementación de PurchaseOrderRepository sobre PostgreSQL.
type PurchaseOrderRepo struct {
	q Querier
}

// NewPurchaseOrderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPurchaseOrderRepository(q Querier) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{q: q}
}

const poColumns = `
	id, company_id, supplier, status, notes,
	created_by, approved_by, approved_at, created_at, updated_at`

func scanPO(row pgx.Row) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := row.Scan(
		&po.ID, &po.CompanyID, &po.Supplier, &po.Status, &po.Notes,
		&po.CreatedBy, &po.ApprovedBy, &po.ApprovedAt, &po.CreatedAt, &po.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// Create inserta la orden de compra.
func (r *PurchaseOrderRepo) Create(po *entity.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (
			id, company_id, supplier, status, notes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(context.Background(), query,
		po.ID, po.CompanyID, po.Supplier, po.Status, po.Notes, po.CreatedBy, po.CreatedAt, po.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create purchase order: %w", err)
	}
	return nil
}

// GetByID obtiene una orden por ID. Devuelve nil si no existe.
func (r *PurchaseOrderRepo) GetByID(id string) (*entity.PurchaseOrder, error) {
	query := `SELECT` + poColumns + `
		FROM purchase_orders WHERE id = $1`
	po, err := scanPO(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get purchase order: %w", err)
	}
	return po, nil
}

// GetForUpdate obtiene la orden bloqueando la fila (SELECT FOR UPDATE).
func (r *PurchaseOrderRepo) GetForUpdate(id string) (*entity.PurchaseOrder, error) {
	query := `SELECT` + poColumns + `
		FROM purchase_orders WHERE id = $1
		FOR UPDATE`
	po, err := scanPO(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get purchase order for update: %w", err)
	}
	return po, nil
}

// Update persiste la orden completa.
func (r *PurchaseOrderRepo) Update(po *entity.PurchaseOrder) error {
	query := `
		UPDATE purchase_orders SET
			supplier = $2, status = $3, notes = $4,
			approved_by = $5, approved_at = $6, updated_at = $7
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		po.ID, po.Supplier, po.Status, po.Notes, po.ApprovedBy, po.ApprovedAt, po.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update purchase order: %w", err)
	}
	return nil
}

// ListByCompany lista las órdenes de una empresa, más recientes primero.
func (r *PurchaseOrderRepo) ListByCompany(companyID string, limit, offset int) ([]*entity.PurchaseOrder, error) {
	query := `SELECT` + poColumns + `
		FROM purchase_orders
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(context.Background(), query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []*entity.PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// Lines lista las líneas de una orden.
func (r *PurchaseOrderRepo) Lines(poID string) ([]*entity.PurchaseOrderLine, error) {
	query := `
		SELECT id, purchase_order_id, item_id, qty_ordered, created_at
		FROM purchase_order_lines
		WHERE purchase_order_id = $1
		ORDER BY created_at, id`
	rows, err := r.q.Query(context.Background(), query, poID)
	if err != nil {
		return nil, fmt.Errorf("list po lines: %w", err)
	}
	defer rows.Close()

	var lines []*entity.PurchaseOrderLine
	for rows.Next() {
		var l entity.PurchaseOrderLine
		if err := rows.Scan(&l.ID, &l.PurchaseOrderID, &l.ItemID, &l.QtyOrdered, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan po line: %w", err)
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}

// GetLine obtiene una línea por ID. Devuelve nil si no existe.
func (r *PurchaseOrderRepo) GetLine(lineID string) (*entity.PurchaseOrderLine, error) {
	query := `
		SELECT id, purchase_order_id, item_id, qty_ordered, created_at
		FROM purchase_order_lines WHERE id = $1`
	var l entity.PurchaseOrderLine
	err := r.q.QueryRow(context.Background(), query, lineID).Scan(
		&l.ID, &l.PurchaseOrderID, &l.ItemID, &l.QtyOrdered, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get po line: %w", err)
	}
	return &l, nil
}

// CreateLine inserta una línea de orden de compra.
func (r *PurchaseOrderRepo) CreateLine(l *entity.PurchaseOrderLine) error {
	query := `
		INSERT INTO purchase_order_lines (id, purchase_order_id, item_id, qty_ordered, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.Exec(context.Background(), query, l.ID, l.PurchaseOrderID, l.ItemID, l.QtyOrdered, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("create po line: %w", err)
	}
	return nil
}

// IncomingSupply suma qty_ordered por ítem en otras órdenes submitted/approved/partial
// de la empresa (suministro entrante para el cálculo de demanda neta).
func (r *PurchaseOrderRepo) IncomingSupply(companyID string, itemIDs []string, excludePOID string) (map[string]decimal.Decimal, error) {
	query := `
		SELECT l.item_id, COALESCE(SUM(l.qty_ordered), 0)
		FROM purchase_order_lines l
		JOIN purchase_orders po ON po.id = l.purchase_order_id
		WHERE po.company_id = $1
		  AND po.status IN ('submitted', 'approved', 'partial')
		  AND l.item_id = ANY($2)
		  AND po.id <> $3
		GROUP BY l.item_id`
	rows, err := r.q.Query(context.Background(), query, companyID, itemIDs, excludePOID)
	if err != nil {
		return nil, fmt.Errorf("incoming supply: %w", err)
	}
	defer rows.Close()

	supply := make(map[string]decimal.Decimal, len(itemIDs))
	for rows.Next() {
		var itemID string
		var qty decimal.Decimal
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, fmt.Errorf("scan supply: %w", err)
		}
		supply[itemID] = qty
	}
	return supply, rows.Err()
}
