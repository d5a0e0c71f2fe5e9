package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/domain"
	"github.com/jhoicas/Procura-api/internal/domain/entity"
	"github.com/jhoicas/Procura-api/internal/domain/repository"
)

var _ repository.ItemRepository = (*ItemRepo)(nil)

// ItemRepo implementación de ItemRepository sobre PostgreSQL (usable con pool o tx).
type ItemRepo struct {
	q Querier
}

// NewItemRepository construye el adaptador de ítems. Pasar pool o tx (Querier).
func NewItemRepository(q Querier) *ItemRepo {
	return &ItemRepo{q: q}
}

const itemColumns = `
	id, company_id, sku, name, normalized_name, description,
	quantity, unit_measure, deleted_at, deleted_by, created_at, updated_at`

func scanItem(row pgx.Row) (*entity.InventoryItem, error) {
	var it entity.InventoryItem
	err := row.Scan(
		&it.ID, &it.CompanyID, &it.SKU, &it.Name, &it.NormalizedName, &it.Description,
		&it.Quantity, &it.UnitMeasure, &it.DeletedAt, &it.DeletedBy, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Create inserta el ítem. Nombre normalizado duplicado (por empresa, entre
// vivos) devuelve domain.ErrDuplicate.
func (r *ItemRepo) Create(item *entity.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (
			id, company_id, sku, name, normalized_name, description,
			quantity, unit_measure, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(context.Background(), query,
		item.ID, item.CompanyID, item.SKU, item.Name, item.NormalizedName,
		item.Description, item.Quantity, item.UnitMeasure, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// GetByID obtiene un ítem por ID (incluye tombstones). Devuelve nil si no existe.
func (r *ItemRepo) GetByID(id string) (*entity.InventoryItem, error) {
	query := `SELECT` + itemColumns + `
		FROM inventory_items WHERE id = $1`
	it, err := scanItem(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// GetByNormalizedName busca por nombre normalizado dentro de una empresa;
// ignora tombstones. Devuelve nil si no hay coincidencia.
func (r *ItemRepo) GetByNormalizedName(companyID, normalizedName string) (*entity.InventoryItem, error) {
	query := `SELECT` + itemColumns + `
		FROM inventory_items
		WHERE company_id = $1 AND normalized_name = $2 AND deleted_at IS NULL`
	it, err := scanItem(r.q.QueryRow(context.Background(), query, companyID, normalizedName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item by name: %w", err)
	}
	return it, nil
}

// ListByCompany lista los ítems de una empresa con paginación.
func (r *ItemRepo) ListByCompany(companyID string, includeDeleted bool, limit, offset int) ([]*entity.InventoryItem, error) {
	query := `SELECT` + itemColumns + `
		FROM inventory_items
		WHERE company_id = $1 AND ($2 OR deleted_at IS NULL)
		ORDER BY name
		LIMIT $3 OFFSET $4`
	rows, err := r.q.Query(context.Background(), query, companyID, includeDeleted, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*entity.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Update persiste todos los campos mutables del ítem.
func (r *ItemRepo) Update(item *entity.InventoryItem) error {
	query := `
		UPDATE inventory_items SET
			sku = $2, name = $3, normalized_name = $4, description = $5,
			quantity = $6, unit_measure = $7, deleted_at = $8, deleted_by = $9,
			updated_at = $10
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query,
		item.ID, item.SKU, item.Name, item.NormalizedName, item.Description,
		item.Quantity, item.UnitMeasure, item.DeletedAt, item.DeletedBy, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// GetForUpdate obtiene el ítem bloqueando la fila (SELECT FOR UPDATE).
func (r *ItemRepo) GetForUpdate(id string) (*entity.InventoryItem, error) {
	query := `SELECT` + itemColumns + `
		FROM inventory_items WHERE id = $1
		FOR UPDATE`
	it, err := scanItem(r.q.QueryRow(context.Background(), query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get item for update: %w", err)
	}
	return it, nil
}

// GetManyForUpdate bloquea varias filas ordenadas por id (orden de lock estable).
// Ítems inexistentes simplemente no aparecen en el resultado.
func (r *ItemRepo) GetManyForUpdate(ids []string) ([]*entity.InventoryItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT` + itemColumns + `
		FROM inventory_items WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`
	rows, err := r.q.Query(context.Background(), query, ids)
	if err != nil {
		return nil, fmt.Errorf("get items for update: %w", err)
	}
	defer rows.Close()

	var items []*entity.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateQuantity asigna el on-hand del ítem (la fila ya debe estar bloqueada).
func (r *ItemRepo) UpdateQuantity(id string, qty decimal.Decimal, now time.Time) error {
	query := `UPDATE inventory_items SET quantity = $2, updated_at = $3 WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query, id, qty, now)
	if err != nil {
		return fmt.Errorf("update quantity: %w", err)
	}
	return nil
}

// SoftDelete tombstonea las filas vivas indicadas; devuelve cuántas marcó.
func (r *ItemRepo) SoftDelete(ids []string, deletedBy string, at time.Time) (int, error) {
	query := `
		UPDATE inventory_items
		SET deleted_at = $2, deleted_by = $3, updated_at = $2
		WHERE id = ANY($1) AND deleted_at IS NULL`
	tag, err := r.q.Exec(context.Background(), query, ids, at, deletedBy)
	if err != nil {
		return 0, fmt.Errorf("soft delete items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Restore limpia el tombstone del ítem.
func (r *ItemRepo) Restore(id string, at time.Time) error {
	query := `
		UPDATE inventory_items
		SET deleted_at = NULL, deleted_by = '', updated_at = $2
		WHERE id = $1`
	_, err := r.q.Exec(context.Background(), query, id, at)
	if err != nil {
		return fmt.Errorf("restore item: %w", err)
	}
	return nil
}

// PurgeDeleted elimina físicamente los tombstones de una empresa; devuelve la cantidad purgada.
func (r *ItemRepo) PurgeDeleted(companyID string) (int, error) {
	query := `DELETE FROM inventory_items WHERE company_id = $1 AND deleted_at IS NOT NULL`
	tag, err := r.q.Exec(context.Background(), query, companyID)
	if err != nil {
		return 0, fmt.Errorf("purge deleted items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
