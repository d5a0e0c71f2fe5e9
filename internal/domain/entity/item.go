package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem representa un ítem de inventario de una empresa.
// Quantity (on-hand) solo cambia por cinco caminos controlados: edición directa,
// completar/anular recepción, completar trabajo, y replay de undo. El borrado es
// lógico (tombstone con DeletedAt/DeletedBy) y reversible vía restore.
type InventoryItem struct {
	ID             string
	CompanyID      string
	SKU            string
	Name           string
	NormalizedName string // nombre normalizado (NFC + case folding) para dedupe por empresa
	Description    string
	Quantity       decimal.Decimal // on-hand; nunca negativa
	UnitMeasure    string
	DeletedAt      *time.Time
	DeletedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsDeleted informa si el ítem está tombstoneado.
func (i *InventoryItem) IsDeleted() bool {
	return i.DeletedAt != nil
}
