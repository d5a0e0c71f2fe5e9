package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// ItemRepository define el puerto de persistencia de ítems de inventario.
// Los métodos *ForUpdate bloquean filas (SELECT FOR UPDATE) y solo tienen
// sentido dentro de una transacción. GetManyForUpdate ordena por id antes de
// bloquear: orden de lock estable entre los cinco caminos de mutación.
type ItemRepository interface {
	Create(item *entity.InventoryItem) error
	GetByID(id string) (*entity.InventoryItem, error)
	// GetByNormalizedName busca por nombre normalizado dentro de una empresa
	// (dedupe); ignora tombstones.
	GetByNormalizedName(companyID, normalizedName string) (*entity.InventoryItem, error)
	ListByCompany(companyID string, includeDeleted bool, limit, offset int) ([]*entity.InventoryItem, error)
	Update(item *entity.InventoryItem) error

	GetForUpdate(id string) (*entity.InventoryItem, error)
	GetManyForUpdate(ids []string) ([]*entity.InventoryItem, error)
	UpdateQuantity(id string, qty decimal.Decimal, now time.Time) error

	SoftDelete(ids []string, deletedBy string, at time.Time) (int, error)
	Restore(id string, at time.Time) error
	// PurgeDeleted elimina físicamente los tombstones de una empresa.
	// Solo para entornos sandbox/test; devuelve la cantidad purgada.
	PurgeDeleted(companyID string) (int, error)
}
