package repository

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/domain/entity"
)

// PurchaseOrderRepository define el puerto de órdenes de compra y sus líneas.
type PurchaseOrderRepository interface {
	Create(po *entity.PurchaseOrder) error
	GetByID(id string) (*entity.PurchaseOrder, error)
	GetForUpdate(id string) (*entity.PurchaseOrder, error)
	Update(po *entity.PurchaseOrder) error
	ListByCompany(companyID string, limit, offset int) ([]*entity.PurchaseOrder, error)

	Lines(poID string) ([]*entity.PurchaseOrderLine, error)
	GetLine(lineID string) (*entity.PurchaseOrderLine, error)
	CreateLine(l *entity.PurchaseOrderLine) error

	// IncomingSupply devuelve, por ítem, la suma de qty_ordered en otras órdenes
	// submitted/approved/partial de la empresa (suministro entrante para el
	// cálculo de demanda neta). excludePOID excluye la orden en evaluación.
	IncomingSupply(companyID string, itemIDs []string, excludePOID string) (map[string]decimal.Decimal, error)
}
