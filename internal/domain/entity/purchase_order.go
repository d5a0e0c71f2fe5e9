package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una orden de compra.
const (
	PODraft     = "draft"
	POSubmitted = "submitted"
	POApproved  = "approved"
	POPartial   = "partial"
	POReceived  = "received"
	POVoided    = "voided"
)

// PurchaseOrder representa una orden de compra de una empresa. La aprobación
// está custodiada por el cálculo de demanda neta (reservas de trabajos menos
// on-hand menos suministro entrante); excederla exige policy intent explícito.
type PurchaseOrder struct {
	ID        string
	CompanyID string
	Supplier  string
	Status    string
	Notes     string

	CreatedBy  string
	ApprovedBy string
	ApprovedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SupplyCounts informa si la orden cuenta como suministro entrante
// para el cálculo de demanda neta de otras aprobaciones.
func (po *PurchaseOrder) SupplyCounts() bool {
	return po.Status == POSubmitted || po.Status == POApproved || po.Status == POPartial
}

// PurchaseOrderLine línea de una orden de compra (cantidad pedida por ítem).
type PurchaseOrderLine struct {
	ID              string
	PurchaseOrderID string
	ItemID          string
	QtyOrdered      decimal.Decimal
	CreatedAt       time.Time
}
