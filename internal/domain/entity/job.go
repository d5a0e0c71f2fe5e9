package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de un trabajo (orden de trabajo que consume inventario).
const (
	JobDraft      = "draft"
	JobQuoted     = "quoted"
	JobApproved   = "approved"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobVoided     = "voided"
)

// Job representa una orden de trabajo. El BOM planificado no toca inventario;
// la aprobación crea una reserva blanda (vista computada, sin decremento físico)
// y solo la completación descuenta on-hand usando los consumos reales (actuals).
type Job struct {
	ID        string
	CompanyID string
	Name      string
	Notes     string
	Status    string

	CreatedBy   string
	ApprovedBy  string
	ApprovedAt  *time.Time
	CompletedBy string
	CompletedAt *time.Time
	VoidedBy    string
	VoidedAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reserving informa si el trabajo cuenta para la vista de reservas
// (aprobado o en curso; los completados ya consumieron).
func (j *Job) Reserving() bool {
	return j.Status == JobApproved || j.Status == JobInProgress
}

// JobBOMLine línea del BOM planificado de un trabajo (clave job×item).
type JobBOMLine struct {
	JobID      string
	ItemID     string
	QtyPlanned decimal.Decimal
	Unplanned  bool // true si se agregó en completación como consumo no planificado
	CreatedAt  time.Time
}

// JobActualLine consumo real registrado al completar (clave job×item).
type JobActualLine struct {
	JobID     string
	ItemID    string
	QtyUsed   decimal.Decimal
	CreatedAt time.Time
}
