package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de acción del log de auditoría (deben coincidir con el CHECK de audit_log.action).
const (
	ActionInsert         = "INSERT"
	ActionUpdate         = "UPDATE"
	ActionDelete         = "DELETE"
	ActionRestore        = "RESTORE"
	ActionBulkDelete     = "BULK_DELETE"
	ActionRollback       = "ROLLBACK"
	ActionPermanentPurge = "PERMANENT_PURGE"
	ActionCompanySwitch  = "COMPANY_SWITCH"
)

// AuditLogEntry es una fila append-only del log de auditoría. Inmutable una vez
// escrita, salvo la tripleta de rollback que undo_action asigna exactamente una vez.
// OldValues/NewValues son snapshots estructurados de la fila afectada; Metadata es
// un payload tipado por evento (ver EventMeta) serializado a JSONB.
type AuditLogEntry struct {
	ID        string
	CompanyID string
	Action    string // ver constantes Action*
	TableName string
	RecordID  string
	ActorID   string
	OldValues json.RawMessage // nil si no aplica (INSERT)
	NewValues json.RawMessage // nil si no aplica (DELETE)
	Metadata  json.RawMessage
	CreatedAt time.Time

	// Tripleta de rollback: escritura única por undo_action.
	RolledBackAt   *time.Time
	RolledBackBy   string
	RollbackReason string
	RollbackOf     string // en entradas ROLLBACK: ID de la entrada original revertida
}

// IsRolledBack informa si la entrada ya fue revertida.
func (e *AuditLogEntry) IsRolledBack() bool {
	return e.RolledBackAt != nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Payloads tipados por evento (union etiquetada por Event). Extra es el canal
// lateral para campos nuevos sin romper consumidores viejos.
// ──────────────────────────────────────────────────────────────────────────────

// EventMeta es la envoltura común de metadata de auditoría.
type EventMeta struct {
	Event   string            `json:"event"`
	Version int               `json:"version"`
	Extra   map[string]string `json:"extra,omitempty"`

	Receipt  *ReceiptEventMeta  `json:"receipt,omitempty"`
	Job      *JobEventMeta      `json:"job,omitempty"`
	Order    *OrderEventMeta    `json:"order,omitempty"`
	Override *OverrideEventMeta `json:"override,omitempty"`
	Rollback *RollbackEventMeta `json:"rollback,omitempty"`
	Purge    *PurgeEventMeta    `json:"purge,omitempty"`
}

// ReceiptEventMeta detalle de transiciones de recepciones.
type ReceiptEventMeta struct {
	FromStatus string          `json:"from_status"`
	ToStatus   string          `json:"to_status"`
	LineCount  int             `json:"line_count"`
	TotalQty   decimal.Decimal `json:"total_qty"`
	VoidReason string          `json:"void_reason,omitempty"`
}

// JobEventMeta detalle de transiciones de trabajos, incluye faltantes informativos.
type JobEventMeta struct {
	FromStatus string          `json:"from_status"`
	ToStatus   string          `json:"to_status"`
	Shortages  []ShortageEntry `json:"shortages,omitempty"`
	Unplanned  []string        `json:"unplanned_items,omitempty"`
}

// ShortageEntry faltante de inventario por ítem (para UI, no solo texto).
type ShortageEntry struct {
	ItemID    string          `json:"item_id"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

// OrderEventMeta detalle de aprobación de órdenes de compra (incluye uso de policy intent).
type OrderEventMeta struct {
	FromStatus   string   `json:"from_status"`
	ToStatus     string   `json:"to_status"`
	PolicyIntent []string `json:"policy_intent,omitempty"` // ítems aprobados por intención explícita
}

// OverrideEventMeta detalle de cambios de plan (override o plan base).
type OverrideEventMeta struct {
	PreviousTier  string     `json:"previous_tier"`
	NewTier       string     `json:"new_tier"`
	StartsAt      *time.Time `json:"starts_at,omitempty"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
	RemainingSecs int64      `json:"remaining_secs,omitempty"` // en revocaciones: duración restante
}

// RollbackEventMeta detalle de una reversión de auditoría.
type RollbackEventMeta struct {
	OriginalAuditID string `json:"original_audit_id"`
	OriginalAction  string `json:"original_action"`
	Reason          string `json:"reason,omitempty"`
}

// PurgeEventMeta detalle de purga física (solo sandbox/test).
type PurgeEventMeta struct {
	PurgedCount int `json:"purged_count"`
}

// Marshal serializa el payload; ante error devuelve JSON vacío (la auditoría
// nunca debe tumbar la transacción por metadata).
func (m EventMeta) Marshal() json.RawMessage {
	b, err := json.Marshal(m)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
