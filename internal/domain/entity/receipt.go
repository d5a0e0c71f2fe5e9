package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una recepción de mercadería (deben coincidir con el CHECK de receipts.status).
const (
	ReceiptDraft         = "draft"
	ReceiptPending       = "pending"
	ReceiptCompleted     = "completed"
	ReceiptVoided        = "voided"
	ReceiptBlockedByPlan = "blocked_by_plan"
)

// Receipt representa una recepción de mercadería de una empresa, opcionalmente
// ligada a una orden de compra. Ciclo: draft → pending → completed | (completed →) voided.
// El inventario se afecta exactamente una vez, al entrar a completed; voided
// revierte ese delta exacto. Los campos *By/*At son de escritura única y la fila
// queda congelada (salvo void) al llegar a completed.
type Receipt struct {
	ID              string
	CompanyID       string
	PurchaseOrderID string // vacío = recepción sin orden de compra
	Status          string
	Notes           string

	CreatedBy   string
	SubmittedBy string
	SubmittedAt *time.Time
	ReceivedBy  string
	ReceivedAt  *time.Time
	VoidedBy    string
	VoidedAt    *time.Time
	VoidReason  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal informa si la recepción ya no admite más transiciones.
func (r *Receipt) IsTerminal() bool {
	return r.Status == ReceiptVoided
}

// ReceiptLine es una línea de recepción: cantidades recibida/rechazada/esperada
// por ítem. POLineID es obligatorio si y solo si la recepción referencia una orden.
type ReceiptLine struct {
	ID           string
	ReceiptID    string
	ItemID       string
	POLineID     string // vacío en recepciones sin orden
	ExpectedQty  decimal.Decimal
	ReceivedQty  decimal.Decimal
	RejectedQty  decimal.Decimal
	RejectReason string // obligatorio (mínimo 10 caracteres) si RejectedQty > 0
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
