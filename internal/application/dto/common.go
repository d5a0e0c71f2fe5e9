package dto

// Códigos estables de falla de negocio (resultados suaves). Son contrato para
// los consumidores (i18n, branching en UI); no cambiarlos sin versionar.
const (
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeOverlappingOverride  = "OVERLAPPING_OVERRIDE"
	CodeEndsAtInPast         = "ENDS_AT_IN_PAST"
	CodeNoActiveOverride     = "NO_ACTIVE_OVERRIDE"
	CodeAlreadyRolledBack    = "ALREADY_ROLLED_BACK"
	CodeNotUndoable          = "NOT_UNDOABLE"
	CodeNetDemandExceeded    = "NET_DEMAND_EXCEEDED"
	CodeInventoryChanged     = "INVENTORY_CHANGED"
	CodeDuplicateActual      = "DUPLICATE_ACTUAL"
	CodeMissingActual        = "MISSING_ACTUAL"
	CodeNegativeQty          = "NEGATIVE_QTY"
	CodeVoidReasonTooShort   = "VOID_REASON_TOO_SHORT"
	CodeRejectReasonTooShort = "REJECT_REASON_TOO_SHORT"
	CodeEmptyReceipt         = "EMPTY_RECEIPT"
	CodeItemDeleted          = "ITEM_DELETED"
	CodePOLineRequired       = "PO_LINE_REQUIRED"
)

// PageRequest paginación para listados.
type PageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// DefaultPage aplica valores por defecto si Limit/Offset son cero.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
