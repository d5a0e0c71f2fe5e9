package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Procura-api/internal/application/audit"
	"github.com/jhoicas/Procura-api/internal/application/dto"
)

// AuditHandler maneja la consulta del log de auditoría, los contadores de uso
// y la reversión (undo) de entradas.
type AuditHandler struct {
	query *audit.QueryUseCase
	undo  *audit.UndoUseCase
}

// NewAuditHandler construye el handler de auditoría.
func NewAuditHandler(query *audit.QueryUseCase, undo *audit.UndoUseCase) *AuditHandler {
	return &AuditHandler{query: query, undo: undo}
}

// List godoc
// @Summary      Listar entradas de auditoría de la empresa (enterprise)
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Router       /api/audit [get]
func (h *AuditHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	entries, err := h.query.List(c.Context(), ActorFrom(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(entries), "entries": entries})
}

// Metrics godoc
// @Summary      Contadores de uso por día/acción (professional+)
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Router       /api/audit/metrics [get]
func (h *AuditHandler) Metrics(c *fiber.Ctx) error {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "from inválido (RFC3339)"})
		}
		from = t
	}
	to := now
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "to inválido (RFC3339)"})
		}
		to = t
	}
	metrics, err := h.query.Metrics(c.Context(), ActorFrom(c), from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(metrics), "metrics": metrics})
}

type undoRequest struct {
	Reason string `json:"reason"`
}

// Undo godoc
// @Summary      Revertir una entrada de auditoría (enterprise)
// @Description  Solo entradas de inventory_items con tipo reversible. Reintentos
//
//	sobre una entrada ya revertida devuelven ALREADY_ROLLED_BACK.
//
// @Tags         audit
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/audit/{id}/undo [post]
func (h *AuditHandler) Undo(c *fiber.Ctx) error {
	var in undoRequest
	if err := c.BodyParser(&in); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.undo.Undo(c.Context(), ActorFrom(c), c.Params("id"), in.Reason)
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}
