package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/orders"
)

// OrderHandler maneja las peticiones HTTP de órdenes de compra (protegido).
type OrderHandler struct {
	uc *orders.UseCase
}

// NewOrderHandler construye el handler.
func NewOrderHandler(uc *orders.UseCase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type createPORequest struct {
	Supplier string `json:"supplier"`
	Notes    string `json:"notes"`
}

// Create godoc
// @Summary      Crear orden de compra (draft)
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/purchase-orders [post]
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var in createPORequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	id, err := h.uc.CreatePO(c.Context(), ActorFrom(c), in.Supplier, in.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// List godoc
// @Summary      Listar órdenes de compra de la empresa
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Router       /api/purchase-orders [get]
func (h *OrderHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	list, err := h.uc.ListPOs(c.Context(), ActorFrom(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "orders": list})
}

// GetByID godoc
// @Summary      Obtener orden con sus líneas
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Router       /api/purchase-orders/{id} [get]
func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	detail, err := h.uc.GetPO(c.Context(), ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

type poLineRequest struct {
	ItemID     string          `json:"item_id"`
	QtyOrdered decimal.Decimal `json:"qty_ordered"`
}

// AddLine godoc
// @Summary      Agregar línea a una orden en draft
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/purchase-orders/{id}/lines [post]
func (h *OrderHandler) AddLine(c *fiber.Ctx) error {
	var in poLineRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.uc.AddLine(c.Context(), ActorFrom(c), c.Params("id"), in.ItemID, in.QtyOrdered)
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

type approvePORequest struct {
	Target       string   `json:"target"`        // approved | submitted
	PolicyIntent []string `json:"policy_intent"` // ítems cuyo exceso de demanda neta se aprueba a propósito
}

// Approve godoc
// @Summary      Aprobar o enviar orden de compra (guarda de demanda neta)
// @Description  Exceder la demanda neta exige listar los ítems en policy_intent;
//
//	el uso de la intención queda auditado por separado.
//
// @Tags         orders
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/purchase-orders/{id}/approve [post]
func (h *OrderHandler) Approve(c *fiber.Ctx) error {
	var in approvePORequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.uc.Approve(c.Context(), ActorFrom(c), c.Params("id"), in.Target, in.PolicyIntent)
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}
