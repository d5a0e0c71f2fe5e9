package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/inventory"
)

// InventoryHandler maneja las peticiones HTTP de ítems de inventario (protegido).
type InventoryHandler struct {
	uc *inventory.UseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(uc *inventory.UseCase) *InventoryHandler {
	return &InventoryHandler{uc: uc}
}

type itemRequest struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitMeasure string          `json:"unit_measure"`
}

// Create godoc
// @Summary      Crear ítem de inventario
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/items [post]
func (h *InventoryHandler) Create(c *fiber.Ctx) error {
	var in itemRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.uc.CreateItem(c.Context(), ActorFrom(c), inventory.CreateItemInput{
		SKU:         in.SKU,
		Name:        in.Name,
		Description: in.Description,
		Quantity:    in.Quantity,
		UnitMeasure: in.UnitMeasure,
	})
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// List godoc
// @Summary      Listar ítems de la empresa
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Router       /api/items [get]
func (h *InventoryHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	includeDeleted := c.QueryBool("include_deleted")
	items, err := h.uc.ListItems(c.Context(), ActorFrom(c), includeDeleted, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(items), "items": items})
}

// GetByID godoc
// @Summary      Obtener ítem por ID
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Router       /api/items/{id} [get]
func (h *InventoryHandler) GetByID(c *fiber.Ctx) error {
	item, err := h.uc.GetItem(c.Context(), ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(item)
}

// Update godoc
// @Summary      Editar ítem (incluye ajuste directo de cantidad)
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/items/{id} [put]
func (h *InventoryHandler) Update(c *fiber.Ctx) error {
	var in itemRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.uc.UpdateItem(c.Context(), ActorFrom(c), c.Params("id"), inventory.UpdateItemInput{
		Name:        &in.Name,
		Description: &in.Description,
		Quantity:    &in.Quantity,
		UnitMeasure: &in.UnitMeasure,
	})
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}

// Delete godoc
// @Summary      Borrar ítem (lógico, reversible)
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Router       /api/items/{id} [delete]
func (h *InventoryHandler) Delete(c *fiber.Ctx) error {
	res, err := h.uc.SoftDeleteItem(c.Context(), ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkDelete godoc
// @Summary      Borrado lógico masivo (una entrada de auditoría por ítem)
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/items/bulk-delete [post]
func (h *InventoryHandler) BulkDelete(c *fiber.Ctx) error {
	var in bulkDeleteRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.uc.SoftDeleteItems(c.Context(), ActorFrom(c), in.IDs)
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}

// Restore godoc
// @Summary      Restaurar ítem borrado lógicamente
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Router       /api/items/{id}/restore [post]
func (h *InventoryHandler) Restore(c *fiber.Ctx) error {
	res, err := h.uc.RestoreItem(c.Context(), ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}

// Purge godoc
// @Summary      Purga física de tombstones (solo sandbox/test, super-usuario)
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Router       /api/items/purge-deleted [post]
func (h *InventoryHandler) Purge(c *fiber.Ctx) error {
	res, err := h.uc.PurgeDeleted(c.Context(), ActorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
