package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/receiving"
)

// ReceiptHandler maneja las peticiones HTTP de recepciones (protegido).
type ReceiptHandler struct {
	uc *receiving.UseCase
}

// NewReceiptHandler construye el handler.
func NewReceiptHandler(uc *receiving.UseCase) *ReceiptHandler {
	return &ReceiptHandler{uc: uc}
}

type createReceiptRequest struct {
	PurchaseOrderID string `json:"purchase_order_id"`
	Notes           string `json:"notes"`
}

// Create godoc
// @Summary      Crear recepción (draft), opcionalmente ligada a una orden de compra
// @Tags         receipts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/receipts [post]
func (h *ReceiptHandler) Create(c *fiber.Ctx) error {
	var in createReceiptRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	id, err := h.uc.CreateReceipt(c.Context(), ActorFrom(c), in.PurchaseOrderID, in.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// List godoc
// @Summary      Listar recepciones de la empresa
// @Tags         receipts
// @Security     Bearer
// @Produce      json
// @Router       /api/receipts [get]
func (h *ReceiptHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	receipts, err := h.uc.ListReceipts(c.Context(), ActorFrom(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(receipts), "receipts": receipts})
}

// GetByID godoc
// @Summary      Obtener recepción con sus líneas
// @Tags         receipts
// @Security     Bearer
// @Produce      json
// @Router       /api/receipts/{id} [get]
func (h *ReceiptHandler) GetByID(c *fiber.Ctx) error {
	detail, err := h.uc.GetReceipt(c.Context(), ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

type receiptLineRequest struct {
	ItemID       string          `json:"item_id"`
	POLineID     string          `json:"po_line_id"`
	ExpectedQty  decimal.Decimal `json:"expected_qty"`
	ReceivedQty  decimal.Decimal `json:"received_qty"`
	RejectedQty  decimal.Decimal `json:"rejected_qty"`
	RejectReason string          `json:"reject_reason"`
}

func (in receiptLineRequest) toInput() receiving.LineInput {
	return receiving.LineInput{
		ItemID:       in.ItemID,
		POLineID:     in.POLineID,
		ExpectedQty:  in.ExpectedQty,
		ReceivedQty:  in.ReceivedQty,
		RejectedQty:  in.RejectedQty,
		RejectReason: in.RejectReason,
	}
}

// AddLine godoc
// @Summary      Agregar línea a una recepción en draft
// @Tags         receipts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/receipts/{id}/lines [post]
func (h *ReceiptHandler) AddLine(c *fiber.Ctx) error {
	var in receiptLineRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.uc.AddLine(c.Context(), ActorFrom(c), c.Params("id"), in.toInput())
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// UpdateLine godoc
// @Summary      Editar línea de una recepción en draft
// @Tags         receipts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/receipts/{id}/lines/{lineID} [put]
func (h *ReceiptHandler) UpdateLine(c *fiber.Ctx) error {
	var in receiptLineRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.uc.UpdateLine(c.Context(), ActorFrom(c), c.Params("id"), c.Params("lineID"), in.toInput())
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}

type transitionRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// Transition godoc
// @Summary      Transicionar recepción (submit, reject, complete, void)
// @Description  target: pending|draft|completed|voided. reason es obligatorio para void.
// @Tags         receipts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/receipts/{id}/transition [post]
func (h *ReceiptHandler) Transition(c *fiber.Ctx) error {
	var in transitionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.uc.Transition(c.Context(), ActorFrom(c), c.Params("id"), in.Target, in.Reason)
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}
