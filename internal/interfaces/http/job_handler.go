package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/jobs"
)

// JobHandler maneja las peticiones HTTP de trabajos (protegido).
type JobHandler struct {
	uc *jobs.UseCase
}

// NewJobHandler construye el handler.
func NewJobHandler(uc *jobs.UseCase) *JobHandler {
	return &JobHandler{uc: uc}
}

type createJobRequest struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

// Create godoc
// @Summary      Crear trabajo (draft)
// @Tags         jobs
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/jobs [post]
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var in createJobRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	id, err := h.uc.CreateJob(c.Context(), ActorFrom(c), in.Name, in.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// List godoc
// @Summary      Listar trabajos de la empresa
// @Tags         jobs
// @Security     Bearer
// @Produce      json
// @Router       /api/jobs [get]
func (h *JobHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	list, err := h.uc.ListJobs(c.Context(), ActorFrom(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "jobs": list})
}

// GetByID godoc
// @Summary      Obtener trabajo con BOM y consumos reales
// @Tags         jobs
// @Security     Bearer
// @Produce      json
// @Router       /api/jobs/{id} [get]
func (h *JobHandler) GetByID(c *fiber.Ctx) error {
	detail, err := h.uc.GetJob(c.Context(), ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

type bomLineRequest struct {
	ItemID     string          `json:"item_id"`
	QtyPlanned decimal.Decimal `json:"qty_planned"`
}

// SetBOMLine godoc
// @Summary      Fijar línea del BOM planificado (draft/quoted)
// @Tags         jobs
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/jobs/{id}/bom [put]
func (h *JobHandler) SetBOMLine(c *fiber.Ctx) error {
	var in bomLineRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.uc.SetBOMLine(c.Context(), ActorFrom(c), c.Params("id"), in.ItemID, in.QtyPlanned)
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}

// Quote godoc
// @Summary      Pasar trabajo a quoted
// @Tags         jobs
// @Security     Bearer
// @Produce      json
// @Router       /api/jobs/{id}/quote [post]
func (h *JobHandler) Quote(c *fiber.Ctx) error {
	return h.respond(c, func() (*jobs.JobResult, error) {
		return h.uc.Quote(c.Context(), ActorFrom(c), c.Params("id"))
	})
}

type approveJobRequest struct {
	WasFulfillable *bool `json:"was_fulfillable"`
}

// Approve godoc
// @Summary      Aprobar trabajo (crea reserva blanda, faltantes informativos)
// @Description  was_fulfillable: si el cliente vio el trabajo como satisfacible,
//
//	una regresión de disponibilidad rechaza con INVENTORY_CHANGED.
//
// @Tags         jobs
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/jobs/{id}/approve [post]
func (h *JobHandler) Approve(c *fiber.Ctx) error {
	var in approveJobRequest
	if err := c.BodyParser(&in); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	return h.respond(c, func() (*jobs.JobResult, error) {
		return h.uc.Approve(c.Context(), ActorFrom(c), c.Params("id"), in.WasFulfillable)
	})
}

// Start godoc
// @Summary      Pasar trabajo a in_progress
// @Tags         jobs
// @Security     Bearer
// @Produce      json
// @Router       /api/jobs/{id}/start [post]
func (h *JobHandler) Start(c *fiber.Ctx) error {
	return h.respond(c, func() (*jobs.JobResult, error) {
		return h.uc.Start(c.Context(), ActorFrom(c), c.Params("id"))
	})
}

type completeJobRequest struct {
	Actuals []struct {
		ItemID  string          `json:"item_id"`
		QtyUsed decimal.Decimal `json:"qty_used"`
	} `json:"actuals"`
}

// Complete godoc
// @Summary      Completar trabajo descontando los consumos reales
// @Tags         jobs
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/jobs/{id}/complete [post]
func (h *JobHandler) Complete(c *fiber.Ctx) error {
	var in completeJobRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	actuals := make([]jobs.ActualInput, 0, len(in.Actuals))
	for _, a := range in.Actuals {
		actuals = append(actuals, jobs.ActualInput{ItemID: a.ItemID, QtyUsed: a.QtyUsed})
	}
	return h.respond(c, func() (*jobs.JobResult, error) {
		return h.uc.Complete(c.Context(), ActorFrom(c), c.Params("id"), actuals)
	})
}

// Void godoc
// @Summary      Anular trabajo
// @Tags         jobs
// @Security     Bearer
// @Produce      json
// @Router       /api/jobs/{id}/void [post]
func (h *JobHandler) Void(c *fiber.Ctx) error {
	return h.respond(c, func() (*jobs.JobResult, error) {
		return h.uc.Void(c.Context(), ActorFrom(c), c.Params("id"))
	})
}

func (h *JobHandler) respond(c *fiber.Ctx, fn func() (*jobs.JobResult, error)) error {
	res, err := fn()
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}
