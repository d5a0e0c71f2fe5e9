package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/application/entitlement"
)

// AdminHandler maneja la administración de planes: overrides temporales y plan
// base. Todas las rutas exigen super-usuario (lo valida el caso de uso).
type AdminHandler struct {
	overrides *entitlement.OverrideUseCase
	resolver  *entitlement.Resolver
}

// NewAdminHandler construye el handler de administración.
func NewAdminHandler(overrides *entitlement.OverrideUseCase, resolver *entitlement.Resolver) *AdminHandler {
	return &AdminHandler{overrides: overrides, resolver: resolver}
}

type grantOverrideRequest struct {
	Tier   string     `json:"tier"`
	EndsAt *time.Time `json:"ends_at"` // nil = indefinido
	Reason string     `json:"reason"`
}

// GrantOverride godoc
// @Summary      Otorgar override de plan a una empresa
// @Tags         admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/admin/companies/{id}/tier-override [post]
func (h *AdminHandler) GrantOverride(c *fiber.Ctx) error {
	var in grantOverrideRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.overrides.Grant(c.Context(), ActorFrom(c), c.Params("id"), in.Tier, in.EndsAt, in.Reason)
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// RevokeOverride godoc
// @Summary      Revocar el override vigente de una empresa
// @Tags         admin
// @Security     Bearer
// @Produce      json
// @Router       /api/admin/companies/{id}/tier-override [delete]
func (h *AdminHandler) RevokeOverride(c *fiber.Ctx) error {
	res, err := h.overrides.Revoke(c.Context(), ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}

type setBaseTierRequest struct {
	Tier string `json:"tier"`
}

// SetBaseTier godoc
// @Summary      Cambiar el plan base de una empresa
// @Tags         admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Router       /api/admin/companies/{id}/base-tier [put]
func (h *AdminHandler) SetBaseTier(c *fiber.Ctx) error {
	var in setBaseTierRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.overrides.SetBaseTier(c.Context(), ActorFrom(c), c.Params("id"), in.Tier)
	if err != nil {
		return respondError(c, err)
	}
	if !res.Success {
		return c.Status(statusForCode(res.Code)).JSON(res)
	}
	return c.JSON(res)
}

// EffectiveTier godoc
// @Summary      Consultar el plan efectivo de una empresa
// @Tags         admin
// @Security     Bearer
// @Produce      json
// @Router       /api/admin/companies/{id}/tier [get]
func (h *AdminHandler) EffectiveTier(c *fiber.Ctx) error {
	actor := ActorFrom(c)
	companyID := c.Params("id")
	// Cualquier miembro puede ver el plan de SU empresa; otras solo super-usuario.
	if companyID != actor.CompanyID && !actor.SuperUser {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	}
	info, err := h.resolver.Resolve(c.Context(), companyID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(info)
}
