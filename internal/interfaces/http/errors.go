package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Procura-api/internal/application/dto"
	"github.com/jhoicas/Procura-api/internal/domain"
)

// respondError mapea errores duros del dominio a status HTTP. Los resultados
// suaves de negocio no pasan por acá: viajan en el cuerpo con su código estable.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	case errors.Is(err, domain.ErrUpgradeRequired):
		return c.Status(fiber.StatusPaymentRequired).JSON(dto.ErrorResponse{Code: "UPGRADE_REQUIRED", Message: "el plan de la empresa no incluye esta función"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "ya existe un recurso equivalente"})
	case errors.Is(err, domain.ErrImmutableField), errors.Is(err, domain.ErrCompanyMismatch), errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "la operación entra en conflicto con el estado actual"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

// statusForCode elige el status HTTP de un resultado suave fallido.
func statusForCode(code string) int {
	switch code {
	case dto.CodePermissionDenied:
		return fiber.StatusForbidden
	case dto.CodeNegativeQty, dto.CodeVoidReasonTooShort, dto.CodeRejectReasonTooShort,
		dto.CodeEmptyReceipt, dto.CodeEndsAtInPast, dto.CodePOLineRequired,
		dto.CodeDuplicateActual, dto.CodeMissingActual:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusConflict
	}
}
