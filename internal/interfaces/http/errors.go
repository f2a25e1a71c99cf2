package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/pos-ledger/internal/application/dto"
	"github.com/tu-usuario/pos-ledger/internal/domain"
)

// respondError mapea la taxonomía de errores del dominio a códigos HTTP.
// Los errores con datos (stock insuficiente, stock pendiente, concurrencia,
// devolución excedida) exponen sus cantidades en details.
func respondError(c *fiber.Ctx, err error) error {
	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "INSUFFICIENT_STOCK",
			Message: insufficient.Error(),
			Details: map[string]any{"available": insufficient.Available, "requested": insufficient.Requested},
		})
	}
	var nonZero *domain.NonZeroStockError
	if errors.As(err, &nonZero) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "NON_ZERO_STOCK",
			Message: nonZero.Error(),
			Details: map[string]any{"quantity": nonZero.Quantity},
		})
	}
	var concurrent *domain.ConcurrencyError
	if errors.As(err, &concurrent) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "CONCURRENT_UPDATE",
			Message: concurrent.Error(),
			Details: map[string]any{"available": concurrent.Available},
		})
	}
	var exceeds *domain.ReturnExceedsAvailableError
	if errors.As(err, &exceeds) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "RETURN_EXCEEDS_AVAILABLE",
			Message: exceeds.Error(),
			Details: map[string]any{"requested": exceeds.Requested, "remaining": exceeds.Remaining},
		})
	}

	switch {
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidReason),
		errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrNotAssigned):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_ASSIGNED", Message: err.Error()})
	case errors.Is(err, domain.ErrAlreadyAssigned):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALREADY_ASSIGNED", Message: err.Error()})
	case errors.Is(err, domain.ErrReturnWindowExpired):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "RETURN_WINDOW_EXPIRED", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicateRequest):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE_REQUEST", Message: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: err.Error()})
	case errors.Is(err, domain.ErrNegativeStock):
		// Violación de invariante: los validadores debieron impedirlo.
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NEGATIVE_STOCK", Message: err.Error()})
	default:
		// Fallo de transacción u otro error inesperado: genérico hacia afuera.
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
	}
}
