package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrNotAssigned         = errors.New("producto no asignado al punto de venta")
	ErrAlreadyAssigned     = errors.New("producto ya asignado al punto de venta")
	ErrInvalidQuantity     = errors.New("cantidad inválida")
	ErrInvalidReason       = errors.New("motivo de ajuste requerido (máx. 500 caracteres)")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrForbidden           = errors.New("acceso denegado")
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrNonZeroStock        = errors.New("la posición tiene stock pendiente")
	ErrConcurrentUpdate    = errors.New("el stock cambió durante la operación")
	ErrNegativeStock       = errors.New("el stock no puede quedar negativo")
	ErrReturnWindowExpired = errors.New("ventana de devolución vencida (30 días)")
	ErrReturnExceeds       = errors.New("cantidad a devolver excede lo disponible")
	ErrDuplicateRequest    = errors.New("solicitud duplicada")
)

// InsufficientStockError lleva ambas cantidades para que el caller muestre el delta.
// errors.Is(err, ErrInsufficientStock) matchea.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente: disponible %d, solicitado %d", e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// NonZeroStockError reporta la cantidad actual al rechazar un Unassign.
type NonZeroStockError struct {
	Quantity int
}

func (e *NonZeroStockError) Error() string {
	return fmt.Sprintf("no se puede desasignar: quedan %d unidades en stock", e.Quantity)
}

func (e *NonZeroStockError) Is(target error) bool { return target == ErrNonZeroStock }

// ConcurrencyError indica que la re-validación dentro de la transacción encontró
// un estado distinto al de la validación previa. Lleva la cantidad fresca; el
// sistema nunca reintenta por su cuenta.
type ConcurrencyError struct {
	Available int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("el stock cambió durante la operación: disponible ahora %d", e.Available)
}

func (e *ConcurrencyError) Is(target error) bool { return target == ErrConcurrentUpdate }

// ReturnExceedsAvailableError lleva lo solicitado y lo aún devolvible de la venta.
type ReturnExceedsAvailableError struct {
	Requested int
	Remaining int
}

func (e *ReturnExceedsAvailableError) Error() string {
	return fmt.Sprintf("devolución excede lo disponible: solicitado %d, devolvible %d", e.Requested, e.Remaining)
}

func (e *ReturnExceedsAvailableError) Is(target error) bool { return target == ErrReturnExceeds }
