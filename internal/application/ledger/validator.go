package ledger

import (
	"context"
	"fmt"

	"github.com/tu-usuario/pos-ledger/internal/domain"
	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
)

// lowStockFloor umbral mínimo de alerta de stock bajo (unidades).
const lowStockFloor = 5

// AvailabilityResult resultado de una validación de disponibilidad.
type AvailabilityResult struct {
	Available         int
	Requested         int
	RemainingAfter    int
	LowStockThreshold int
	IsLowStock        bool
	Warning           string
}

// StockValidator validación de factibilidad de solo lectura: nunca muta estado
// y puede invocarse cualquier número de veces.
type StockValidator struct {
	posRepo repository.StockPositionRepository
}

// NewStockValidator construye el validador sobre el repositorio de posiciones.
func NewStockValidator(posRepo repository.StockPositionRepository) *StockValidator {
	return &StockValidator{posRepo: posRepo}
}

// ValidateAvailability verifica que la posición exista, esté activa y tenga
// stock suficiente para la cantidad solicitada; calcula además la alerta de
// stock bajo sobre la cantidad previa a la operación.
func (v *StockValidator) ValidateAvailability(ctx context.Context, productID, pointOfSaleID string, requestedQty int) (*AvailabilityResult, error) {
	if requestedQty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	pos, err := v.posRepo.Get(ctx, productID, pointOfSaleID)
	if err != nil {
		return nil, err
	}
	return checkAvailability(pos, requestedQty)
}

// checkAvailability es la verificación pura compartida entre la validación
// previa y la re-validación dentro de la transacción (sobre la fila bloqueada).
func checkAvailability(pos *entity.StockPosition, requestedQty int) (*AvailabilityResult, error) {
	if pos == nil || !pos.IsActive {
		return nil, domain.ErrNotAssigned
	}
	if pos.Quantity < requestedQty {
		return nil, &domain.InsufficientStockError{Available: pos.Quantity, Requested: requestedQty}
	}

	remaining := pos.Quantity - requestedQty
	// Umbral dinámico: max(10% del stock previo a la operación, 5 unidades).
	threshold := pos.Quantity / 10
	if threshold < lowStockFloor {
		threshold = lowStockFloor
	}
	res := &AvailabilityResult{
		Available:         pos.Quantity,
		Requested:         requestedQty,
		RemainingAfter:    remaining,
		LowStockThreshold: threshold,
		IsLowStock:        remaining > 0 && remaining <= threshold,
	}
	if res.IsLowStock {
		res.Warning = fmt.Sprintf("stock bajo: quedarán %d unidades (umbral %d)", remaining, threshold)
	}
	return res, nil
}
