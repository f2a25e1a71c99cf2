package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/pos-ledger/internal/domain"
	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
)

// maxReasonLength largo máximo del motivo de un ajuste.
const maxReasonLength = 500

// MovementRecorder es el único escritor de StockPosition.Quantity. Cada Append
// persiste la nueva cantidad y su registro inmutable de auditoría en el mismo
// paso atómico: o ambos quedan, o ninguno.
type MovementRecorder struct{}

// NewMovementRecorder construye el recorder (sin estado propio).
func NewMovementRecorder() *MovementRecorder {
	return &MovementRecorder{}
}

// AppendInput parámetros de un movimiento a registrar.
type AppendInput struct {
	Type          string
	Delta         int // con signo
	ActorID       string
	Reason        string // obligatorio solo para ADJUSTMENT
	CorrelationID string // venta/devolución que origina el movimiento
	Now           time.Time
}

// Append aplica el delta sobre la posición y registra el movimiento, usando
// repositorios atados a la transacción del caller. La posición debe venir de
// GetForUpdate dentro de esa misma transacción.
func (mr *MovementRecorder) Append(
	ctx context.Context,
	posRepo repository.StockPositionRepository,
	movRepo repository.MovementRecordRepository,
	pos *entity.StockPosition,
	in AppendInput,
) (*entity.MovementRecord, error) {
	if !entity.ValidMovementType(in.Type) {
		return nil, domain.ErrInvalidInput
	}
	if in.Type == entity.MovementTypeAdjustment {
		if in.Reason == "" || len(in.Reason) > maxReasonLength {
			return nil, domain.ErrInvalidReason
		}
	} else if in.Reason != "" {
		return nil, domain.ErrInvalidInput
	}

	before := pos.Quantity
	after := before + in.Delta
	// Invariante: la cantidad resultante nunca es negativa.
	if after < 0 {
		return nil, domain.ErrNegativeStock
	}

	if err := posRepo.UpdateQuantity(ctx, pos.ID, after, in.Now); err != nil {
		return nil, fmt.Errorf("actualizar cantidad: %w", err)
	}
	mov := &entity.MovementRecord{
		ID:             uuid.New().String(),
		PositionID:     pos.ID,
		ProductID:      pos.ProductID,
		PointOfSaleID:  pos.PointOfSaleID,
		Type:           in.Type,
		QuantityChange: in.Delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reason:         in.Reason,
		CorrelationID:  in.CorrelationID,
		ActorID:        in.ActorID,
		RecordedAt:     in.Now,
	}
	if err := movRepo.Create(ctx, mov); err != nil {
		return nil, fmt.Errorf("registrar movimiento: %w", err)
	}
	pos.Quantity = after
	pos.UpdatedAt = in.Now
	return mov, nil
}
