package repository

import (
	"context"
	"time"

	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
)

// MovementFilter filtros para listar movimientos. Campos vacíos no filtran.
type MovementFilter struct {
	ProductID     string
	PointOfSaleID string
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// MovementRecordRepository persistencia append-only del historial de movimientos.
// No hay Update ni Delete: los registros son inmutables.
type MovementRecordRepository interface {
	Create(ctx context.Context, m *entity.MovementRecord) error
	List(ctx context.Context, f MovementFilter) ([]*entity.MovementRecord, error)
	Count(ctx context.Context, f MovementFilter) (int, error)
	// SumChangesByPosition suma los quantity_change de una posición; debe
	// coincidir con la cantidad actual de la posición (reconciliación).
	SumChangesByPosition(ctx context.Context, positionID string) (int, error)
}
