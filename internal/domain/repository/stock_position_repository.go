package repository

import (
	"context"
	"time"

	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
)

// StockPositionRepository acceso a posiciones de stock (producto × punto de venta).
// Get/GetForUpdate devuelven (nil, nil) si la posición no existe.
type StockPositionRepository interface {
	Get(ctx context.Context, productID, pointOfSaleID string) (*entity.StockPosition, error)
	// GetForUpdate bloquea la fila (SELECT ... FOR UPDATE); solo tiene sentido
	// dentro de una transacción.
	GetForUpdate(ctx context.Context, productID, pointOfSaleID string) (*entity.StockPosition, error)
	Create(ctx context.Context, p *entity.StockPosition) error
	// UpdateQuantity persiste la nueva cantidad. Solo el MovementRecorder la invoca.
	UpdateQuantity(ctx context.Context, id string, quantity int, updatedAt time.Time) error
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
	ListByPointOfSale(ctx context.Context, pointOfSaleID string, limit, offset int) ([]*entity.StockPosition, error)
	ListByProduct(ctx context.Context, productID string) ([]*entity.StockPosition, error)
}
