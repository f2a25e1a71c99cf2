package ledger

import (
	"context"
	"time"

	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando
// repositorios atados a esa tx. Garantiza atomicidad para el libro de stock:
// o se aplican todos los cambios del callback o ninguno.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		posRepo repository.StockPositionRepository,
		movRepo repository.MovementRecordRepository,
		saleRepo repository.SaleRepository,
		returnRepo repository.SaleReturnRepository,
	) error) error
}

// ProductDirectory consulta de existencia/estado de productos (colaborador externo).
type ProductDirectory interface {
	// ProductStatus devuelve (existe, activo). (false, false, nil) si no existe.
	ProductStatus(ctx context.Context, productID string) (exists, active bool, err error)
}

// PointOfSaleDirectory consulta de existencia/estado de puntos de venta.
type PointOfSaleDirectory interface {
	PointOfSaleStatus(ctx context.Context, pointOfSaleID string) (exists, active bool, err error)
}

// PaymentMethodDirectory disponibilidad de un medio de pago en un punto de venta.
type PaymentMethodDirectory interface {
	AvailableAt(ctx context.Context, paymentMethodID, pointOfSaleID string) (bool, error)
}

// ActorAuthorizer indica si un actor puede operar en un punto de venta.
type ActorAuthorizer interface {
	CanOperateAt(ctx context.Context, actorID, pointOfSaleID string) (bool, error)
}

// PhotoStore almacena la foto asociada a una venta o devolución. Se invoca fuera
// de la sección transaccional: su fallo se loguea y nunca revierte la operación.
type PhotoStore interface {
	Save(ctx context.Context, name string, data []byte) (path string, err error)
}

// IdempotencyGuard reserva una clave de request; devuelve false si ya estaba
// tomada (request duplicado). Implementación típica: SETNX en Redis.
type IdempotencyGuard interface {
	Acquire(ctx context.Context, key string) (bool, error)
}

// MovementRecordedEvent evento emitido (best-effort) tras confirmar un movimiento.
type MovementRecordedEvent struct {
	MovementID     string    `json:"movement_id"`
	PositionID     string    `json:"position_id"`
	ProductID      string    `json:"product_id"`
	PointOfSaleID  string    `json:"point_of_sale_id"`
	Type           string    `json:"type"`
	QuantityChange int       `json:"quantity_change"`
	QuantityAfter  int       `json:"quantity_after"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	ActorID        string    `json:"actor_id"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// MovementEventPublisher publica eventos de movimiento confirmados (best-effort,
// fuera de la transacción).
type MovementEventPublisher interface {
	PublishMovementRecorded(ctx context.Context, event MovementRecordedEvent) error
}
