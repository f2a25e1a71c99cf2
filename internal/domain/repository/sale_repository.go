package repository

import (
	"context"

	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
)

// SaleRepository persistencia de ventas. GetByID devuelve (nil, nil) si no existe.
type SaleRepository interface {
	Create(ctx context.Context, s *entity.Sale) error
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	// UpdatePhotoPath se invoca fuera de la transacción, tras subir la foto (best-effort).
	UpdatePhotoPath(ctx context.Context, id, path string) error
}

// SaleReturnRepository persistencia de devoluciones.
type SaleReturnRepository interface {
	Create(ctx context.Context, r *entity.SaleReturn) error
	// TotalReturnedBySale suma las cantidades ya devueltas contra una venta.
	TotalReturnedBySale(ctx context.Context, saleID string) (int, error)
}
