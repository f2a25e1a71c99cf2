package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/pos-ledger/internal/domain"
	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
	"github.com/tu-usuario/pos-ledger/pkg/logger"
)

// AssignmentManager gobierna el ciclo de vida de las posiciones de stock:
// si un par (producto, punto de venta) puede llevar stock o no.
// Las filas nunca se borran; solo pasan de activas a inactivas y viceversa.
type AssignmentManager struct {
	txRunner     TxRunner
	posRepo      repository.StockPositionRepository
	products     ProductDirectory
	pointsOfSale PointOfSaleDirectory
	log          *logger.Logger
}

// NewAssignmentManager construye el manager.
func NewAssignmentManager(
	txRunner TxRunner,
	posRepo repository.StockPositionRepository,
	products ProductDirectory,
	pointsOfSale PointOfSaleDirectory,
	log *logger.Logger,
) *AssignmentManager {
	return &AssignmentManager{
		txRunner:     txRunner,
		posRepo:      posRepo,
		products:     products,
		pointsOfSale: pointsOfSale,
		log:          log,
	}
}

// Assign habilita el par (producto, punto de venta) para llevar stock.
// Sin posición previa crea una en cantidad 0; una posición inactiva se reactiva
// conservando su cantidad (el historial no se descarta); una activa falla con
// ErrAlreadyAssigned.
func (am *AssignmentManager) Assign(ctx context.Context, productID, pointOfSaleID string) (*entity.StockPosition, error) {
	if productID == "" || pointOfSaleID == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := am.checkCollaborators(ctx, productID, pointOfSaleID); err != nil {
		return nil, err
	}

	var result *entity.StockPosition
	err := am.txRunner.Run(ctx, func(
		posRepo repository.StockPositionRepository,
		_ repository.MovementRecordRepository,
		_ repository.SaleRepository,
		_ repository.SaleReturnRepository,
	) error {
		pos, err := posRepo.GetForUpdate(ctx, productID, pointOfSaleID)
		if err != nil {
			return err
		}
		now := time.Now()
		switch {
		case pos == nil:
			pos = &entity.StockPosition{
				ID:            uuid.New().String(),
				ProductID:     productID,
				PointOfSaleID: pointOfSaleID,
				Quantity:      0,
				IsActive:      true,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := posRepo.Create(ctx, pos); err != nil {
				return err
			}
		case pos.IsActive:
			return domain.ErrAlreadyAssigned
		default:
			// Reactivación: la cantidad se conserva, no se resetea.
			if err := posRepo.SetActive(ctx, pos.ID, true, now); err != nil {
				return err
			}
			pos.IsActive = true
			pos.UpdatedAt = now
		}
		result = pos
		return nil
	})
	if err != nil {
		return nil, err
	}
	am.log.Info().
		Str("product_id", productID).
		Str("point_of_sale_id", pointOfSaleID).
		Int("quantity", result.Quantity).
		Msg("posición asignada")
	return result, nil
}

// Unassign desactiva la posición. Exige que exista, esté activa y tenga
// cantidad exactamente 0; con stock pendiente falla con NonZeroStockError
// reportando la cantidad actual. La fila y su historial siguen consultables.
func (am *AssignmentManager) Unassign(ctx context.Context, productID, pointOfSaleID string) error {
	if productID == "" || pointOfSaleID == "" {
		return domain.ErrInvalidInput
	}
	err := am.txRunner.Run(ctx, func(
		posRepo repository.StockPositionRepository,
		_ repository.MovementRecordRepository,
		_ repository.SaleRepository,
		_ repository.SaleReturnRepository,
	) error {
		pos, err := posRepo.GetForUpdate(ctx, productID, pointOfSaleID)
		if err != nil {
			return err
		}
		if pos == nil || !pos.IsActive {
			return domain.ErrNotAssigned
		}
		if pos.Quantity != 0 {
			return &domain.NonZeroStockError{Quantity: pos.Quantity}
		}
		return posRepo.SetActive(ctx, pos.ID, false, time.Now())
	})
	if err != nil {
		return err
	}
	am.log.Info().
		Str("product_id", productID).
		Str("point_of_sale_id", pointOfSaleID).
		Msg("posición desasignada")
	return nil
}

// GetPosition devuelve la posición del par, activa o no.
func (am *AssignmentManager) GetPosition(ctx context.Context, productID, pointOfSaleID string) (*entity.StockPosition, error) {
	pos, err := am.posRepo.Get(ctx, productID, pointOfSaleID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, domain.ErrNotFound
	}
	return pos, nil
}

// ListPositionsForPointOfSale lista las posiciones de un punto de venta.
func (am *AssignmentManager) ListPositionsForPointOfSale(ctx context.Context, pointOfSaleID string, limit, offset int) ([]*entity.StockPosition, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return am.posRepo.ListByPointOfSale(ctx, pointOfSaleID, limit, offset)
}

// ListPositionsForProduct lista las posiciones de un producto en todos los puntos de venta.
func (am *AssignmentManager) ListPositionsForProduct(ctx context.Context, productID string) ([]*entity.StockPosition, error) {
	return am.posRepo.ListByProduct(ctx, productID)
}

// checkCollaborators valida existencia y estado de producto y punto de venta
// contra los directorios externos (fuera de la transacción).
func (am *AssignmentManager) checkCollaborators(ctx context.Context, productID, pointOfSaleID string) error {
	exists, active, err := am.products.ProductStatus(ctx, productID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	if !active {
		return domain.ErrInvalidInput
	}
	exists, active, err = am.pointsOfSale.PointOfSaleStatus(ctx, pointOfSaleID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	if !active {
		return domain.ErrInvalidInput
	}
	return nil
}
