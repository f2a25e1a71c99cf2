package ledger

import (
	"context"
	"time"

	"github.com/tu-usuario/pos-ledger/internal/domain"
	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
)

// Límites de paginación del historial de movimientos.
const (
	defaultMovementPageSize = 20
	maxMovementPageSize     = 50
)

// ListMovementsInput filtros del historial. Product/PointOfSale/fechas opcionales.
type ListMovementsInput struct {
	ProductID     string
	PointOfSaleID string
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
}

// MovementPage página del historial de movimientos.
type MovementPage struct {
	Items    []*entity.MovementRecord
	Total    int
	Page     int
	PageSize int
}

// MovementQuery consultas de solo lectura sobre el historial.
type MovementQuery struct {
	movRepo repository.MovementRecordRepository
	posRepo repository.StockPositionRepository
}

// NewMovementQuery construye el query service.
func NewMovementQuery(movRepo repository.MovementRecordRepository, posRepo repository.StockPositionRepository) *MovementQuery {
	return &MovementQuery{movRepo: movRepo, posRepo: posRepo}
}

// ListMovements lista movimientos con filtros y paginación (pageSize máx. 50).
func (q *MovementQuery) ListMovements(ctx context.Context, in ListMovementsInput) (*MovementPage, error) {
	if in.From != nil && in.To != nil && in.To.Before(*in.From) {
		return nil, domain.ErrInvalidInput
	}
	if in.Page <= 0 {
		in.Page = 1
	}
	if in.PageSize <= 0 {
		in.PageSize = defaultMovementPageSize
	}
	if in.PageSize > maxMovementPageSize {
		in.PageSize = maxMovementPageSize
	}
	filter := repository.MovementFilter{
		ProductID:     in.ProductID,
		PointOfSaleID: in.PointOfSaleID,
		From:          in.From,
		To:            in.To,
		Limit:         in.PageSize,
		Offset:        (in.Page - 1) * in.PageSize,
	}
	items, err := q.movRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := q.movRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &MovementPage{Items: items, Total: total, Page: in.Page, PageSize: in.PageSize}, nil
}

// ReconciliationResult comparación entre la cantidad materializada de una
// posición y la suma de su historial.
type ReconciliationResult struct {
	PositionID   string
	Quantity     int
	MovementsSum int
	Consistent   bool
}

// ReconcilePosition verifica el invariante del libro: la cantidad actual debe
// ser exactamente la suma de los quantity_change de su historial, partiendo de 0.
func (q *MovementQuery) ReconcilePosition(ctx context.Context, productID, pointOfSaleID string) (*ReconciliationResult, error) {
	pos, err := q.posRepo.Get(ctx, productID, pointOfSaleID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, domain.ErrNotFound
	}
	sum, err := q.movRepo.SumChangesByPosition(ctx, pos.ID)
	if err != nil {
		return nil, err
	}
	return &ReconciliationResult{
		PositionID:   pos.ID,
		Quantity:     pos.Quantity,
		MovementsSum: sum,
		Consistent:   pos.Quantity == sum,
	}, nil
}
