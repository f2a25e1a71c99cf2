package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/pos-ledger/internal/domain"
	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
)

var _ repository.StockPositionRepository = (*StockPositionRepo)(nil)

// StockPositionRepo implementación de StockPositionRepository sobre PostgreSQL
// (usable con pool o tx).
type StockPositionRepo struct {
	q Querier
}

// NewStockPositionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockPositionRepository(q Querier) *StockPositionRepo {
	return &StockPositionRepo{q: q}
}

const positionColumns = `id, product_id, point_of_sale_id, quantity, is_active, created_at, updated_at`

// Get obtiene la posición del par (producto, punto de venta); (nil, nil) si no existe.
func (r *StockPositionRepo) Get(ctx context.Context, productID, pointOfSaleID string) (*entity.StockPosition, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM stock_positions WHERE product_id = $1 AND point_of_sale_id = $2`
	return r.scanOne(ctx, query, productID, pointOfSaleID)
}

// GetForUpdate obtiene la posición y bloquea la fila (SELECT FOR UPDATE).
// Un segundo escritor concurrente queda bloqueado hasta el commit del primero.
func (r *StockPositionRepo) GetForUpdate(ctx context.Context, productID, pointOfSaleID string) (*entity.StockPosition, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM stock_positions WHERE product_id = $1 AND point_of_sale_id = $2
		FOR UPDATE`
	return r.scanOne(ctx, query, productID, pointOfSaleID)
}

func (r *StockPositionRepo) scanOne(ctx context.Context, query string, args ...any) (*entity.StockPosition, error) {
	var p entity.StockPosition
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.ProductID, &p.PointOfSaleID, &p.Quantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock position: %w", err)
	}
	return &p, nil
}

// Create inserta la posición. La constraint única (product_id, point_of_sale_id)
// convierte una carrera de doble asignación en ErrAlreadyAssigned.
func (r *StockPositionRepo) Create(ctx context.Context, p *entity.StockPosition) error {
	query := `
		INSERT INTO stock_positions (id, product_id, point_of_sale_id, quantity, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.ProductID, p.PointOfSaleID, p.Quantity, p.IsActive, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyAssigned
		}
		return fmt.Errorf("create stock position: %w", err)
	}
	return nil
}

// UpdateQuantity persiste la cantidad calculada por el MovementRecorder.
func (r *StockPositionRepo) UpdateQuantity(ctx context.Context, id string, quantity int, updatedAt time.Time) error {
	query := `UPDATE stock_positions SET quantity = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, id, quantity, updatedAt)
	if err != nil {
		return fmt.Errorf("update stock position quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetActive activa o desactiva la posición sin tocar la cantidad.
func (r *StockPositionRepo) SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	query := `UPDATE stock_positions SET is_active = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, id, active, updatedAt)
	if err != nil {
		return fmt.Errorf("set stock position active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByPointOfSale lista las posiciones de un punto de venta (activas e inactivas).
func (r *StockPositionRepo) ListByPointOfSale(ctx context.Context, pointOfSaleID string, limit, offset int) ([]*entity.StockPosition, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM stock_positions WHERE point_of_sale_id = $1
		ORDER BY updated_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, pointOfSaleID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list positions by point of sale: %w", err)
	}
	return scanPositions(rows)
}

// ListByProduct lista las posiciones de un producto en todos los puntos de venta.
func (r *StockPositionRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.StockPosition, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM stock_positions WHERE product_id = $1
		ORDER BY updated_at DESC`
	rows, err := r.q.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list positions by product: %w", err)
	}
	return scanPositions(rows)
}

func scanPositions(rows pgx.Rows) ([]*entity.StockPosition, error) {
	defer rows.Close()
	var list []*entity.StockPosition
	for rows.Next() {
		var p entity.StockPosition
		if err := rows.Scan(&p.ID, &p.ProductID, &p.PointOfSaleID, &p.Quantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock position: %w", err)
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}
