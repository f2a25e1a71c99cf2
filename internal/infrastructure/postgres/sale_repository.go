package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/pos-ledger/internal/domain"
	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)
var _ repository.SaleReturnRepository = (*SaleReturnRepo)(nil)

// SaleRepo implementación de SaleRepository sobre PostgreSQL (usable con pool o tx).
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// Create persiste la venta.
func (r *SaleRepo) Create(ctx context.Context, s *entity.Sale) error {
	query := `
		INSERT INTO sales (id, product_id, point_of_sale_id, quantity, unit_price, total, payment_method_id, sold_by, sold_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	paymentMethod := (*string)(nil)
	if s.PaymentMethodID != "" {
		paymentMethod = &s.PaymentMethodID
	}
	_, err := r.q.Exec(ctx, query,
		s.ID, s.ProductID, s.PointOfSaleID, s.Quantity, s.UnitPrice, s.Total,
		paymentMethod, s.SoldBy, s.SoldAt,
	)
	if err != nil {
		return fmt.Errorf("create sale: %w", err)
	}
	return nil
}

// GetByID obtiene una venta; (nil, nil) si no existe.
func (r *SaleRepo) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	query := `
		SELECT id, product_id, point_of_sale_id, quantity, unit_price, total, payment_method_id, photo_path, sold_by, sold_at
		FROM sales WHERE id = $1`
	var s entity.Sale
	var paymentMethod, photoPath *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.ProductID, &s.PointOfSaleID, &s.Quantity, &s.UnitPrice, &s.Total,
		&paymentMethod, &photoPath, &s.SoldBy, &s.SoldAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	if paymentMethod != nil {
		s.PaymentMethodID = *paymentMethod
	}
	if photoPath != nil {
		s.PhotoPath = *photoPath
	}
	return &s, nil
}

// UpdatePhotoPath anota la ruta de la foto subida tras el commit (best-effort).
func (r *SaleRepo) UpdatePhotoPath(ctx context.Context, id, path string) error {
	tag, err := r.q.Exec(ctx, `UPDATE sales SET photo_path = $2 WHERE id = $1`, id, path)
	if err != nil {
		return fmt.Errorf("update sale photo path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaleReturnRepo implementación de SaleReturnRepository sobre PostgreSQL.
type SaleReturnRepo struct {
	q Querier
}

// NewSaleReturnRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSaleReturnRepository(q Querier) *SaleReturnRepo {
	return &SaleReturnRepo{q: q}
}

// Create persiste la devolución.
func (r *SaleReturnRepo) Create(ctx context.Context, ret *entity.SaleReturn) error {
	query := `
		INSERT INTO sale_returns (id, sale_id, product_id, point_of_sale_id, quantity, returned_by, returned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		ret.ID, ret.SaleID, ret.ProductID, ret.PointOfSaleID, ret.Quantity, ret.ReturnedBy, ret.ReturnedAt,
	)
	if err != nil {
		return fmt.Errorf("create sale return: %w", err)
	}
	return nil
}

// TotalReturnedBySale suma las cantidades ya devueltas contra una venta.
func (r *SaleReturnRepo) TotalReturnedBySale(ctx context.Context, saleID string) (int, error) {
	var total int
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM sale_returns WHERE sale_id = $1`,
		saleID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total returned by sale: %w", err)
	}
	return total, nil
}
