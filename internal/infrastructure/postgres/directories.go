package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
)

var (
	_ ledger.ProductDirectory       = (*Directories)(nil)
	_ ledger.PointOfSaleDirectory   = (*Directories)(nil)
	_ ledger.PaymentMethodDirectory = (*Directories)(nil)
	_ ledger.ActorAuthorizer        = (*Directories)(nil)
)

// Directories consultas estrechas sobre los colaboradores externos del libro
// de stock: productos, puntos de venta, medios de pago y autorización de
// actores. Solo existencia y flags; el CRUD de esas entidades vive fuera.
type Directories struct {
	q Querier
}

// NewDirectories construye el adaptador. Pasar pool o tx (Querier).
func NewDirectories(q Querier) *Directories {
	return &Directories{q: q}
}

func (d *Directories) lookupActive(ctx context.Context, query, id string) (exists, active bool, err error) {
	err = d.q.QueryRow(ctx, query, id).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("lookup: %w", err)
	}
	return true, active, nil
}

// ProductStatus devuelve (existe, activo) del producto.
func (d *Directories) ProductStatus(ctx context.Context, productID string) (bool, bool, error) {
	return d.lookupActive(ctx, `SELECT is_active FROM products WHERE id = $1`, productID)
}

// PointOfSaleStatus devuelve (existe, activo) del punto de venta.
func (d *Directories) PointOfSaleStatus(ctx context.Context, pointOfSaleID string) (bool, bool, error) {
	return d.lookupActive(ctx, `SELECT is_active FROM points_of_sale WHERE id = $1`, pointOfSaleID)
}

// AvailableAt indica si el medio de pago está habilitado en el punto de venta.
func (d *Directories) AvailableAt(ctx context.Context, paymentMethodID, pointOfSaleID string) (bool, error) {
	var available bool
	err := d.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM point_of_sale_payment_methods
			WHERE payment_method_id = $1 AND point_of_sale_id = $2 AND is_enabled
		)`, paymentMethodID, pointOfSaleID).Scan(&available)
	if err != nil {
		return false, fmt.Errorf("payment method availability: %w", err)
	}
	return available, nil
}

// CanOperateAt indica si el actor está asignado y habilitado en el punto de venta.
func (d *Directories) CanOperateAt(ctx context.Context, actorID, pointOfSaleID string) (bool, error) {
	var ok bool
	err := d.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM actor_assignments
			WHERE actor_id = $1 AND point_of_sale_id = $2 AND is_enabled
		)`, actorID, pointOfSaleID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("actor authorization: %w", err)
	}
	return ok, nil
}
