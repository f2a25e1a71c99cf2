package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
)

// Ensure TxRunner implements ledger.TxRunner.
var _ ledger.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL. Los
// repositorios que recibe el callback van atados a esa tx, así la
// re-validación y la mutación de cantidad comparten la misma fila bloqueada.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace
// Commit o Rollback. Un error del callback revierte todo: registro de negocio
// y movimiento nunca existen el uno sin el otro.
func (r *TxRunner) Run(ctx context.Context, fn func(
	posRepo repository.StockPositionRepository,
	movRepo repository.MovementRecordRepository,
	saleRepo repository.SaleRepository,
	returnRepo repository.SaleReturnRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	posRepo := NewStockPositionRepository(tx)
	movRepo := NewMovementRecordRepository(tx)
	saleRepo := NewSaleRepository(tx)
	returnRepo := NewSaleReturnRepository(tx)

	if err := fn(posRepo, movRepo, saleRepo, returnRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
