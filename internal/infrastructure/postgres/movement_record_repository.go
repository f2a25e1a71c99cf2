package postgres

import (
	"context"
	"fmt"

	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
)

var _ repository.MovementRecordRepository = (*MovementRecordRepo)(nil)

// MovementRecordRepo implementación append-only sobre PostgreSQL (usable con
// pool o tx). No expone Update ni Delete: el historial es inmutable.
type MovementRecordRepo struct {
	q Querier
}

// NewMovementRecordRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRecordRepository(q Querier) *MovementRecordRepo {
	return &MovementRecordRepo{q: q}
}

const movementColumns = `id, position_id, product_id, point_of_sale_id, type,
	quantity_change, quantity_before, quantity_after, reason, correlation_id, actor_id, recorded_at`

// Create persiste el registro de movimiento.
func (r *MovementRecordRepo) Create(ctx context.Context, m *entity.MovementRecord) error {
	query := `
		INSERT INTO movement_records (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	reason := (*string)(nil)
	if m.Reason != "" {
		reason = &m.Reason
	}
	correlation := (*string)(nil)
	if m.CorrelationID != "" {
		correlation = &m.CorrelationID
	}
	_, err := r.q.Exec(ctx, query,
		m.ID, m.PositionID, m.ProductID, m.PointOfSaleID, m.Type,
		m.QuantityChange, m.QuantityBefore, m.QuantityAfter,
		reason, correlation, m.ActorID, m.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("create movement record: %w", err)
	}
	return nil
}

// buildFilter arma el WHERE dinámico compartido por List y Count.
func buildFilter(f repository.MovementFilter) (string, []any) {
	clause := ""
	var args []any
	pos := 1
	add := func(cond string, v any) {
		if clause == "" {
			clause = " WHERE "
		} else {
			clause += " AND "
		}
		clause += fmt.Sprintf(cond, pos)
		args = append(args, v)
		pos++
	}
	if f.ProductID != "" {
		add("product_id = $%d", f.ProductID)
	}
	if f.PointOfSaleID != "" {
		add("point_of_sale_id = $%d", f.PointOfSaleID)
	}
	if f.From != nil {
		add("recorded_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("recorded_at <= $%d", *f.To)
	}
	return clause, args
}

// List lista movimientos filtrados, más recientes primero.
func (r *MovementRecordRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.MovementRecord, error) {
	clause, args := buildFilter(f)
	query := `SELECT ` + movementColumns + ` FROM movement_records` + clause +
		fmt.Sprintf(" ORDER BY recorded_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movement records: %w", err)
	}
	defer rows.Close()
	var list []*entity.MovementRecord
	for rows.Next() {
		var m entity.MovementRecord
		var reason, correlation *string
		if err := rows.Scan(&m.ID, &m.PositionID, &m.ProductID, &m.PointOfSaleID, &m.Type,
			&m.QuantityChange, &m.QuantityBefore, &m.QuantityAfter,
			&reason, &correlation, &m.ActorID, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan movement record: %w", err)
		}
		if reason != nil {
			m.Reason = *reason
		}
		if correlation != nil {
			m.CorrelationID = *correlation
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}

// Count cuenta los movimientos que matchean el filtro (para paginación).
func (r *MovementRecordRepo) Count(ctx context.Context, f repository.MovementFilter) (int, error) {
	clause, args := buildFilter(f)
	var total int
	err := r.q.QueryRow(ctx, `SELECT count(*) FROM movement_records`+clause, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count movement records: %w", err)
	}
	return total, nil
}

// SumChangesByPosition suma los deltas del historial de una posición.
func (r *MovementRecordRepo) SumChangesByPosition(ctx context.Context, positionID string) (int, error) {
	var sum int
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity_change), 0) FROM movement_records WHERE position_id = $1`,
		positionID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum movement changes: %w", err)
	}
	return sum, nil
}
