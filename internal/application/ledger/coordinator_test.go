package ledger_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
	"github.com/tu-usuario/pos-ledger/internal/domain"
	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tests del TransactionCoordinator: doble validación (rápida fuera de la
// transacción, definitiva sobre la fila bloqueada), atomicidad venta+movimiento
// y pasos best-effort que nunca revierten la operación.
// ──────────────────────────────────────────────────────────────────────────────

func saleInput(qty int) ledger.SaleInput {
	return ledger.SaleInput{
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Quantity:      qty,
		UnitPrice:     decimal.NewFromFloat(19.90),
		ActorID:       "actor-1",
	}
}

func TestRecordSaleMovement_DescuentaStock(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	ctx := context.Background()

	res, err := env.coordinator.RecordSaleMovement(ctx, saleInput(3))

	require.NoError(t, err)
	assert.Equal(t, -3, res.Movement.QuantityChange)
	assert.Equal(t, 10, res.Movement.QuantityBefore)
	assert.Equal(t, 7, res.Movement.QuantityAfter)
	assert.Equal(t, res.Sale.ID, res.Movement.CorrelationID, "el movimiento referencia la venta")
	assert.True(t, decimal.NewFromFloat(59.70).Equal(res.Sale.Total))

	pos, err := env.posRepo.Get(ctx, "prod-1", "pos-1")
	require.NoError(t, err)
	assert.Equal(t, 7, pos.Quantity)

	require.Len(t, env.events.published, 1, "se publica el evento tras el commit")
	assert.Equal(t, entity.MovementTypeSale, env.events.published[0].Type)
}

func TestRecordSaleMovement_ConFoto(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	in := saleInput(1)
	in.Photo = []byte{0xff, 0xd8}

	res, err := env.coordinator.RecordSaleMovement(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, res.Sale.ID+".jpg", res.Sale.PhotoPath)
	assert.Contains(t, env.photos.saved, res.Sale.ID)
}

func TestRecordSaleMovement_FotoFallidaNoRevierte(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	env.photos.fail = errors.New("disco lleno")
	in := saleInput(2)
	in.Photo = []byte{0x01}

	res, err := env.coordinator.RecordSaleMovement(context.Background(), in)

	require.NoError(t, err, "la venta ya quedó firme; la foto es best-effort")
	assert.Empty(t, res.Sale.PhotoPath)
	pos, _ := env.posRepo.Get(context.Background(), "prod-1", "pos-1")
	assert.Equal(t, 8, pos.Quantity)
}

func TestRecordSaleMovement_EventoFallidoNoRevierte(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	env.events.fail = errors.New("broker caído")

	_, err := env.coordinator.RecordSaleMovement(context.Background(), saleInput(1))

	require.NoError(t, err)
	pos, _ := env.posRepo.Get(context.Background(), "prod-1", "pos-1")
	assert.Equal(t, 9, pos.Quantity)
}

func TestRecordSaleMovement_StockInsuficiente(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 2)

	_, err := env.coordinator.RecordSaleMovement(context.Background(), saleInput(5))

	var insuf *domain.InsufficientStockError
	require.True(t, errors.As(err, &insuf))
	assert.Equal(t, 2, insuf.Available)

	// Nada quedó registrado.
	sum, _ := env.movRepo.SumChangesByPosition(context.Background(), "pos-prod-1-pos-1")
	assert.Zero(t, sum)
}

func TestRecordSaleMovement_NoAsignado(t *testing.T) {
	env := newTestEnv()

	_, err := env.coordinator.RecordSaleMovement(context.Background(), saleInput(1))

	assert.ErrorIs(t, err, domain.ErrNotAssigned)
}

func TestRecordSaleMovement_ActorNoAutorizado(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	env.directory.deniedActors["actor-1"] = true

	_, err := env.coordinator.RecordSaleMovement(context.Background(), saleInput(1))

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestRecordSaleMovement_MedioDePagoNoDisponible(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	env.directory.unavailablePay["pm-1"] = true
	in := saleInput(1)
	in.PaymentMethodID = "pm-1"

	_, err := env.coordinator.RecordSaleMovement(context.Background(), in)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordSaleMovement_RequestDuplicado(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	in := saleInput(1)
	in.RequestID = "req-1"

	_, err := env.coordinator.RecordSaleMovement(context.Background(), in)
	require.NoError(t, err)

	_, err = env.coordinator.RecordSaleMovement(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	pos, _ := env.posRepo.Get(context.Background(), "prod-1", "pos-1")
	assert.Equal(t, 9, pos.Quantity, "el duplicado no descuenta de nuevo")
}

func TestRecordSaleMovement_GuardCaidoNoBloqueaVentas(t *testing.T) {
	// Si Redis no responde, el guard se omite y la venta sigue su curso.
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	env.idem.fail = errors.New("redis: connection refused")
	in := saleInput(1)
	in.RequestID = "req-1"

	_, err := env.coordinator.RecordSaleMovement(context.Background(), in)

	require.NoError(t, err)
}

func TestRecordSaleMovement_VentasConcurrentes(t *testing.T) {
	// Dos ventas simultáneas de 1 unidad sobre stock 1: exactamente una gana.
	// La perdedora recibe conflicto de concurrencia (si pasó la validación
	// rápida) o stock insuficiente (si llegó después del commit de la otra).
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 1)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		failures  atomic.Int32
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.coordinator.RecordSaleMovement(context.Background(), saleInput(1))
			if err == nil {
				successes.Add(1)
				return
			}
			failures.Add(1)
			assert.True(t,
				errors.Is(err, domain.ErrConcurrentUpdate) || errors.Is(err, domain.ErrInsufficientStock),
				"la perdedora falla por concurrencia o por stock: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load(), "solo una venta puede ganar")
	assert.Equal(t, int32(1), failures.Load())

	pos, err := env.posRepo.Get(context.Background(), "prod-1", "pos-1")
	require.NoError(t, err)
	assert.Equal(t, 0, pos.Quantity, "el stock nunca queda negativo")

	count, err := env.movRepo.Count(context.Background(), repository.MovementFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "solo se registra el movimiento de la ganadora")
}

func TestRecordSaleMovement_ConflictoReportaCantidadFresca(t *testing.T) {
	// Tras consumirse stock, el error de la siguiente venta reporta la
	// cantidad vigente en ese momento, no una lectura vieja.
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 5)
	ctx := context.Background()

	_, err := env.coordinator.RecordSaleMovement(ctx, saleInput(4))
	require.NoError(t, err)

	_, err = env.coordinator.RecordSaleMovement(ctx, saleInput(3))
	var insuf *domain.InsufficientStockError
	require.True(t, errors.As(err, &insuf))
	assert.Equal(t, 1, insuf.Available, "la cantidad reportada es la fresca")
}

// ── devoluciones ─────────────────────────────────────────────────────────────

func TestRecordReturnMovement_ReponeStock(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	ctx := context.Background()

	sale, err := env.coordinator.RecordSaleMovement(ctx, saleInput(3))
	require.NoError(t, err)

	res, err := env.coordinator.RecordReturnMovement(ctx, ledger.ReturnInput{
		SaleID:        sale.Sale.ID,
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Quantity:      2,
		ActorID:       "actor-1",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Movement.QuantityChange)
	assert.Equal(t, 9, res.Movement.QuantityAfter)
	assert.Equal(t, res.Return.ID, res.Movement.CorrelationID)
}

func TestRecordReturnMovement_NoExcedeLoVendido(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	ctx := context.Background()

	sale, err := env.coordinator.RecordSaleMovement(ctx, saleInput(3))
	require.NoError(t, err)

	ret := ledger.ReturnInput{
		SaleID:        sale.Sale.ID,
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Quantity:      2,
		ActorID:       "actor-1",
	}
	_, err = env.coordinator.RecordReturnMovement(ctx, ret)
	require.NoError(t, err)

	// Segunda devolución de 2 sobre una venta de 3 con 2 ya devueltas: solo
	// queda 1 devolvible.
	_, err = env.coordinator.RecordReturnMovement(ctx, ret)
	var exceeds *domain.ReturnExceedsAvailableError
	require.True(t, errors.As(err, &exceeds))
	assert.Equal(t, 2, exceeds.Requested)
	assert.Equal(t, 1, exceeds.Remaining)
}

func TestRecordReturnMovement_VentanaVencida(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	ctx := context.Background()

	sale, err := env.coordinator.RecordSaleMovement(ctx, saleInput(1))
	require.NoError(t, err)

	// Envejece la venta más allá de la ventana de 30 días.
	env.store.mu.Lock()
	env.store.sales[sale.Sale.ID].SoldAt = time.Now().Add(-entity.ReturnWindow - time.Hour)
	env.store.mu.Unlock()

	_, err = env.coordinator.RecordReturnMovement(ctx, ledger.ReturnInput{
		SaleID:        sale.Sale.ID,
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Quantity:      1,
		ActorID:       "actor-1",
	})

	assert.ErrorIs(t, err, domain.ErrReturnWindowExpired)
}

func TestRecordReturnMovement_VentaDeOtroPar(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	env.seedPosition("prod-2", "pos-1", 10)
	ctx := context.Background()

	sale, err := env.coordinator.RecordSaleMovement(ctx, saleInput(1))
	require.NoError(t, err)

	_, err = env.coordinator.RecordReturnMovement(ctx, ledger.ReturnInput{
		SaleID:        sale.Sale.ID,
		ProductID:     "prod-2",
		PointOfSaleID: "pos-1",
		Quantity:      1,
		ActorID:       "actor-1",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordReturnMovement_VentaInexistente(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)

	_, err := env.coordinator.RecordReturnMovement(context.Background(), ledger.ReturnInput{
		SaleID:        "sale-fantasma",
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Quantity:      1,
		ActorID:       "actor-1",
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ── ajustes ──────────────────────────────────────────────────────────────────

func TestAdjustStock_PositivoYNegativo(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	ctx := context.Background()

	mov, err := env.coordinator.AdjustStock(ctx, ledger.AdjustmentInput{
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Delta:         5,
		Reason:        "reposición de bodega",
		ActorID:       "actor-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 15, mov.QuantityAfter)
	assert.Equal(t, "reposición de bodega", mov.Reason)

	mov, err = env.coordinator.AdjustStock(ctx, ledger.AdjustmentInput{
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Delta:         -7,
		Reason:        "merma por vencimiento",
		ActorID:       "actor-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 8, mov.QuantityAfter)
}

func TestAdjustStock_DeltaCero(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)

	_, err := env.coordinator.AdjustStock(context.Background(), ledger.AdjustmentInput{
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Delta:         0,
		Reason:        "nada",
		ActorID:       "actor-1",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestAdjustStock_SinMotivo(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)

	_, err := env.coordinator.AdjustStock(context.Background(), ledger.AdjustmentInput{
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Delta:         1,
		ActorID:       "actor-1",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidReason)
}

func TestAdjustStock_NegativoNoDejaNegativo(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 3)

	_, err := env.coordinator.AdjustStock(context.Background(), ledger.AdjustmentInput{
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Delta:         -5,
		Reason:        "merma",
		ActorID:       "actor-1",
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	pos, _ := env.posRepo.Get(context.Background(), "prod-1", "pos-1")
	assert.Equal(t, 3, pos.Quantity)
}

// ── importación ──────────────────────────────────────────────────────────────

func TestImportStock_AutoAsignaYSuma(t *testing.T) {
	env := newTestEnv()
	env.seedPosition("prod-1", "pos-1", 10)
	ctx := context.Background()

	report, err := env.coordinator.ImportStock(ctx, []ledger.ImportRow{
		{ProductID: "prod-1", PointOfSaleID: "pos-1", Quantity: 5},  // posición existente
		{ProductID: "prod-2", PointOfSaleID: "pos-1", Quantity: 20}, // asignación implícita
		{ProductID: "prod-3", PointOfSaleID: "pos-1", Quantity: 0},  // solo asigna, sin movimiento
	}, "actor-1")

	require.NoError(t, err)
	assert.Equal(t, 3, report.Applied)
	assert.Empty(t, report.Errors)

	pos1, _ := env.posRepo.Get(ctx, "prod-1", "pos-1")
	assert.Equal(t, 15, pos1.Quantity)
	pos2, _ := env.posRepo.Get(ctx, "prod-2", "pos-1")
	require.NotNil(t, pos2, "la fila nueva se auto-asigna")
	assert.Equal(t, 20, pos2.Quantity)
	pos3, _ := env.posRepo.Get(ctx, "prod-3", "pos-1")
	require.NotNil(t, pos3)
	assert.Equal(t, 0, pos3.Quantity)
	sum, _ := env.movRepo.SumChangesByPosition(ctx, pos3.ID)
	assert.Zero(t, sum, "cantidad 0 no genera movimiento")
}

func TestImportStock_FilaFallidaNoFrenaElResto(t *testing.T) {
	env := newTestEnv()
	env.directory.missingProducts["prod-x"] = true
	ctx := context.Background()

	report, err := env.coordinator.ImportStock(ctx, []ledger.ImportRow{
		{ProductID: "prod-1", PointOfSaleID: "pos-1", Quantity: 5},
		{ProductID: "prod-x", PointOfSaleID: "pos-1", Quantity: 5},  // producto inexistente
		{ProductID: "prod-2", PointOfSaleID: "pos-1", Quantity: -1}, // cantidad negativa
		{ProductID: "prod-3", PointOfSaleID: "pos-1", Quantity: 8},
	}, "actor-1")

	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, 1, report.Errors[0].Index)
	assert.Equal(t, 2, report.Errors[1].Index)

	pos3, _ := env.posRepo.Get(ctx, "prod-3", "pos-1")
	require.NotNil(t, pos3, "las filas posteriores al error se procesan igual")
	assert.Equal(t, 8, pos3.Quantity)
}

func TestImportStock_ReactivaPosicionInactiva(t *testing.T) {
	env := newTestEnv()
	pos := env.seedPosition("prod-1", "pos-1", 4)
	pos.IsActive = false

	report, err := env.coordinator.ImportStock(context.Background(), []ledger.ImportRow{
		{ProductID: "prod-1", PointOfSaleID: "pos-1", Quantity: 6},
	}, "actor-1")

	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	got, _ := env.posRepo.Get(context.Background(), "prod-1", "pos-1")
	assert.True(t, got.IsActive)
	assert.Equal(t, 10, got.Quantity, "la reactivación conserva la cantidad previa")
}

// ── ciclo completo ───────────────────────────────────────────────────────────

func TestCicloCompleto_LibroConsistente(t *testing.T) {
	// Asignar → importar 10 → ajustar +5 → vender 3 → devolver 2: la cantidad
	// final debe ser 14 y coincidir con la suma del historial.
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.assignments.Assign(ctx, "prod-1", "pos-1")
	require.NoError(t, err)

	report, err := env.coordinator.ImportStock(ctx, []ledger.ImportRow{
		{ProductID: "prod-1", PointOfSaleID: "pos-1", Quantity: 10},
	}, "actor-1")
	require.NoError(t, err)
	require.Equal(t, 1, report.Applied)

	_, err = env.coordinator.AdjustStock(ctx, ledger.AdjustmentInput{
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Delta:         5,
		Reason:        "reposición",
		ActorID:       "actor-1",
	})
	require.NoError(t, err)

	sale, err := env.coordinator.RecordSaleMovement(ctx, saleInput(3))
	require.NoError(t, err)

	_, err = env.coordinator.RecordReturnMovement(ctx, ledger.ReturnInput{
		SaleID:        sale.Sale.ID,
		ProductID:     "prod-1",
		PointOfSaleID: "pos-1",
		Quantity:      2,
		ActorID:       "actor-1",
	})
	require.NoError(t, err)

	rec, err := env.movements.ReconcilePosition(ctx, "prod-1", "pos-1")
	require.NoError(t, err)
	assert.Equal(t, 14, rec.Quantity)
	assert.Equal(t, 14, rec.MovementsSum, "cantidad = suma de movimientos desde 0")
	assert.True(t, rec.Consistent)
}
