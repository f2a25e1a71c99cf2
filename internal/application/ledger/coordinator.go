package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/pos-ledger/internal/domain"
	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
	"github.com/tu-usuario/pos-ledger/internal/domain/repository"
	"github.com/tu-usuario/pos-ledger/pkg/logger"
)

// TransactionCoordinator orquesta los flujos de negocio que mutan stock
// (venta, devolución, ajuste, importación) como unidades atómicas, con doble
// validación: un pase rápido fuera de la transacción y una re-validación sobre
// la fila bloqueada inmediatamente antes de mutar. Los pasos best-effort
// (foto, evento) corren después del commit y su fallo nunca revierte nada.
type TransactionCoordinator struct {
	txRunner     TxRunner
	posRepo      repository.StockPositionRepository
	saleRepo     repository.SaleRepository
	returnRepo   repository.SaleReturnRepository
	validator    *StockValidator
	recorder     *MovementRecorder
	products     ProductDirectory
	pointsOfSale PointOfSaleDirectory
	payments     PaymentMethodDirectory
	authorizer   ActorAuthorizer
	photos       PhotoStore             // opcional (nil = sin fotos)
	idem         IdempotencyGuard       // opcional (nil = sin guard)
	events       MovementEventPublisher // opcional (nil = sin eventos)
	log          *logger.Logger
}

// CoordinatorDeps dependencias del coordinador. Photos, Idem y Events son opcionales.
type CoordinatorDeps struct {
	TxRunner     TxRunner
	PositionRepo repository.StockPositionRepository
	SaleRepo     repository.SaleRepository
	ReturnRepo   repository.SaleReturnRepository
	Validator    *StockValidator
	Recorder     *MovementRecorder
	Products     ProductDirectory
	PointsOfSale PointOfSaleDirectory
	Payments     PaymentMethodDirectory
	Authorizer   ActorAuthorizer
	Photos       PhotoStore
	Idem         IdempotencyGuard
	Events       MovementEventPublisher
	Log          *logger.Logger
}

// NewTransactionCoordinator construye el coordinador.
func NewTransactionCoordinator(d CoordinatorDeps) *TransactionCoordinator {
	return &TransactionCoordinator{
		txRunner:     d.TxRunner,
		posRepo:      d.PositionRepo,
		saleRepo:     d.SaleRepo,
		returnRepo:   d.ReturnRepo,
		validator:    d.Validator,
		recorder:     d.Recorder,
		products:     d.Products,
		pointsOfSale: d.PointsOfSale,
		payments:     d.Payments,
		authorizer:   d.Authorizer,
		photos:       d.Photos,
		idem:         d.Idem,
		events:       d.Events,
		log:          d.Log,
	}
}

// SaleInput entrada para registrar una venta.
type SaleInput struct {
	ProductID       string
	PointOfSaleID   string
	PaymentMethodID string
	Quantity        int
	UnitPrice       decimal.Decimal
	ActorID         string
	RequestID       string // clave de idempotencia opcional
	Photo           []byte // foto opcional, se guarda best-effort tras el commit
}

// SaleResult venta confirmada más el movimiento y la alerta de stock bajo.
type SaleResult struct {
	Sale       *entity.Sale
	Movement   *entity.MovementRecord
	IsLowStock bool
	Warning    string
}

// RecordSaleMovement registra una venta: valida fuera de la transacción,
// re-valida sobre la fila bloqueada y aplica venta + movimiento en una sola
// transacción con correlation id = id de la venta.
func (tc *TransactionCoordinator) RecordSaleMovement(ctx context.Context, in SaleInput) (*SaleResult, error) {
	if in.ProductID == "" || in.PointOfSaleID == "" || in.ActorID == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if in.UnitPrice.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	if err := tc.acquireIdempotency(ctx, "sale", in.RequestID); err != nil {
		return nil, err
	}
	if err := tc.authorize(ctx, in.ActorID, in.PointOfSaleID); err != nil {
		return nil, err
	}
	if in.PaymentMethodID != "" {
		ok, err := tc.payments.AvailableAt(ctx, in.PaymentMethodID, in.PointOfSaleID)
		if err != nil {
			return nil, fmt.Errorf("consultar medio de pago: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("medio de pago no disponible en el punto de venta: %w", domain.ErrInvalidInput)
		}
	}
	// Pase 1: validación rápida fuera de la transacción (no retiene recursos).
	if _, err := tc.validator.ValidateAvailability(ctx, in.ProductID, in.PointOfSaleID, in.Quantity); err != nil {
		return nil, err
	}

	now := time.Now()
	sale := &entity.Sale{
		ID:              uuid.New().String(),
		ProductID:       in.ProductID,
		PointOfSaleID:   in.PointOfSaleID,
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice,
		Total:           in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		PaymentMethodID: in.PaymentMethodID,
		SoldBy:          in.ActorID,
		SoldAt:          now,
	}

	var (
		mov   *entity.MovementRecord
		avail *AvailabilityResult
	)
	err := tc.txRunner.Run(ctx, func(
		posRepo repository.StockPositionRepository,
		movRepo repository.MovementRecordRepository,
		saleRepo repository.SaleRepository,
		_ repository.SaleReturnRepository,
	) error {
		pos, err := posRepo.GetForUpdate(ctx, in.ProductID, in.PointOfSaleID)
		if err != nil {
			return err
		}
		// Pase 2: re-validación sobre la fila bloqueada. Si un escritor
		// concurrente consumió stock, se aborta con la cantidad fresca.
		avail, err = checkAvailability(pos, in.Quantity)
		if err != nil {
			return asConcurrency(err)
		}
		if err := saleRepo.Create(ctx, sale); err != nil {
			return fmt.Errorf("crear venta: %w", err)
		}
		mov, err = tc.recorder.Append(ctx, posRepo, movRepo, pos, AppendInput{
			Type:          entity.MovementTypeSale,
			Delta:         -in.Quantity,
			ActorID:       in.ActorID,
			CorrelationID: sale.ID,
			Now:           now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	tc.attachPhoto(ctx, sale, in.Photo)
	tc.publishMovement(ctx, mov)
	tc.log.Info().
		Str("sale_id", sale.ID).
		Str("product_id", in.ProductID).
		Str("point_of_sale_id", in.PointOfSaleID).
		Int("quantity", in.Quantity).
		Int("stock_after", mov.QuantityAfter).
		Msg("venta registrada")

	return &SaleResult{Sale: sale, Movement: mov, IsLowStock: avail.IsLowStock, Warning: avail.Warning}, nil
}

// ReturnInput entrada para registrar una devolución contra una venta.
type ReturnInput struct {
	SaleID        string
	ProductID     string
	PointOfSaleID string
	Quantity      int
	ActorID       string
	RequestID     string
}

// ReturnResult devolución confirmada más su movimiento.
type ReturnResult struct {
	Return   *entity.SaleReturn
	Movement *entity.MovementRecord
}

// RecordReturnMovement registra una devolución: la venta debe ser del mismo
// producto y punto de venta, estar dentro de la ventana de 30 días y la
// cantidad no puede superar lo aún devolvible (cantidad original menos
// devoluciones previas).
func (tc *TransactionCoordinator) RecordReturnMovement(ctx context.Context, in ReturnInput) (*ReturnResult, error) {
	if in.SaleID == "" || in.ProductID == "" || in.PointOfSaleID == "" || in.ActorID == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if err := tc.acquireIdempotency(ctx, "return", in.RequestID); err != nil {
		return nil, err
	}
	if err := tc.authorize(ctx, in.ActorID, in.PointOfSaleID); err != nil {
		return nil, err
	}

	now := time.Now()
	// Pase 1: venta, ventana y cupo devolvible, fuera de la transacción.
	sale, err := tc.saleRepo.GetByID(ctx, in.SaleID)
	if err != nil {
		return nil, err
	}
	if err := tc.checkReturnable(sale, in, now); err != nil {
		return nil, err
	}
	returned, err := tc.returnRepo.TotalReturnedBySale(ctx, in.SaleID)
	if err != nil {
		return nil, err
	}
	if remaining := sale.Quantity - returned; in.Quantity > remaining {
		return nil, &domain.ReturnExceedsAvailableError{Requested: in.Quantity, Remaining: remaining}
	}

	ret := &entity.SaleReturn{
		ID:            uuid.New().String(),
		SaleID:        in.SaleID,
		ProductID:     in.ProductID,
		PointOfSaleID: in.PointOfSaleID,
		Quantity:      in.Quantity,
		ReturnedBy:    in.ActorID,
		ReturnedAt:    now,
	}

	var mov *entity.MovementRecord
	err = tc.txRunner.Run(ctx, func(
		posRepo repository.StockPositionRepository,
		movRepo repository.MovementRecordRepository,
		_ repository.SaleRepository,
		returnRepo repository.SaleReturnRepository,
	) error {
		pos, err := posRepo.GetForUpdate(ctx, in.ProductID, in.PointOfSaleID)
		if err != nil {
			return err
		}
		if pos == nil || !pos.IsActive {
			return domain.ErrNotAssigned
		}
		// Pase 2: el cupo devolvible se recalcula dentro de la transacción por
		// si otra devolución concurrente lo consumió.
		returned, err := returnRepo.TotalReturnedBySale(ctx, in.SaleID)
		if err != nil {
			return err
		}
		if remaining := sale.Quantity - returned; in.Quantity > remaining {
			return &domain.ReturnExceedsAvailableError{Requested: in.Quantity, Remaining: remaining}
		}
		if err := returnRepo.Create(ctx, ret); err != nil {
			return fmt.Errorf("crear devolución: %w", err)
		}
		mov, err = tc.recorder.Append(ctx, posRepo, movRepo, pos, AppendInput{
			Type:          entity.MovementTypeReturn,
			Delta:         in.Quantity,
			ActorID:       in.ActorID,
			CorrelationID: ret.ID,
			Now:           now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	tc.publishMovement(ctx, mov)
	tc.log.Info().
		Str("return_id", ret.ID).
		Str("sale_id", in.SaleID).
		Int("quantity", in.Quantity).
		Int("stock_after", mov.QuantityAfter).
		Msg("devolución registrada")

	return &ReturnResult{Return: ret, Movement: mov}, nil
}

// AdjustmentInput entrada para un ajuste manual de stock.
type AdjustmentInput struct {
	ProductID     string
	PointOfSaleID string
	Delta         int    // con signo, distinto de cero
	Reason        string // obligatorio, <= 500 caracteres
	ActorID       string
}

// AdjustStock aplica un ajuste manual con motivo obligatorio. Un delta negativo
// se valida como una salida (no puede dejar la posición en negativo).
func (tc *TransactionCoordinator) AdjustStock(ctx context.Context, in AdjustmentInput) (*entity.MovementRecord, error) {
	if in.ProductID == "" || in.PointOfSaleID == "" || in.ActorID == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.Delta == 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if in.Reason == "" || len(in.Reason) > maxReasonLength {
		return nil, domain.ErrInvalidReason
	}
	if err := tc.authorize(ctx, in.ActorID, in.PointOfSaleID); err != nil {
		return nil, err
	}
	// Pase 1 fuera de la transacción.
	if in.Delta < 0 {
		if _, err := tc.validator.ValidateAvailability(ctx, in.ProductID, in.PointOfSaleID, -in.Delta); err != nil {
			return nil, err
		}
	} else {
		pos, err := tc.posRepo.Get(ctx, in.ProductID, in.PointOfSaleID)
		if err != nil {
			return nil, err
		}
		if pos == nil || !pos.IsActive {
			return nil, domain.ErrNotAssigned
		}
	}

	now := time.Now()
	var mov *entity.MovementRecord
	err := tc.txRunner.Run(ctx, func(
		posRepo repository.StockPositionRepository,
		movRepo repository.MovementRecordRepository,
		_ repository.SaleRepository,
		_ repository.SaleReturnRepository,
	) error {
		pos, err := posRepo.GetForUpdate(ctx, in.ProductID, in.PointOfSaleID)
		if err != nil {
			return err
		}
		if pos == nil || !pos.IsActive {
			return domain.ErrNotAssigned
		}
		if in.Delta < 0 {
			if _, err := checkAvailability(pos, -in.Delta); err != nil {
				return asConcurrency(err)
			}
		}
		mov, err = tc.recorder.Append(ctx, posRepo, movRepo, pos, AppendInput{
			Type:    entity.MovementTypeAdjustment,
			Delta:   in.Delta,
			ActorID: in.ActorID,
			Reason:  in.Reason,
			Now:     now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	tc.publishMovement(ctx, mov)
	tc.log.Info().
		Str("product_id", in.ProductID).
		Str("point_of_sale_id", in.PointOfSaleID).
		Int("delta", in.Delta).
		Int("stock_after", mov.QuantityAfter).
		Msg("ajuste registrado")
	return mov, nil
}

// ImportRow fila ya parseada de una carga masiva (el parseo del archivo queda
// fuera del núcleo).
type ImportRow struct {
	ProductID     string
	PointOfSaleID string
	Quantity      int // >= 0
}

// ImportRowError error de una fila puntual del import.
type ImportRowError struct {
	Index int
	Err   string
}

// ImportReport resumen de una carga masiva.
type ImportReport struct {
	Applied int
	Errors  []ImportRowError
}

// ImportStock procesa una carga masiva. Cada fila es una unidad atómica propia:
// auto-asigna la posición si no existe (variante implícita de Assign, mismas
// garantías), reactiva una inactiva conservando cantidad y registra un
// movimiento IMPORT con delta >= 0. Una fila fallida no revierte las demás.
func (tc *TransactionCoordinator) ImportStock(ctx context.Context, rows []ImportRow, actorID string) (*ImportReport, error) {
	if actorID == "" {
		return nil, domain.ErrInvalidInput
	}
	report := &ImportReport{}
	for i, row := range rows {
		if err := tc.importRow(ctx, row, actorID); err != nil {
			report.Errors = append(report.Errors, ImportRowError{Index: i, Err: err.Error()})
			continue
		}
		report.Applied++
	}
	tc.log.Info().
		Int("rows", len(rows)).
		Int("applied", report.Applied).
		Int("failed", len(report.Errors)).
		Msg("importación procesada")
	return report, nil
}

func (tc *TransactionCoordinator) importRow(ctx context.Context, row ImportRow, actorID string) error {
	if row.ProductID == "" || row.PointOfSaleID == "" {
		return domain.ErrInvalidInput
	}
	if row.Quantity < 0 {
		return domain.ErrInvalidQuantity
	}
	exists, active, err := tc.products.ProductStatus(ctx, row.ProductID)
	if err != nil {
		return err
	}
	if !exists || !active {
		return domain.ErrNotFound
	}
	exists, active, err = tc.pointsOfSale.PointOfSaleStatus(ctx, row.PointOfSaleID)
	if err != nil {
		return err
	}
	if !exists || !active {
		return domain.ErrNotFound
	}

	now := time.Now()
	var mov *entity.MovementRecord
	err = tc.txRunner.Run(ctx, func(
		posRepo repository.StockPositionRepository,
		movRepo repository.MovementRecordRepository,
		_ repository.SaleRepository,
		_ repository.SaleReturnRepository,
	) error {
		pos, err := posRepo.GetForUpdate(ctx, row.ProductID, row.PointOfSaleID)
		if err != nil {
			return err
		}
		switch {
		case pos == nil:
			// Asignación implícita: posición nueva en 0, activa.
			pos = &entity.StockPosition{
				ID:            uuid.New().String(),
				ProductID:     row.ProductID,
				PointOfSaleID: row.PointOfSaleID,
				IsActive:      true,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := posRepo.Create(ctx, pos); err != nil {
				return err
			}
		case !pos.IsActive:
			if err := posRepo.SetActive(ctx, pos.ID, true, now); err != nil {
				return err
			}
			pos.IsActive = true
		}
		if row.Quantity == 0 {
			return nil
		}
		mov, err = tc.recorder.Append(ctx, posRepo, movRepo, pos, AppendInput{
			Type:    entity.MovementTypeImport,
			Delta:   row.Quantity,
			ActorID: actorID,
			Now:     now,
		})
		return err
	})
	if err != nil {
		return err
	}
	if mov != nil {
		tc.publishMovement(ctx, mov)
	}
	return nil
}

// checkReturnable valida venta vs. producto/punto de venta y la ventana de 30 días.
func (tc *TransactionCoordinator) checkReturnable(sale *entity.Sale, in ReturnInput, now time.Time) error {
	if sale == nil {
		return domain.ErrNotFound
	}
	if sale.ProductID != in.ProductID || sale.PointOfSaleID != in.PointOfSaleID {
		return fmt.Errorf("la venta no corresponde al producto o punto de venta: %w", domain.ErrInvalidInput)
	}
	if !sale.WithinReturnWindow(now) {
		return domain.ErrReturnWindowExpired
	}
	return nil
}

func (tc *TransactionCoordinator) authorize(ctx context.Context, actorID, pointOfSaleID string) error {
	ok, err := tc.authorizer.CanOperateAt(ctx, actorID, pointOfSaleID)
	if err != nil {
		return fmt.Errorf("consultar autorización: %w", err)
	}
	if !ok {
		return domain.ErrForbidden
	}
	return nil
}

func (tc *TransactionCoordinator) acquireIdempotency(ctx context.Context, kind, requestID string) error {
	if tc.idem == nil || requestID == "" {
		return nil
	}
	ok, err := tc.idem.Acquire(ctx, kind+":"+requestID)
	if err != nil {
		// El guard es una protección extra; si Redis no responde, la operación sigue.
		tc.log.Warn().Err(err).Str("request_id", requestID).Msg("guard de idempotencia no disponible")
		return nil
	}
	if !ok {
		return domain.ErrDuplicateRequest
	}
	return nil
}

// attachPhoto guarda la foto y anota su ruta en la venta, fuera de la
// transacción. Cualquier fallo se loguea y se traga: la venta ya quedó firme.
func (tc *TransactionCoordinator) attachPhoto(ctx context.Context, sale *entity.Sale, photo []byte) {
	if tc.photos == nil || len(photo) == 0 {
		return
	}
	path, err := tc.photos.Save(ctx, sale.ID, photo)
	if err != nil {
		tc.log.Warn().Err(err).Str("sale_id", sale.ID).Msg("no se pudo guardar la foto de la venta")
		return
	}
	if err := tc.saleRepo.UpdatePhotoPath(ctx, sale.ID, path); err != nil {
		tc.log.Warn().Err(err).Str("sale_id", sale.ID).Msg("no se pudo anotar la ruta de la foto")
		return
	}
	sale.PhotoPath = path
}

// publishMovement emite el evento del movimiento confirmado (best-effort).
func (tc *TransactionCoordinator) publishMovement(ctx context.Context, mov *entity.MovementRecord) {
	if tc.events == nil || mov == nil {
		return
	}
	err := tc.events.PublishMovementRecorded(ctx, MovementRecordedEvent{
		MovementID:     mov.ID,
		PositionID:     mov.PositionID,
		ProductID:      mov.ProductID,
		PointOfSaleID:  mov.PointOfSaleID,
		Type:           mov.Type,
		QuantityChange: mov.QuantityChange,
		QuantityAfter:  mov.QuantityAfter,
		CorrelationID:  mov.CorrelationID,
		ActorID:        mov.ActorID,
		RecordedAt:     mov.RecordedAt,
	})
	if err != nil {
		tc.log.Warn().Err(err).Str("movement_id", mov.ID).Msg("no se pudo publicar el evento de movimiento")
	}
}

// asConcurrency convierte un fallo de disponibilidad detectado dentro de la
// transacción en ConcurrencyError con la cantidad fresca (la validación previa
// ya había pasado; el estado cambió en el medio).
func asConcurrency(err error) error {
	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		return &domain.ConcurrencyError{Available: insufficient.Available}
	}
	return err
}
