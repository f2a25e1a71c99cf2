package http

import (
	"encoding/base64"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/pos-ledger/internal/application/dto"
	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
)

// HeaderRequestID clave de idempotencia opcional para ventas y devoluciones.
const HeaderRequestID = "X-Request-Id"

// MovementHandler maneja los flujos que mutan stock y el historial (protegido).
type MovementHandler struct {
	coordinator *ledger.TransactionCoordinator
	movements   *ledger.MovementQuery
	metrics     *Metrics
}

// NewMovementHandler construye el handler.
func NewMovementHandler(coordinator *ledger.TransactionCoordinator, movements *ledger.MovementQuery, metrics *Metrics) *MovementHandler {
	return &MovementHandler{coordinator: coordinator, movements: movements, metrics: metrics}
}

// RecordSale godoc
// @Summary      Registrar una venta (descuenta stock)
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        X-Request-Id  header  string  false  "Clave de idempotencia"
// @Param        body  body  dto.RecordSaleRequest  true  "product_id, point_of_sale_id, quantity, unit_price, payment_method_id, photo_base64 (opcional)"
// @Success      201   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/sales [post]
func (h *MovementHandler) RecordSale(c *fiber.Ctx) error {
	actorID := GetActorID(c)
	if actorID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.RecordSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	unitPrice, err := decimal.NewFromString(in.UnitPrice)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "unit_price inválido"})
	}
	var photo []byte
	if in.PhotoBase64 != "" {
		photo, err = base64.StdEncoding.DecodeString(in.PhotoBase64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "photo_base64 inválido"})
		}
	}
	res, err := h.coordinator.RecordSaleMovement(c.Context(), ledger.SaleInput{
		ProductID:       in.ProductID,
		PointOfSaleID:   in.PointOfSaleID,
		PaymentMethodID: in.PaymentMethodID,
		Quantity:        in.Quantity,
		UnitPrice:       unitPrice,
		ActorID:         actorID,
		RequestID:       c.Get(HeaderRequestID),
		Photo:           photo,
	})
	if err != nil {
		return respondError(c, err)
	}
	if h.metrics != nil {
		h.metrics.MovementRecorded(res.Movement.Type)
		if res.IsLowStock {
			h.metrics.LowStockWarned()
		}
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SaleResponse{
		SaleID:     res.Sale.ID,
		Total:      res.Sale.Total.String(),
		Movement:   dto.NewMovementRecordDTO(res.Movement),
		IsLowStock: res.IsLowStock,
		Warning:    res.Warning,
	})
}

// RecordReturn godoc
// @Summary      Registrar una devolución contra una venta (repone stock)
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        X-Request-Id  header  string  false  "Clave de idempotencia"
// @Param        body  body  dto.RecordReturnRequest  true  "sale_id, product_id, point_of_sale_id, quantity"
// @Success      201   {object}  dto.ReturnResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/returns [post]
func (h *MovementHandler) RecordReturn(c *fiber.Ctx) error {
	actorID := GetActorID(c)
	if actorID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.RecordReturnRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.coordinator.RecordReturnMovement(c.Context(), ledger.ReturnInput{
		SaleID:        in.SaleID,
		ProductID:     in.ProductID,
		PointOfSaleID: in.PointOfSaleID,
		Quantity:      in.Quantity,
		ActorID:       actorID,
		RequestID:     c.Get(HeaderRequestID),
	})
	if err != nil {
		return respondError(c, err)
	}
	if h.metrics != nil {
		h.metrics.MovementRecorded(res.Movement.Type)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ReturnResponse{
		ReturnID: res.Return.ID,
		Movement: dto.NewMovementRecordDTO(res.Movement),
	})
}

// AdjustStock godoc
// @Summary      Ajuste manual de stock con motivo obligatorio (solo admin)
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AdjustStockRequest  true  "product_id, point_of_sale_id, delta, reason"
// @Success      201   {object}  dto.MovementRecordDTO
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/adjustments [post]
func (h *MovementHandler) AdjustStock(c *fiber.Ctx) error {
	actorID := GetActorID(c)
	if actorID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.AdjustStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	mov, err := h.coordinator.AdjustStock(c.Context(), ledger.AdjustmentInput{
		ProductID:     in.ProductID,
		PointOfSaleID: in.PointOfSaleID,
		Delta:         in.Delta,
		Reason:        in.Reason,
		ActorID:       actorID,
	})
	if err != nil {
		return respondError(c, err)
	}
	if h.metrics != nil {
		h.metrics.MovementRecorded(mov.Type)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewMovementRecordDTO(mov))
}

// ImportStock godoc
// @Summary      Carga masiva de stock (filas ya parseadas; solo admin)
// @Description  Cada fila es una unidad atómica: auto-asigna la posición si no
//
//	existe y registra un movimiento IMPORT con delta >= 0. Las filas
//	fallidas se reportan sin revertir las demás.
//
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ImportStockRequest  true  "rows"
// @Success      200   {object}  dto.ImportReportResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/imports [post]
func (h *MovementHandler) ImportStock(c *fiber.Ctx) error {
	actorID := GetActorID(c)
	if actorID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.ImportStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	rows := make([]ledger.ImportRow, 0, len(in.Rows))
	for _, r := range in.Rows {
		rows = append(rows, ledger.ImportRow{
			ProductID:     r.ProductID,
			PointOfSaleID: r.PointOfSaleID,
			Quantity:      r.Quantity,
		})
	}
	report, err := h.coordinator.ImportStock(c.Context(), rows, actorID)
	if err != nil {
		return respondError(c, err)
	}
	out := dto.ImportReportResponse{Applied: report.Applied}
	for _, e := range report.Errors {
		out.Errors = append(out.Errors, dto.ImportRowErrorDTO{Index: e.Index, Error: e.Err})
	}
	return c.JSON(out)
}

// ListMovements godoc
// @Summary      Historial de movimientos (filtros opcionales, página máx. 50)
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        product_id        query  string  false  "Filtrar por producto"
// @Param        point_of_sale_id  query  string  false  "Filtrar por punto de venta"
// @Param        from              query  string  false  "Desde (RFC3339)"
// @Param        to                query  string  false  "Hasta (RFC3339)"
// @Param        page              query  int     false  "Página (desde 1)"
// @Param        page_size         query  int     false  "Tamaño de página (máx. 50)"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/movements [get]
func (h *MovementHandler) ListMovements(c *fiber.Ctx) error {
	in := ledger.ListMovementsInput{
		ProductID:     c.Query("product_id"),
		PointOfSaleID: c.Query("point_of_sale_id"),
		Page:          c.QueryInt("page", 1),
		PageSize:      c.QueryInt("page_size", 0),
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "from inválido (RFC3339)"})
		}
		in.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "to inválido (RFC3339)"})
		}
		in.To = &t
	}
	page, err := h.movements.ListMovements(c.Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	items := make([]dto.MovementRecordDTO, 0, len(page.Items))
	for _, m := range page.Items {
		items = append(items, dto.NewMovementRecordDTO(m))
	}
	return c.JSON(fiber.Map{
		"items": items,
		"page":  dto.PageResponse{Page: page.Page, PageSize: page.PageSize, Total: page.Total},
	})
}

// Reconcile godoc
// @Summary      Reconciliación de una posición contra su historial
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        product_id        query  string  true  "Producto (UUID)"
// @Param        point_of_sale_id  query  string  true  "Punto de venta (UUID)"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/movements/reconcile [get]
func (h *MovementHandler) Reconcile(c *fiber.Ctx) error {
	productID := c.Query("product_id")
	pointOfSaleID := c.Query("point_of_sale_id")
	if productID == "" || pointOfSaleID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "product_id y point_of_sale_id son requeridos"})
	}
	res, err := h.movements.ReconcilePosition(c.Context(), productID, pointOfSaleID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"position_id":   res.PositionID,
		"quantity":      res.Quantity,
		"movements_sum": res.MovementsSum,
		"consistent":    res.Consistent,
	})
}
