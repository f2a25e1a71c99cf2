package dto

import (
	"time"

	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
	"github.com/tu-usuario/pos-ledger/internal/domain/entity"
)

// AssignRequest asignar o desasignar un par (producto, punto de venta).
type AssignRequest struct {
	ProductID     string `json:"product_id"`
	PointOfSaleID string `json:"point_of_sale_id"`
}

// StockPositionDTO posición de stock en respuestas.
type StockPositionDTO struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	PointOfSaleID string    `json:"point_of_sale_id"`
	Quantity      int       `json:"quantity"`
	IsActive      bool      `json:"is_active"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewStockPositionDTO mapea la entidad al DTO.
func NewStockPositionDTO(p *entity.StockPosition) StockPositionDTO {
	return StockPositionDTO{
		ID:            p.ID,
		ProductID:     p.ProductID,
		PointOfSaleID: p.PointOfSaleID,
		Quantity:      p.Quantity,
		IsActive:      p.IsActive,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ValidateAvailabilityRequest consulta de factibilidad (sin efectos).
type ValidateAvailabilityRequest struct {
	ProductID     string `json:"product_id"`
	PointOfSaleID string `json:"point_of_sale_id"`
	Quantity      int    `json:"quantity"`
}

// AvailabilityDTO resultado de la validación de disponibilidad.
type AvailabilityDTO struct {
	Available         int    `json:"available"`
	Requested         int    `json:"requested"`
	RemainingAfter    int    `json:"remaining_after"`
	LowStockThreshold int    `json:"low_stock_threshold"`
	IsLowStock        bool   `json:"is_low_stock"`
	Warning           string `json:"warning,omitempty"`
}

// NewAvailabilityDTO mapea el resultado del validador.
func NewAvailabilityDTO(r *ledger.AvailabilityResult) AvailabilityDTO {
	return AvailabilityDTO{
		Available:         r.Available,
		Requested:         r.Requested,
		RemainingAfter:    r.RemainingAfter,
		LowStockThreshold: r.LowStockThreshold,
		IsLowStock:        r.IsLowStock,
		Warning:           r.Warning,
	}
}

// RecordSaleRequest registrar una venta.
type RecordSaleRequest struct {
	ProductID       string `json:"product_id"`
	PointOfSaleID   string `json:"point_of_sale_id"`
	PaymentMethodID string `json:"payment_method_id"`
	Quantity        int    `json:"quantity"`
	UnitPrice       string `json:"unit_price"` // decimal como string para no perder precisión
	PhotoBase64     string `json:"photo_base64,omitempty"`
}

// RecordReturnRequest registrar una devolución contra una venta.
type RecordReturnRequest struct {
	SaleID        string `json:"sale_id"`
	ProductID     string `json:"product_id"`
	PointOfSaleID string `json:"point_of_sale_id"`
	Quantity      int    `json:"quantity"`
}

// AdjustStockRequest ajuste manual con motivo obligatorio.
type AdjustStockRequest struct {
	ProductID     string `json:"product_id"`
	PointOfSaleID string `json:"point_of_sale_id"`
	Delta         int    `json:"delta"`
	Reason        string `json:"reason"`
}

// ImportRowRequest fila ya parseada de una carga masiva.
type ImportRowRequest struct {
	ProductID     string `json:"product_id"`
	PointOfSaleID string `json:"point_of_sale_id"`
	Quantity      int    `json:"quantity"`
}

// ImportStockRequest carga masiva de stock.
type ImportStockRequest struct {
	Rows []ImportRowRequest `json:"rows"`
}

// MovementRecordDTO movimiento en respuestas.
type MovementRecordDTO struct {
	ID             string    `json:"id"`
	PositionID     string    `json:"position_id"`
	ProductID      string    `json:"product_id"`
	PointOfSaleID  string    `json:"point_of_sale_id"`
	Type           string    `json:"type"`
	QuantityChange int       `json:"quantity_change"`
	QuantityBefore int       `json:"quantity_before"`
	QuantityAfter  int       `json:"quantity_after"`
	Reason         string    `json:"reason,omitempty"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	ActorID        string    `json:"actor_id"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// NewMovementRecordDTO mapea la entidad al DTO.
func NewMovementRecordDTO(m *entity.MovementRecord) MovementRecordDTO {
	return MovementRecordDTO{
		ID:             m.ID,
		PositionID:     m.PositionID,
		ProductID:      m.ProductID,
		PointOfSaleID:  m.PointOfSaleID,
		Type:           m.Type,
		QuantityChange: m.QuantityChange,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Reason:         m.Reason,
		CorrelationID:  m.CorrelationID,
		ActorID:        m.ActorID,
		RecordedAt:     m.RecordedAt,
	}
}

// SaleResponse venta confirmada.
type SaleResponse struct {
	SaleID     string            `json:"sale_id"`
	Total      string            `json:"total"`
	Movement   MovementRecordDTO `json:"movement"`
	IsLowStock bool              `json:"is_low_stock"`
	Warning    string            `json:"warning,omitempty"`
}

// ReturnResponse devolución confirmada.
type ReturnResponse struct {
	ReturnID string            `json:"return_id"`
	Movement MovementRecordDTO `json:"movement"`
}

// ImportReportResponse resumen de la carga masiva.
type ImportReportResponse struct {
	Applied int                 `json:"applied"`
	Errors  []ImportRowErrorDTO `json:"errors,omitempty"`
}

// ImportRowErrorDTO error de una fila del import.
type ImportRowErrorDTO struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}
