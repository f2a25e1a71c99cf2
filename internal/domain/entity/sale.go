package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale es el registro de negocio de una venta; su ID es el correlation id
// del movimiento de stock que la descuenta.
type Sale struct {
	ID              string
	ProductID       string
	PointOfSaleID   string
	Quantity        int
	UnitPrice       decimal.Decimal
	Total           decimal.Decimal
	PaymentMethodID string
	PhotoPath       string // artefacto best-effort; puede quedar vacío
	SoldBy          string
	SoldAt          time.Time
}

// ReturnWindow es el plazo durante el cual se aceptan devoluciones contra una venta.
const ReturnWindow = 30 * 24 * time.Hour

// WithinReturnWindow indica si la venta aún admite devoluciones en el instante dado.
func (s *Sale) WithinReturnWindow(now time.Time) bool {
	return !now.After(s.SoldAt.Add(ReturnWindow))
}
