package entity

import "time"

// StockPosition representa la cantidad actual de un producto en un punto de venta.
// Existe exactamente una fila por par (producto, punto de venta) una vez asignado;
// nunca se borra, solo se desactiva. Quantity solo la muta el MovementRecorder.
type StockPosition struct {
	ID            string
	ProductID     string
	PointOfSaleID string
	Quantity      int // siempre >= 0
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
