package entity

import "time"

// SaleReturn es el registro de negocio de una devolución contra una venta.
// La suma de devoluciones de una venta nunca supera su cantidad original.
type SaleReturn struct {
	ID            string
	SaleID        string
	ProductID     string
	PointOfSaleID string
	Quantity      int
	ReturnedBy    string
	ReturnedAt    time.Time
}
