package entity

import "time"

// Tipos de movimiento de stock.
const (
	MovementTypeSale       = "SALE"       // venta (delta negativo)
	MovementTypeReturn     = "RETURN"     // devolución (delta positivo)
	MovementTypeAdjustment = "ADJUSTMENT" // ajuste manual con motivo
	MovementTypeImport     = "IMPORT"     // carga masiva (delta >= 0)
)

// MovementRecord es la entrada inmutable de auditoría de un cambio de cantidad.
// Se crea exactamente una por operación mutadora y nunca se actualiza ni borra.
// Invariante: QuantityAfter == QuantityBefore + QuantityChange, y la secuencia
// ordenada de movimientos de una posición, partiendo de 0, suma su cantidad actual.
type MovementRecord struct {
	ID             string
	PositionID     string
	ProductID      string
	PointOfSaleID  string
	Type           string
	QuantityChange int // con signo
	QuantityBefore int
	QuantityAfter  int
	Reason         string // obligatorio solo para ADJUSTMENT (<= 500 caracteres)
	CorrelationID  string // venta o devolución que originó el movimiento
	ActorID        string
	RecordedAt     time.Time
}

// ValidMovementType indica si el tipo es uno de los cuatro conocidos.
func ValidMovementType(t string) bool {
	switch t {
	case MovementTypeSale, MovementTypeReturn, MovementTypeAdjustment, MovementTypeImport:
		return true
	}
	return false
}
