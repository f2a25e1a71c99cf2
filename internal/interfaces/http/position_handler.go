package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/pos-ledger/internal/application/dto"
	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
)

// PositionHandler maneja asignaciones y consultas de posiciones de stock (protegido).
type PositionHandler struct {
	assignments *ledger.AssignmentManager
	validator   *ledger.StockValidator
}

// NewPositionHandler construye el handler.
func NewPositionHandler(assignments *ledger.AssignmentManager, validator *ledger.StockValidator) *PositionHandler {
	return &PositionHandler{assignments: assignments, validator: validator}
}

// Assign godoc
// @Summary      Asignar un producto a un punto de venta
// @Tags         positions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AssignRequest  true  "product_id, point_of_sale_id"
// @Success      201   {object}  dto.StockPositionDTO
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/positions [post]
func (h *PositionHandler) Assign(c *fiber.Ctx) error {
	var in dto.AssignRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	pos, err := h.assignments.Assign(c.Context(), in.ProductID, in.PointOfSaleID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewStockPositionDTO(pos))
}

// Unassign godoc
// @Summary      Desasignar un producto de un punto de venta (requiere stock 0)
// @Tags         positions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AssignRequest  true  "product_id, point_of_sale_id"
// @Success      200   {object}  map[string]string
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/positions [delete]
func (h *PositionHandler) Unassign(c *fiber.Ctx) error {
	var in dto.AssignRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.assignments.Unassign(c.Context(), in.ProductID, in.PointOfSaleID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "posición desasignada"})
}

// Get godoc
// @Summary      Consultar la posición de un par (producto, punto de venta)
// @Tags         positions
// @Security     Bearer
// @Produce      json
// @Param        product_id        query  string  true  "Producto (UUID)"
// @Param        point_of_sale_id  query  string  true  "Punto de venta (UUID)"
// @Success      200  {object}  dto.StockPositionDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/positions [get]
func (h *PositionHandler) Get(c *fiber.Ctx) error {
	productID := c.Query("product_id")
	pointOfSaleID := c.Query("point_of_sale_id")
	if productID == "" || pointOfSaleID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "product_id y point_of_sale_id son requeridos"})
	}
	pos, err := h.assignments.GetPosition(c.Context(), productID, pointOfSaleID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewStockPositionDTO(pos))
}

// ListByPointOfSale godoc
// @Summary      Posiciones de un punto de venta
// @Tags         positions
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "Punto de venta (UUID)"
// @Param        limit   query  int     false  "Máx. 50"
// @Param        offset  query  int     false  "Desplazamiento"
// @Success      200  {array}  dto.StockPositionDTO
// @Router       /api/points-of-sale/{id}/positions [get]
func (h *PositionHandler) ListByPointOfSale(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.DefaultPage()
	positions, err := h.assignments.ListPositionsForPointOfSale(c.Context(), c.Params("id"), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.StockPositionDTO, 0, len(positions))
	for _, p := range positions {
		out = append(out, dto.NewStockPositionDTO(p))
	}
	return c.JSON(out)
}

// ListByProduct godoc
// @Summary      Posiciones de un producto en todos los puntos de venta
// @Tags         positions
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Producto (UUID)"
// @Success      200  {array}  dto.StockPositionDTO
// @Router       /api/products/{id}/positions [get]
func (h *PositionHandler) ListByProduct(c *fiber.Ctx) error {
	positions, err := h.assignments.ListPositionsForProduct(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.StockPositionDTO, 0, len(positions))
	for _, p := range positions {
		out = append(out, dto.NewStockPositionDTO(p))
	}
	return c.JSON(out)
}

// ValidateAvailability godoc
// @Summary      Validar disponibilidad de stock (sin efectos)
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ValidateAvailabilityRequest  true  "product_id, point_of_sale_id, quantity"
// @Success      200   {object}  dto.AvailabilityDTO
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/validate [post]
func (h *PositionHandler) ValidateAvailability(c *fiber.Ctx) error {
	var in dto.ValidateAvailabilityRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.validator.ValidateAvailability(c.Context(), in.ProductID, in.PointOfSaleID, in.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewAvailabilityDTO(res))
}
