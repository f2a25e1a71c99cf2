package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Assignments *ledger.AssignmentManager
	Validator   *ledger.StockValidator
	Coordinator *ledger.TransactionCoordinator
	Movements   *ledger.MovementQuery
	Metrics     *Metrics
	JWTSecret   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Metrics != nil {
		app.Use(deps.Metrics.Middleware())
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rutas protegidas (requieren Bearer Token)
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	// Posiciones de stock
	positionHandler := NewPositionHandler(deps.Assignments, deps.Validator)
	api.Post("/positions", RequireRole(RoleAdmin), positionHandler.Assign)
	api.Delete("/positions", RequireRole(RoleAdmin), positionHandler.Unassign)
	api.Get("/positions", positionHandler.Get)
	api.Get("/points-of-sale/:id/positions", positionHandler.ListByPointOfSale)
	api.Get("/products/:id/positions", positionHandler.ListByProduct)
	api.Post("/stock/validate", positionHandler.ValidateAvailability)

	// Movimientos de stock
	movementHandler := NewMovementHandler(deps.Coordinator, deps.Movements, deps.Metrics)
	api.Post("/sales", movementHandler.RecordSale)
	api.Post("/returns", movementHandler.RecordReturn)
	api.Post("/adjustments", RequireRole(RoleAdmin), movementHandler.AdjustStock)
	api.Post("/imports", RequireRole(RoleAdmin), movementHandler.ImportStock)
	api.Get("/movements", movementHandler.ListMovements)
	api.Get("/movements/reconcile", movementHandler.Reconcile)
}
