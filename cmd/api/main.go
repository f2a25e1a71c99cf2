package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/tu-usuario/pos-ledger/internal/application/ledger"
	"github.com/tu-usuario/pos-ledger/internal/infrastructure/kafka"
	"github.com/tu-usuario/pos-ledger/internal/infrastructure/postgres"
	"github.com/tu-usuario/pos-ledger/internal/infrastructure/redisstore"
	"github.com/tu-usuario/pos-ledger/internal/infrastructure/storage"
	httpRouter "github.com/tu-usuario/pos-ledger/internal/interfaces/http"
	"github.com/tu-usuario/pos-ledger/pkg/config"
	"github.com/tu-usuario/pos-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	posRepo := postgres.NewStockPositionRepository(pool)
	movRepo := postgres.NewMovementRecordRepository(pool)
	saleRepo := postgres.NewSaleRepository(pool)
	returnRepo := postgres.NewSaleReturnRepository(pool)
	directories := postgres.NewDirectories(pool)
	txRunner := postgres.NewTxRunner(pool)

	photoStore, err := storage.NewFilePhotoStore(cfg.Photos.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Photos.Dir).Msg("almacén de fotos")
	}

	// Guard de idempotencia: opcional, solo si hay Redis configurado.
	var idemGuard ledger.IdempotencyGuard
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		idemGuard = redisstore.NewIdempotencyGuard(redisClient)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("guard de idempotencia habilitado")
	}

	// Publicación de eventos: opcional, solo si hay brokers Kafka.
	var eventPublisher ledger.MovementEventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewPublisher(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Kafka")
		}
		defer producer.Close()
		eventPublisher = producer
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("publicación de eventos habilitada")
	}

	validator := ledger.NewStockValidator(posRepo)
	recorder := ledger.NewMovementRecorder()
	assignments := ledger.NewAssignmentManager(txRunner, posRepo, directories, directories, log)
	coordinator := ledger.NewTransactionCoordinator(ledger.CoordinatorDeps{
		TxRunner:     txRunner,
		PositionRepo: posRepo,
		SaleRepo:     saleRepo,
		ReturnRepo:   returnRepo,
		Validator:    validator,
		Recorder:     recorder,
		Products:     directories,
		PointsOfSale: directories,
		Payments:     directories,
		Authorizer:   directories,
		Photos:       photoStore,
		Idem:         idemGuard,
		Events:       eventPublisher,
		Log:          log,
	})
	movements := ledger.NewMovementQuery(movRepo, posRepo)
	metrics := httpRouter.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "POS Ledger API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		Assignments: assignments,
		Validator:   validator,
		Coordinator: coordinator,
		Movements:   movements,
		Metrics:     metrics,
		JWTSecret:   cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("servidor detenido")
}
