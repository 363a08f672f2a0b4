package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"fooddelivery/internal/config"
	"fooddelivery/internal/database"
	"fooddelivery/internal/handlers"
	"fooddelivery/internal/middleware"
	"fooddelivery/internal/repositories"
	"fooddelivery/internal/services"
	"fooddelivery/pkg/cache"
	"fooddelivery/pkg/kafka"
	"fooddelivery/pkg/logger"
	"fooddelivery/pkg/rabbitmq"
)

// App bundles the HTTP server with the resources it owns.
type App struct {
	Fiber        *fiber.App
	DB           *gorm.DB
	AuthService  *services.AuthService
	OrderService *services.OrderService
	FoodService  *services.FoodService

	log     *logger.Logger
	mq      *rabbitmq.Client
	closers []io.Closer
}

// NewApp connects the database and the optional brokers, seeds the menu and registers every route.
// RabbitMQ, Kafka and Redis are only used when their address is configured.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}
	a := &App{log: log}

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.DB = db
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB)
	}
	if err := database.Migrate(db, log); err != nil {
		a.Close()
		return nil, err
	}

	var revocations repositories.RevocationStore = repositories.NewMemoryRevocationStore()
	if cfg.Redis.Addr != "" {
		store, rdb, err := cache.NewRevocationStore(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		revocations = store
		a.closers = append(a.closers, rdb)
	}

	var publishers services.MultiPublisher
	if cfg.RabbitMQ.URL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQ.URL,
			Exchange: cfg.RabbitMQ.Exchange,
			Queue:    cfg.RabbitMQ.Queue,
		}, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mq = mq
		a.closers = append(a.closers, mq)
		publishers = append(publishers, mq)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, producer)
		publishers = append(publishers, producer)
	}
	var publisher services.EventPublisher
	if len(publishers) > 0 {
		publisher = publishers
	}

	// --- Repositories ---
	runner := repositories.NewGormTxRunner(db)
	userRepo := repositories.NewGORMUserRepository(db)
	foodRepo := repositories.NewGORMFoodRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	itemRepo := repositories.NewGORMOrderItemRepository(db)

	// --- Services ---
	a.AuthService = services.NewAuthService(userRepo, revocations, cfg.JWT, log)
	a.FoodService = services.NewFoodService(runner, foodRepo, log)
	a.OrderService = services.NewOrderService(runner, orderRepo, itemRepo, foodRepo, userRepo, publisher, log)

	ctx := context.Background()
	if cfg.App.SeedFoods {
		if _, err := a.FoodService.SeedMenu(ctx, services.DefaultMenu()); err != nil {
			log.Warn("Failed to seed menu", "error", err)
		}
	}
	if _, err := a.AuthService.EnsureSuperuser(ctx, cfg.Admin); err != nil {
		log.Warn("Failed to create superuser", "error", err)
	}

	a.Fiber = fiber.New(fiber.Config{
		AppName:      "fooddelivery",
		ErrorHandler: a.errorHandler,
	})
	a.Fiber.Use(recover.New())
	a.Fiber.Use(fiberlogger.New())
	a.Fiber.Use(cors.New())

	a.Fiber.Get("/health", a.handleHealth)

	// Public routes first; the protected group below catches everything registered after it.
	handlers.NewFoodHandler(a.FoodService, log).RegisterRoutes(a.Fiber)
	handlers.NewAuthHandler(a.AuthService, handlers.CookieConfig{Debug: cfg.App.Debug}, log).RegisterRoutes(a.Fiber)

	protected := a.Fiber.Group("", middleware.AuthRequired(a.AuthService))
	handlers.NewOrderHandler(a.OrderService, log).RegisterRoutes(protected)

	return a, nil
}

// StartConsumers begins applying fulfillment messages when RabbitMQ is configured.
func (a *App) StartConsumers(ctx context.Context) error {
	if a.mq == nil {
		return nil
	}
	fulfillment := handlers.NewFulfillmentHandler(a.OrderService, a.log)
	return a.mq.ConsumeFulfillment(ctx, fulfillment.Handle)
}

// Close releases the brokers, the cache and the database, in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) handleHealth(c *fiber.Ctx) error {
	status := fiber.Map{
		"status":   "healthy",
		"time":     time.Now().Format(time.RFC3339),
		"database": "connected",
	}
	if sqlDB, err := a.DB.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	if a.mq != nil {
		status["rabbitmq"] = "connected"
	}
	return c.JSON(status)
}

func (a *App) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	if code >= fiber.StatusInternalServerError {
		a.log.Error("Unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.App.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	app, err := NewApp(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.StartConsumers(ctx); err != nil {
		log.Error("Failed to start RabbitMQ consumer", "error", err)
	}

	go func() {
		log.Info("Starting server", "port", cfg.App.Port, "env", cfg.App.Env)
		if err := app.Fiber.Listen(cfg.App.Port); err != nil {
			log.Error("Server stopped", "error", err)
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	log.Info("Shutting down server...")

	if err := app.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("Error during Fiber shutdown", "error", err)
	}
	if err := app.Close(); err != nil {
		log.Error("Error releasing resources", "error", err)
	}
	log.Info("Server gracefully stopped")
}
