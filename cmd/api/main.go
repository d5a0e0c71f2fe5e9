package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/Procura-api/internal/application/audit"
	"github.com/jhoicas/Procura-api/internal/application/auth"
	"github.com/jhoicas/Procura-api/internal/application/authz"
	"github.com/jhoicas/Procura-api/internal/application/entitlement"
	"github.com/jhoicas/Procura-api/internal/application/inventory"
	"github.com/jhoicas/Procura-api/internal/application/jobs"
	"github.com/jhoicas/Procura-api/internal/application/orders"
	"github.com/jhoicas/Procura-api/internal/application/receiving"
	"github.com/jhoicas/Procura-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/Procura-api/internal/interfaces/http"
	"github.com/jhoicas/Procura-api/pkg/config"
	"github.com/jhoicas/Procura-api/pkg/logger"
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
	log.Component("postgres").Info().Msg("pool de conexiones listo")

	// Repos atados al pool (lecturas sueltas); las mutaciones van por el TxRunner.
	itemRepo := postgres.NewItemRepository(pool)
	receiptRepo := postgres.NewReceiptRepository(pool)
	jobRepo := postgres.NewJobRepository(pool)
	orderRepo := postgres.NewPurchaseOrderRepository(pool)
	companyRepo := postgres.NewCompanyRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	permRepo := postgres.NewPermissionRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	engine := authz.NewEngine(userRepo, permRepo)
	resolver := entitlement.NewResolver(txRunner)

	inventoryUC := inventory.NewUseCase(txRunner, engine, itemRepo, companyRepo)
	receivingUC := receiving.NewUseCase(txRunner, engine, resolver, receiptRepo, orderRepo, itemRepo)
	jobsUC := jobs.NewUseCase(txRunner, engine, jobRepo)
	ordersUC := orders.NewUseCase(txRunner, engine, orderRepo, itemRepo)
	overrideUC := entitlement.NewOverrideUseCase(txRunner)
	auditQueryUC := audit.NewQueryUseCase(txRunner, resolver)
	undoUC := audit.NewUndoUseCase(txRunner, engine, resolver)
	authUC := auth.NewUseCase(userRepo, txRunner, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:      authUC,
		InventoryUC: inventoryUC,
		ReceivingUC: receivingUC,
		JobsUC:      jobsUC,
		OrdersUC:    ordersUC,
		OverrideUC:  overrideUC,
		Resolver:    resolver,
		AuditQuery:  auditQueryUC,
		UndoUC:      undoUC,
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

	log.Info().Msg("aplicación detenida")
}
