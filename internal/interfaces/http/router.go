package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Procura-api/internal/application/audit"
	"github.com/jhoicas/Procura-api/internal/application/auth"
	"github.com/jhoicas/Procura-api/internal/application/entitlement"
	"github.com/jhoicas/Procura-api/internal/application/inventory"
	"github.com/jhoicas/Procura-api/internal/application/jobs"
	"github.com/jhoicas/Procura-api/internal/application/orders"
	"github.com/jhoicas/Procura-api/internal/application/receiving"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC      *auth.UseCase
	InventoryUC *inventory.UseCase
	ReceivingUC *receiving.UseCase
	JobsUC      *jobs.UseCase
	OrdersUC    *orders.UseCase
	OverrideUC  *entitlement.OverrideUseCase
	Resolver    *entitlement.Resolver
	AuditQuery  *audit.QueryUseCase
	UndoUC      *audit.UndoUseCase
	JWTSecret   string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	authGroupP := protected.Group("/auth")
	authGroupP.Post("/switch-company", authHandler.SwitchCompany)

	// Ítems de inventario
	items := protected.Group("/items")
	inventoryHandler := NewInventoryHandler(deps.InventoryUC)
	items.Post("/", inventoryHandler.Create)
	items.Get("/", inventoryHandler.List)
	items.Post("/bulk-delete", inventoryHandler.BulkDelete)
	items.Post("/purge-deleted", inventoryHandler.Purge)
	items.Get("/:id", inventoryHandler.GetByID)
	items.Put("/:id", inventoryHandler.Update)
	items.Delete("/:id", inventoryHandler.Delete)
	items.Post("/:id/restore", inventoryHandler.Restore)

	// Recepciones
	receipts := protected.Group("/receipts")
	receiptHandler := NewReceiptHandler(deps.ReceivingUC)
	receipts.Post("/", receiptHandler.Create)
	receipts.Get("/", receiptHandler.List)
	receipts.Get("/:id", receiptHandler.GetByID)
	receipts.Post("/:id/lines", receiptHandler.AddLine)
	receipts.Put("/:id/lines/:lineID", receiptHandler.UpdateLine)
	receipts.Post("/:id/transition", receiptHandler.Transition)

	// Trabajos
	jobsGroup := protected.Group("/jobs")
	jobHandler := NewJobHandler(deps.JobsUC)
	jobsGroup.Post("/", jobHandler.Create)
	jobsGroup.Get("/", jobHandler.List)
	jobsGroup.Get("/:id", jobHandler.GetByID)
	jobsGroup.Put("/:id/bom", jobHandler.SetBOMLine)
	jobsGroup.Post("/:id/quote", jobHandler.Quote)
	jobsGroup.Post("/:id/approve", jobHandler.Approve)
	jobsGroup.Post("/:id/start", jobHandler.Start)
	jobsGroup.Post("/:id/complete", jobHandler.Complete)
	jobsGroup.Post("/:id/void", jobHandler.Void)

	// Órdenes de compra
	pos := protected.Group("/purchase-orders")
	orderHandler := NewOrderHandler(deps.OrdersUC)
	pos.Post("/", orderHandler.Create)
	pos.Get("/", orderHandler.List)
	pos.Get("/:id", orderHandler.GetByID)
	pos.Post("/:id/lines", orderHandler.AddLine)
	pos.Post("/:id/approve", orderHandler.Approve)

	// Auditoría y undo
	auditGroup := protected.Group("/audit")
	auditHandler := NewAuditHandler(deps.AuditQuery, deps.UndoUC)
	auditGroup.Get("/", auditHandler.List)
	auditGroup.Get("/metrics", auditHandler.Metrics)
	auditGroup.Post("/:id/undo", auditHandler.Undo)

	// Administración de planes (super-usuario)
	admin := protected.Group("/admin")
	adminHandler := NewAdminHandler(deps.OverrideUC, deps.Resolver)
	admin.Post("/companies/:id/tier-override", adminHandler.GrantOverride)
	admin.Delete("/companies/:id/tier-override", adminHandler.RevokeOverride)
	admin.Put("/companies/:id/base-tier", adminHandler.SetBaseTier)
	admin.Get("/companies/:id/tier", adminHandler.EffectiveTier)
}
