package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gestion-locative/internal/allocation"
	"gestion-locative/internal/apperr"
	"gestion-locative/internal/audit"
	"gestion-locative/internal/auth"
	"gestion-locative/internal/config"
	"gestion-locative/internal/database"
	"gestion-locative/internal/expense"
	"gestion-locative/internal/lease"
	"gestion-locative/internal/logging"
	"gestion-locative/internal/models"
	"gestion-locative/internal/payment"
	"gestion-locative/internal/property"
	"gestion-locative/internal/receipt"
	"gestion-locative/internal/report"
	"gestion-locative/internal/scheduler"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("[FATAL] logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg, logger)
	if err != nil {
		logger.Fatal("base de données", zap.Error(err))
	}
	if n, err := expense.SeedDefaultTypes(db); err != nil {
		logger.Warn("types de dépense par défaut", zap.Error(err))
	} else if n > 0 {
		logger.Info("types de dépense créés", zap.Int("count", n))
	}

	store, err := receipt.NewStore(cfg)
	if err != nil {
		logger.Fatal("stockage des quittances", zap.Error(err))
	}

	properties := property.NewService(db, logger)
	leases := lease.NewService(db, logger).WithDefaultBillingDay(cfg.DefaultBillingDay)
	expenses := expense.NewService(db, logger)
	allocations := allocation.NewService(db, logger)
	payments := payment.NewService(db, logger)
	receipts := receipt.NewService(db, logger, receipt.PDFRenderer{}, store)
	reports := report.NewService(db, logger)

	cron, err := scheduler.Start(cfg.ReceiptCron, scheduler.NewJob(db, logger, receipts, cfg.ReceiptOnlyPaid), logger)
	if err != nil {
		logger.Fatal("planification", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: apperr.Handler(func(c *fiber.Ctx, err error) {
			logger.Error("erreur inattendue",
				zap.String("method", c.Method()), zap.String("path", c.Path()),
				zap.Any("request_id", c.Locals("requestid")), zap.Error(err))
		}),
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(corsOrigins, ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
		ExposeHeaders: "Content-Disposition",
	}))

	api := app.Group("/api")
	api.Post("/auth/login", auth.LoginHandler(db, cfg.JWTSecret))

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))
	protected.Get("/auth/me", auth.MeHandler(db))

	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))
	adminRoutes.Post("/users", auth.CreateUserHandler(db))
	adminRoutes.Get("/users", auth.ListUsersHandler(db))
	adminRoutes.Post("/expense-types", expense.CreateExpenseTypeHandler(expenses))
	protected.Get("/audit-logs", auth.RequireRole(models.RoleAdmin), audit.ListAuditLogsHandler(db))

	// Patrimoine
	protected.Post("/buildings", property.CreateBuildingHandler(properties))
	protected.Get("/buildings", property.ListBuildingsHandler(properties))
	protected.Get("/buildings/:id", property.GetBuildingHandler(properties))
	protected.Put("/buildings/:id", property.UpdateBuildingHandler(properties))
	protected.Post("/apartments", property.CreateApartmentHandler(properties))
	protected.Get("/apartments", property.ListApartmentsHandler(properties))
	protected.Get("/apartments/:id", property.GetApartmentHandler(properties))
	protected.Put("/apartments/:id", property.UpdateApartmentHandler(properties))
	protected.Get("/apartments/:id/allocations", allocation.ListForApartmentHandler(allocations))
	protected.Post("/owners", property.CreateOwnerHandler(properties))
	protected.Get("/owners", property.ListOwnersHandler(properties))
	protected.Post("/tenants", property.CreateTenantHandler(properties))
	protected.Get("/tenants", property.ListTenantsHandler(properties))
	protected.Get("/tenants/:id", property.GetTenantHandler(properties))
	protected.Put("/tenants/:id", property.UpdateTenantHandler(properties))

	// Baux et colocataires
	protected.Post("/leases", lease.CreateLeaseHandler(leases, db, logger))
	protected.Get("/leases", lease.ListLeasesHandler(leases))
	protected.Get("/leases/:id", lease.GetLeaseHandler(leases))
	protected.Put("/leases/:id", lease.UpdateLeaseHandler(leases, db, logger))
	protected.Delete("/leases/:id", lease.DeleteLeaseHandler(leases, db, logger))
	protected.Post("/leases/:id/terminate", lease.TerminateLeaseHandler(leases, db, logger))
	protected.Post("/leases/:id/notice", lease.RecordNoticeHandler(leases))
	protected.Post("/leases/:id/tenants", lease.AddTenantHandler(leases, db, logger))
	protected.Get("/leases/:id/tenants/available", lease.AvailableTenantsHandler(leases))
	protected.Post("/leases/:id/tenants/:tenantId/exit", lease.RemoveTenantHandler(leases, db, logger))
	protected.Post("/memberships/:id/principal", lease.SetPrincipalHandler(leases, db, logger))
	protected.Put("/memberships/:id", lease.UpdateMembershipHandler(leases, db, logger))

	// Dépenses et répartition
	protected.Get("/expense-types", expense.ListExpenseTypesHandler(expenses))
	protected.Post("/expenses", expense.CreateExpenseHandler(expenses, db, logger))
	protected.Get("/expenses", expense.ListExpensesHandler(expenses))
	protected.Get("/expenses/summary/monthly", expense.MonthlyExpenseSummaryHandler(expenses))
	protected.Get("/expenses/:id", expense.GetExpenseHandler(expenses))
	protected.Put("/expenses/:id", expense.UpdateExpenseHandler(expenses, db, logger))
	protected.Delete("/expenses/:id", expense.DeleteExpenseHandler(expenses, db, logger))
	protected.Post("/expenses/:id/paid", expense.MarkPaidHandler(expenses))
	protected.Post("/expenses/:id/split", allocation.SplitHandler(allocations, db, logger))
	protected.Post("/expenses/:id/allocations", allocation.AddManualHandler(allocations, db, logger))
	protected.Get("/expenses/:id/allocations", allocation.ListForExpenseHandler(allocations))
	protected.Put("/allocations/:id", allocation.UpdateManualHandler(allocations, db, logger))
	protected.Delete("/allocations/:id", allocation.DeleteHandler(allocations, db, logger))
	protected.Post("/allocations/:id/invoiced", allocation.MarkInvoicedHandler(allocations))

	// Loyers
	protected.Post("/payments", payment.RecordPaymentHandler(payments, db, logger))
	protected.Post("/payments/quick", payment.QuickPaymentHandler(payments, db, logger))
	protected.Get("/payments", payment.ListPaymentsHandler(payments))
	protected.Get("/payments/:id", payment.GetPaymentHandler(payments))
	protected.Put("/payments/:id", payment.UpdatePaymentHandler(payments, db, logger))
	protected.Delete("/payments/:id", payment.DeletePaymentHandler(payments, db, logger))
	protected.Post("/payments/:id/validate", payment.ValidatePaymentHandler(payments, db, logger))
	protected.Post("/payments/:id/receipt", receipt.GenerateFromPaymentHandler(receipts, db, logger))

	// Quittances
	protected.Post("/receipts", receipt.GenerateHandler(receipts, db, logger))
	protected.Post("/receipts/month", receipt.GenerateMonthHandler(receipts, cfg.ReceiptOnlyPaid))
	protected.Get("/receipts", receipt.ListHandler(receipts))
	protected.Get("/receipts/:id", receipt.GetHandler(receipts))
	protected.Get("/receipts/:id/pdf", receipt.DocumentHandler(receipts))
	protected.Post("/receipts/:id/regenerate", receipt.RegenerateHandler(receipts, db, logger))
	protected.Post("/receipts/:id/sent", receipt.MarkSentHandler(receipts, db, logger))

	// Suivi
	protected.Get("/dashboard", report.DashboardHandler(reports))
	protected.Get("/dashboard/revenue", report.RevenueChartHandler(reports))
	protected.Get("/reports/monthly", report.MonthlySummaryHandler(reports))
	protected.Get("/reports/payments.xlsx", report.ExportPaymentsHandler(reports))
	protected.Get("/reports/expenses/:id/allocations.xlsx", report.ExportAllocationsHandler(reports))

	go func() {
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			logger.Fatal("serveur HTTP", zap.Error(err))
		}
	}()
	logger.Info("serveur démarré", zap.String("port", cfg.HTTPPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("arrêt en cours")
	if cron != nil {
		<-cron.Stop().Done()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("arrêt du serveur", zap.Error(err))
	}
}
