package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/auth"
	"kasa-backend/internal/config"
	"kasa-backend/internal/database"
	"kasa-backend/internal/inventory"
	"kasa-backend/internal/jobs"
	"kasa-backend/internal/logging"
	"kasa-backend/internal/metrics"
	"kasa-backend/internal/models"
	"kasa-backend/internal/pricing"
	"kasa-backend/internal/purchase"
	"kasa-backend/internal/storage"
	"kasa-backend/internal/storefront"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger := logging.MustNew(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync() //nolint:errcheck

	database.Init(cfg)

	// Birim dönüşümleri: cache + çözümleyici
	conversions := pricing.NewConversionTable(pricing.NewGormSource(database.DB), cfg.ConversionCacheTTL)
	resolver := pricing.NewConversionResolver(conversions, logger.Named("conversion"))

	purchases := purchase.NewService(database.DB, resolver, logger.Named("purchase"))
	submitGuard := purchase.NewSubmitGuard()

	uploader, err := storage.New(context.Background(), cfg.Storage, logger.Named("storage"))
	if err != nil {
		logger.Fatal("dosya deposu kurulamadı", zap.Error(err))
	}

	purgeJob, err := jobs.StartCachePurge(cfg.CachePurgeSchedule, conversions, logger.Named("jobs"))
	if err != nil {
		logger.Fatal("cache temizleme başlatılamadı", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 6 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			logger.Error("beklenmeyen hata", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins virgülle ayrılmış gelir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler())
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Mağaza (giriş gerektirmez)
	store := api.Group("/store")
	store.Get("/products", storefront.ListStoreProductsHandler())
	store.Get("/products/:id/price", storefront.ProductPriceHandler())
	store.Post("/cart/quote", storefront.CartQuoteHandler())

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	// Kullanıcılar
	adminRoutes.Post("/users", auth.CreateUserHandler())
	adminRoutes.Get("/users", auth.ListUsersHandler())

	// Birimler
	adminRoutes.Post("/units", inventory.CreateUnitHandler())
	adminRoutes.Put("/units/:id", inventory.UpdateUnitHandler())
	adminRoutes.Delete("/units/:id", inventory.DeleteUnitHandler())

	// Ürün yönetimi
	adminRoutes.Post("/products", inventory.CreateProductHandler())
	adminRoutes.Put("/products/:id", inventory.UpdateProductHandler())
	adminRoutes.Delete("/products/:id", inventory.DeleteProductHandler())
	adminRoutes.Put("/products/:id/conversions", inventory.SaveConversionsHandler(conversions))
	adminRoutes.Put("/products/:id/price-variants", inventory.SavePriceVariantsHandler())
	adminRoutes.Post("/products/:id/image", inventory.UploadProductImageHandler(uploader))

	// Tedarikçiler
	adminRoutes.Post("/suppliers", inventory.CreateSupplierHandler())
	adminRoutes.Delete("/suppliers/:id", inventory.DeleteSupplierHandler())

	// Audit log
	protected.Get("/audit-logs", auth.RequireRole(models.RoleAdmin), audit.ListAuditLogsHandler())

	// Ortak (auth gerektiren) route'lar
	protected.Get("/units", inventory.ListUnitsHandler())
	protected.Get("/products", inventory.ListProductsHandler())
	protected.Get("/products/:id", inventory.GetProductHandler())
	protected.Get("/products/:id/conversion-factor", inventory.ConversionFactorHandler(resolver))
	protected.Get("/suppliers", inventory.ListSuppliersHandler())

	// Alımlar (export, :id'den önce)
	protected.Post("/purchases/quote", purchase.QuotePurchaseHandler(purchases))
	protected.Get("/purchases/export", purchase.ExportPurchasesHandler(purchases))
	protected.Post("/purchases", purchase.CreatePurchaseHandler(purchases, submitGuard))
	protected.Get("/purchases", purchase.ListPurchasesHandler(purchases))
	protected.Get("/purchases/:id", purchase.GetPurchaseHandler(purchases))
	protected.Post("/purchases/:id/receipt", purchase.UploadReceiptHandler(purchases, uploader))

	// Tedarikçiye iadeler
	protected.Post("/purchase-returns", purchase.CreatePurchaseReturnHandler(purchases, submitGuard))
	protected.Get("/purchase-returns", purchase.ListPurchaseReturnsHandler(purchases))
	protected.Get("/purchase-returns/:id", purchase.GetPurchaseReturnHandler(purchases))

	// Stok düzeltmeleri
	protected.Post("/stock-adjustments", inventory.CreateStockAdjustmentHandler())
	protected.Get("/stock-adjustments", inventory.ListStockAdjustmentsHandler())

	go func() {
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			logger.Fatal("sunucu başlatılamadı", zap.Error(err))
		}
	}()
	logger.Info("sunucu dinleniyor", zap.String("port", cfg.HTTPPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("kapatılıyor")
	<-purgeJob.Stop().Done()
	conversions.Clear()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("sunucu düzgün kapanmadı", zap.Error(err))
	}
}
