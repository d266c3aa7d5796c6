package database

import (
	"time"

	"kasa-backend/internal/config"
	"kasa-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		zap.L().Fatal("Veritabanına bağlanılamadı", zap.Error(err))
	}

	sqlDB, err := DB.DB()
	if err != nil {
		zap.L().Fatal("sql.DB alınamadı", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)

	if err := Migrate(DB); err != nil {
		zap.L().Fatal("AutoMigrate hatası", zap.Error(err))
	}

	// Aynı ürün için aynı yönde tek dönüşüm kenarı
	if err := DB.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_unit_conversions_edge
		ON unit_conversions(product_id, from_unit_id, to_unit_id)`).Error; err != nil {
		zap.L().Warn("unit_conversions edge index oluşturulamadı", zap.Error(err))
	}

	zap.L().Info("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

// Migrate: testlerde SQLite üzerinde de kullanılır
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Unit{},
		&models.Product{},
		&models.UnitConversion{},
		&models.PriceVariant{},
		&models.Supplier{},
		&models.Purchase{},
		&models.PurchaseItem{},
		&models.PurchaseReturn{},
		&models.PurchaseReturnItem{},
		&models.StockAdjustment{},
		&models.AuditLog{},
	)
}
