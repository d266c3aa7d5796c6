package inventory

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/auth"
	"kasa-backend/internal/database"
	"kasa-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var errNegativeStock = errors.New("stok sıfırın altına düşemez")

type CreateStockAdjustmentRequest struct {
	ProductID uint    `json:"product_id"`
	Delta     float64 `json:"delta"` // temel birimde, + giriş / - çıkış
	Reason    string  `json:"reason"`
}

type StockAdjustmentResponse struct {
	ID          uint    `json:"id"`
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	Delta       float64 `json:"delta"`
	StockAfter  float64 `json:"stock_after,omitempty"`
	Reason      string  `json:"reason"`
	UserID      uint    `json:"user_id"`
	CreatedAt   string  `json:"created_at"`
}

// POST /api/stock-adjustments
func CreateStockAdjustmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateStockAdjustmentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if body.ProductID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "product_id zorunlu")
		}
		if body.Delta == 0 || math.IsNaN(body.Delta) || math.IsInf(body.Delta, 0) {
			return fiber.NewError(fiber.StatusBadRequest, "delta sıfırdan farklı bir sayı olmalı")
		}
		reason := strings.TrimSpace(body.Reason)
		if reason == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Açıklama (reason) zorunlu")
		}

		userID, _ := c.Locals(auth.CtxUserIDKey).(uint)

		var p models.Product
		if err := database.DB.First(&p, "id = ?", body.ProductID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		adj := models.StockAdjustment{
			ProductID: p.ID,
			Delta:     body.Delta,
			Reason:    reason,
			UserID:    userID,
		}

		var stockAfter float64
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			// Kontrol ve artış tek UPDATE'te; eşzamanlı düzeltmeler stoğu eksiye düşüremez
			upd := tx.Model(&models.Product{}).
				Where("id = ? AND stock + ? >= 0", p.ID, body.Delta).
				UpdateColumn("stock", gorm.Expr("stock + ?", body.Delta))
			if upd.Error != nil {
				return upd.Error
			}
			if upd.RowsAffected == 0 {
				return errNegativeStock
			}

			var current models.Product
			if err := tx.Select("id", "stock").First(&current, p.ID).Error; err != nil {
				return err
			}
			stockAfter = current.Stock
			return tx.Create(&adj).Error
		})
		if errors.Is(err, errNegativeStock) {
			var current models.Product
			if err := database.DB.Select("id", "stock").First(&current, p.ID).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
			}
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Stok yetersiz: mevcut %.3f, düzeltme %.3f", current.Stock, body.Delta))
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok düzeltmesi kaydedilemedi")
		}

		res := StockAdjustmentResponse{
			ID:          adj.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Delta:       adj.Delta,
			StockAfter:  stockAfter,
			Reason:      adj.Reason,
			UserID:      adj.UserID,
			CreatedAt:   adj.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}

		audit.Record(c, audit.LogOptions{
			EntityType:  "stock_adjustment",
			EntityID:    adj.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Stok düzeltmesi: %s (%+.3f)", p.Name, adj.Delta),
			Before:      fiber.Map{"stock": stockAfter - adj.Delta},
			After:       res,
		})

		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GET /api/stock-adjustments?product_id=5&limit=100
func ListStockAdjustmentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Preload("Product").Order("created_at desc, id desc")
		if pid := c.QueryInt("product_id", 0); pid > 0 {
			dbq = dbq.Where("product_id = ?", pid)
		}
		limit := c.QueryInt("limit", 100)
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		var rows []models.StockAdjustment
		if err := dbq.Limit(limit).Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok hareketleri listelenemedi")
		}

		res := make([]StockAdjustmentResponse, 0, len(rows))
		for _, r := range rows {
			res = append(res, StockAdjustmentResponse{
				ID:          r.ID,
				ProductID:   r.ProductID,
				ProductName: r.Product.Name,
				Delta:       r.Delta,
				Reason:      r.Reason,
				UserID:      r.UserID,
				CreatedAt:   r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		return c.JSON(res)
	}
}
