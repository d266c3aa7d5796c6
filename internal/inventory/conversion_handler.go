package inventory

import (
	"fmt"
	"strings"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/database"
	"kasa-backend/internal/models"
	"kasa-backend/internal/pricing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Invalidator: dönüşümler kaydedilince ürünün cache kaydını düşürür
type Invalidator interface {
	Invalidate(productID uint)
}

type ConversionRequest struct {
	FromUnitID       uint    `json:"from_unit_id"`
	ToUnitID         uint    `json:"to_unit_id"`
	ConversionFactor float64 `json:"conversion_factor"`
}

type SaveConversionsRequest struct {
	Conversions []ConversionRequest `json:"conversions"`
}

type PriceVariantRequest struct {
	Name            string  `json:"name"`
	MinimumQuantity float64 `json:"minimum_quantity"`
	Price           float64 `json:"price"`
	IsActive        *bool   `json:"is_active"` // yoksa true
}

type SavePriceVariantsRequest struct {
	Variants []PriceVariantRequest `json:"variants"`
}

func validateConversions(reqs []ConversionRequest) error {
	seen := make(map[[2]uint]bool, len(reqs))
	unitIDs := make(map[uint]struct{})
	for i, r := range reqs {
		if r.FromUnitID == 0 || r.ToUnitID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%d. satır: from_unit_id ve to_unit_id zorunlu", i+1))
		}
		if r.FromUnitID == r.ToUnitID {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%d. satır: aynı birim kendisine dönüştürülemez", i+1))
		}
		if r.ConversionFactor <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%d. satır: conversion_factor > 0 olmalı", i+1))
		}
		key := [2]uint{r.FromUnitID, r.ToUnitID}
		if seen[key] {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%d. satır: aynı dönüşüm iki kez girilmiş", i+1))
		}
		seen[key] = true
		unitIDs[r.FromUnitID] = struct{}{}
		unitIDs[r.ToUnitID] = struct{}{}
	}

	if len(unitIDs) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(unitIDs))
	for id := range unitIDs {
		ids = append(ids, id)
	}
	var count int64
	if err := database.DB.Model(&models.Unit{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Birimler okunamadı")
	}
	if int(count) != len(ids) {
		return fiber.NewError(fiber.StatusBadRequest, "Tanımsız birim kullanılmış")
	}
	return nil
}

// PUT /api/admin/products/:id/conversions
// Ürünün tüm dönüşümleri silinip gönderilen liste yeniden yazılır.
func SaveConversionsHandler(cache Invalidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.Preload("Conversions").First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		var body SaveConversionsRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if err := validateConversions(body.Conversions); err != nil {
			return err
		}

		rows := make([]models.UnitConversion, 0, len(body.Conversions))
		for _, r := range body.Conversions {
			rows = append(rows, models.UnitConversion{
				ProductID:        p.ID,
				FromUnitID:       r.FromUnitID,
				ToUnitID:         r.ToUnitID,
				ConversionFactor: r.ConversionFactor,
			})
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("product_id = ?", p.ID).Delete(&models.UnitConversion{}).Error; err != nil {
				return err
			}
			if len(rows) == 0 {
				return nil
			}
			return tx.Create(&rows).Error
		})
		// Başarısız olsa bile cache'i düşür, bir sonraki okuma depodan gelsin
		cache.Invalidate(p.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dönüşümler kaydedilemedi")
		}

		res := make([]ConversionResponse, 0, len(rows))
		for _, r := range rows {
			res = append(res, ConversionResponse{
				ID:               r.ID,
				FromUnitID:       r.FromUnitID,
				ToUnitID:         r.ToUnitID,
				ConversionFactor: r.ConversionFactor,
			})
		}

		audit.Record(c, audit.LogOptions{
			EntityType:  "product_conversions",
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Birim dönüşümleri güncellendi: %s (%d kayıt)", p.Name, len(rows)),
			Before:      toProductResponse(p).Conversions,
			After:       res,
		})

		return c.JSON(res)
	}
}

// PUT /api/admin/products/:id/price-variants
func SavePriceVariantsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.Preload("PriceVariants").First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		var body SavePriceVariantsRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		rows := make([]models.PriceVariant, 0, len(body.Variants))
		for i, v := range body.Variants {
			name := strings.TrimSpace(v.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%d. kademe: isim zorunlu", i+1))
			}
			if v.MinimumQuantity <= 0 || v.Price < 0 {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%d. kademe: minimum_quantity > 0 ve price >= 0 olmalı", i+1))
			}
			active := true
			if v.IsActive != nil {
				active = *v.IsActive
			}
			rows = append(rows, models.PriceVariant{
				ProductID:       p.ID,
				Name:            name,
				MinimumQuantity: v.MinimumQuantity,
				Price:           v.Price,
				IsActive:        active,
			})
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("product_id = ?", p.ID).Delete(&models.PriceVariant{}).Error; err != nil {
				return err
			}
			if len(rows) == 0 {
				return nil
			}
			return tx.Create(&rows).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyat kademeleri kaydedilemedi")
		}

		before := toProductResponse(p).PriceVariants
		p.PriceVariants = rows
		after := toProductResponse(p).PriceVariants

		audit.Record(c, audit.LogOptions{
			EntityType:  "product_price_variants",
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Fiyat kademeleri güncellendi: %s (%d kayıt)", p.Name, len(rows)),
			Before:      before,
			After:       after,
		})

		if after == nil {
			after = []PriceVariantResponse{}
		}
		return c.JSON(after)
	}
}

// GET /api/products/:id/conversion-factor?from=2&to=1
// to verilmezse ürünün temel birimi kullanılır.
func ConversionFactorHandler(resolver *pricing.ConversionResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		fromID := c.QueryInt("from", 0)
		toID := c.QueryInt("to", int(p.BaseUnitID))
		if fromID < 0 || toID < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz birim ID")
		}
		from, to := uint(fromID), uint(toID)

		res, err := resolver.Explain(c.UserContext(), p.ID, from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "Dönüşümler okunamadı")
		}

		return c.JSON(fiber.Map{
			"product_id":   p.ID,
			"from_unit_id": from,
			"to_unit_id":   to,
			"factor":       res.Factor,
			"method":       res.Method,
			"malformed":    res.Malformed,
		})
	}
}
