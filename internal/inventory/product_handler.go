package inventory

import (
	"fmt"
	"strings"

	"kasa-backend/internal/audit"
	"kasa-backend/internal/database"
	"kasa-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type ConversionResponse struct {
	ID               uint    `json:"id"`
	FromUnitID       uint    `json:"from_unit_id"`
	ToUnitID         uint    `json:"to_unit_id"`
	ConversionFactor float64 `json:"conversion_factor"`
}

type PriceVariantResponse struct {
	ID              uint    `json:"id"`
	Name            string  `json:"name"`
	MinimumQuantity float64 `json:"minimum_quantity"`
	Price           float64 `json:"price"`
	IsActive        bool    `json:"is_active"`
}

type ProductResponse struct {
	ID            uint                   `json:"id"`
	Name          string                 `json:"name"`
	SKU           *string                `json:"sku"`
	BaseUnitID    uint                   `json:"base_unit_id"`
	BaseUnitName  string                 `json:"base_unit_name"`
	SellingPrice  float64                `json:"selling_price"`
	CostPrice     float64                `json:"cost_price"`
	Stock         float64                `json:"stock"`
	ImageURL      string                 `json:"image_url"`
	IsActive      bool                   `json:"is_active"`
	Conversions   []ConversionResponse   `json:"conversions,omitempty"`
	PriceVariants []PriceVariantResponse `json:"price_variants,omitempty"`
}

type CreateProductRequest struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"` // Opsiyonel
	BaseUnitID   uint    `json:"base_unit_id"`
	SellingPrice float64 `json:"selling_price"`
	CostPrice    float64 `json:"cost_price"`
}

type UpdateProductRequest struct {
	Name         *string  `json:"name"`
	SKU          *string  `json:"sku"`
	BaseUnitID   *uint    `json:"base_unit_id"`
	SellingPrice *float64 `json:"selling_price"`
	CostPrice    *float64 `json:"cost_price"`
	IsActive     *bool    `json:"is_active"`
}

func toProductResponse(p models.Product) ProductResponse {
	res := ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		SKU:          p.SKU,
		BaseUnitID:   p.BaseUnitID,
		BaseUnitName: p.BaseUnit.Name,
		SellingPrice: p.SellingPrice,
		CostPrice:    p.CostPrice,
		Stock:        p.Stock,
		ImageURL:     p.ImageURL,
		IsActive:     p.IsActive,
	}
	for _, c := range p.Conversions {
		res.Conversions = append(res.Conversions, ConversionResponse{
			ID:               c.ID,
			FromUnitID:       c.FromUnitID,
			ToUnitID:         c.ToUnitID,
			ConversionFactor: c.ConversionFactor,
		})
	}
	for _, v := range p.PriceVariants {
		res.PriceVariants = append(res.PriceVariants, PriceVariantResponse{
			ID:              v.ID,
			Name:            v.Name,
			MinimumQuantity: v.MinimumQuantity,
			Price:           v.Price,
			IsActive:        v.IsActive,
		})
	}
	return res
}

func parseID(c *fiber.Ctx, name string) (uint, error) {
	var id uint
	if _, err := fmt.Sscan(c.Params(name), &id); err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Geçersiz ID")
	}
	return id, nil
}

func unitExists(id uint) bool {
	var count int64
	database.DB.Model(&models.Unit{}).Where("id = ?", id).Count(&count)
	return count > 0
}

func skuTaken(sku string, exceptID uint) bool {
	var count int64
	database.DB.Model(&models.Product{}).Where("sku = ? AND id <> ?", sku, exceptID).Count(&count)
	return count > 0
}

// GET /api/products?q=kola&include_inactive=true
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Product{}).Preload("BaseUnit")

		if c.Query("include_inactive") != "true" {
			dbq = dbq.Where("is_active = ?", true)
		}
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			dbq = dbq.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
		}

		var products []models.Product
		if err := dbq.Order("name asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürünler listelenemedi")
		}

		res := make([]ProductResponse, 0, len(products))
		for _, p := range products {
			res = append(res, toProductResponse(p))
		}
		return c.JSON(res)
	}
}

// GET /api/products/:id (dönüşümler ve fiyat kademeleri dahil)
func GetProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.
			Preload("BaseUnit").
			Preload("Conversions").
			Preload("PriceVariants").
			First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}
		return c.JSON(toProductResponse(p))
	}
}

// POST /api/admin/products
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.SKU = strings.TrimSpace(body.SKU)

		if body.Name == "" || body.BaseUnitID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "name ve base_unit_id zorunlu")
		}
		if body.SellingPrice < 0 || body.CostPrice < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Fiyatlar negatif olamaz")
		}
		if !unitExists(body.BaseUnitID) {
			return fiber.NewError(fiber.StatusBadRequest, "Temel birim bulunamadı")
		}

		p := models.Product{
			Name:         body.Name,
			BaseUnitID:   body.BaseUnitID,
			SellingPrice: body.SellingPrice,
			CostPrice:    body.CostPrice,
			IsActive:     true,
		}
		if body.SKU != "" {
			if skuTaken(body.SKU, 0) {
				return fiber.NewError(fiber.StatusBadRequest, "Bu stok kodu zaten kullanılıyor")
			}
			p.SKU = &body.SKU
		}

		if err := database.DB.Create(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün oluşturulamadı")
		}
		database.DB.Preload("BaseUnit").First(&p, p.ID)

		audit.Record(c, audit.LogOptions{
			EntityType:  "product",
			EntityID:    p.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Ürün eklendi: %s", p.Name),
			After:       toProductResponse(p),
		})

		return c.Status(fiber.StatusCreated).JSON(toProductResponse(p))
	}
}

// PUT /api/admin/products/:id
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.Preload("BaseUnit").First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}
		before := toProductResponse(p)

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Name boş olamaz")
			}
			p.Name = name
		}

		if body.SKU != nil {
			sku := strings.TrimSpace(*body.SKU)
			if sku == "" {
				p.SKU = nil
			} else {
				if skuTaken(sku, p.ID) {
					return fiber.NewError(fiber.StatusBadRequest, "Bu stok kodu zaten kullanılıyor")
				}
				p.SKU = &sku
			}
		}

		if body.BaseUnitID != nil && *body.BaseUnitID != p.BaseUnitID {
			// Stok temel birimde tutulduğu için stoklu üründe birim değişmez
			if p.Stock != 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Stoğu olan ürünün temel birimi değiştirilemez")
			}
			if !unitExists(*body.BaseUnitID) {
				return fiber.NewError(fiber.StatusBadRequest, "Temel birim bulunamadı")
			}
			p.BaseUnitID = *body.BaseUnitID
			p.BaseUnit = models.Unit{}
		}

		if body.SellingPrice != nil {
			if *body.SellingPrice < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Satış fiyatı negatif olamaz")
			}
			p.SellingPrice = *body.SellingPrice
		}
		if body.CostPrice != nil {
			if *body.CostPrice < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Maliyet negatif olamaz")
			}
			p.CostPrice = *body.CostPrice
		}
		if body.IsActive != nil {
			p.IsActive = *body.IsActive
		}

		if err := database.DB.Omit("BaseUnit").Save(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün güncellenemedi")
		}
		database.DB.Preload("BaseUnit").First(&p, p.ID)

		after := toProductResponse(p)
		audit.Record(c, audit.LogOptions{
			EntityType:  "product",
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Ürün güncellendi: %s", p.Name),
			Before:      before,
			After:       after,
		})

		return c.JSON(after)
	}
}

// DELETE /api/admin/products/:id
// Alımlarda kullanılmış ürün silinmez, pasife alınmalı.
func DeleteProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		var p models.Product
		if err := database.DB.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		var used int64
		if err := database.DB.Model(&models.PurchaseItem{}).Where("product_id = ?", id).Count(&used).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanım kontrolü yapılamadı")
		}
		if used == 0 {
			if err := database.DB.Model(&models.PurchaseReturnItem{}).Where("product_id = ?", id).Count(&used).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Kullanım kontrolü yapılamadı")
			}
		}
		if used > 0 {
			return fiber.NewError(fiber.StatusConflict, "Alımlarda kullanılan ürün silinemez, pasife alın")
		}

		tx := database.DB.Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem başlatılamadı")
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.UnitConversion{}).Error; err != nil {
			tx.Rollback()
			return fiber.NewError(fiber.StatusInternalServerError, "Dönüşümler silinemedi")
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.PriceVariant{}).Error; err != nil {
			tx.Rollback()
			return fiber.NewError(fiber.StatusInternalServerError, "Fiyat kademeleri silinemedi")
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.StockAdjustment{}).Error; err != nil {
			tx.Rollback()
			return fiber.NewError(fiber.StatusInternalServerError, "Stok hareketleri silinemedi")
		}
		if err := tx.Delete(&p).Error; err != nil {
			tx.Rollback()
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün silinemedi")
		}
		if err := tx.Commit().Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İşlem tamamlanamadı")
		}

		audit.Record(c, audit.LogOptions{
			EntityType:  "product",
			EntityID:    p.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Ürün silindi: %s", p.Name),
			Before:      toProductResponse(p),
		})

		return c.SendStatus(fiber.StatusNoContent)
	}
}
