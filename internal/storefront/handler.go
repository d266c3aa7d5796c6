// Package storefront müşteri tarafı ürün ve fiyat uçları (giriş gerektirmez)
package storefront

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"kasa-backend/internal/database"
	"kasa-backend/internal/metrics"
	"kasa-backend/internal/models"
	"kasa-backend/internal/pricing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TierResponse struct {
	Name            string  `json:"name"`
	MinimumQuantity float64 `json:"minimum_quantity"`
	Price           float64 `json:"price"`
}

type StoreProductResponse struct {
	ID       uint           `json:"id"`
	Name     string         `json:"name"`
	Unit     string         `json:"unit"`
	Price    float64        `json:"price"`
	ImageURL string         `json:"image_url"`
	InStock  bool           `json:"in_stock"`
	Tiers    []TierResponse `json:"tiers"`
}

type CartLineRequest struct {
	ProductID uint    `json:"product_id"`
	Quantity  float64 `json:"quantity"`
}

type CartQuoteRequest struct {
	Items []CartLineRequest `json:"items"`
}

type CartLineResponse struct {
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	pricing.PriceQuote
	LineTotal float64 `json:"line_total"`
}

type CartQuoteResponse struct {
	Items []CartLineResponse `json:"items"`
	Total float64            `json:"total"`
}

func activeVariants(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

func toStoreProduct(p models.Product) StoreProductResponse {
	res := StoreProductResponse{
		ID:       p.ID,
		Name:     p.Name,
		Unit:     p.BaseUnit.Name,
		Price:    p.SellingPrice,
		ImageURL: p.ImageURL,
		InStock:  p.Stock > 0,
		Tiers:    make([]TierResponse, 0, len(p.PriceVariants)),
	}
	for _, v := range p.PriceVariants {
		if !v.IsActive {
			continue
		}
		res.Tiers = append(res.Tiers, TierResponse{Name: v.Name, MinimumQuantity: v.MinimumQuantity, Price: v.Price})
	}
	slices.SortFunc(res.Tiers, func(a, b TierResponse) int {
		return cmp.Compare(a.MinimumQuantity, b.MinimumQuantity)
	})
	return res
}

func loadActiveProduct(id uint) (models.Product, error) {
	var p models.Product
	err := database.DB.
		Preload("BaseUnit").
		Preload("PriceVariants", activeVariants).
		Where("is_active = ?", true).
		First(&p, "id = ?", id).Error
	return p, err
}

func recordQuote(q pricing.PriceQuote) {
	kind := "base"
	if q.IsWholesale {
		kind = "wholesale"
	}
	metrics.PriceQuotes.WithLabelValues(kind).Inc()
}

// GET /api/store/products?q=kola
func ListStoreProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Product{}).
			Preload("BaseUnit").
			Preload("PriceVariants", activeVariants).
			Where("is_active = ?", true)
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			dbq = dbq.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
		}

		var products []models.Product
		if err := dbq.Order("name asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürünler listelenemedi")
		}

		res := make([]StoreProductResponse, 0, len(products))
		for _, p := range products {
			res = append(res, toStoreProduct(p))
		}
		return c.JSON(res)
	}
}

// GET /api/store/products/:id/price?quantity=12
func ProductPriceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz ID")
		}
		quantity := c.QueryFloat("quantity", 1)
		if quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity sıfırdan büyük olmalı")
		}

		p, err := loadActiveProduct(uint(id))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		q := pricing.BestPrice(p, quantity)
		recordQuote(q)
		return c.JSON(q)
	}
}

// POST /api/store/cart/quote
func CartQuoteHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CartQuoteRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}
		if len(body.Items) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Sepet boş")
		}

		// Aynı ürün birden fazla satırda gelirse miktarlar toplanır, kademe toplam miktara göre seçilir
		order := make([]uint, 0, len(body.Items))
		qty := make(map[uint]float64, len(body.Items))
		for i, it := range body.Items {
			if it.ProductID == 0 || it.Quantity <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%d. satır: product_id ve pozitif quantity zorunlu", i+1))
			}
			if _, ok := qty[it.ProductID]; !ok {
				order = append(order, it.ProductID)
			}
			qty[it.ProductID] += it.Quantity
		}

		var products []models.Product
		if err := database.DB.
			Preload("PriceVariants", activeVariants).
			Where("is_active = ? AND id IN ?", true, order).
			Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürünler okunamadı")
		}
		byID := make(map[uint]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		res := CartQuoteResponse{Items: make([]CartLineResponse, 0, len(order))}
		totals := make([]float64, 0, len(order))
		for _, id := range order {
			p, ok := byID[id]
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Ürün satışta değil (ID: %d)", id))
			}
			q := pricing.BestPrice(p, qty[id])
			recordQuote(q)

			line := pricing.RoundMoney(q.Price * qty[id])
			totals = append(totals, line)
			res.Items = append(res.Items, CartLineResponse{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    qty[id],
				PriceQuote:  q,
				LineTotal:   line,
			})
		}
		res.Total = pricing.SumMoney(totals...)

		return c.JSON(res)
	}
}
