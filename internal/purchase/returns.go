package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kasa-backend/internal/models"
	"kasa-backend/internal/pricing"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNoReason          = errors.New("iade açıklaması zorunlu")
	ErrUnknownPurchase   = errors.New("iade edilecek alım bulunamadı")
	ErrExceedsPurchased  = errors.New("iade miktarı alınan miktarı aşıyor")
	ErrInsufficientStock = errors.New("stok iade için yetersiz")
)

// float temel miktar karşılaştırması
const baseQtyEpsilon = 1e-9

type ReturnInput struct {
	PurchaseID *uint
	SupplierID *uint
	Date       time.Time
	Reason     string
	Lines      []LineInput
}

// CreateReturn: iadeyi, kalemlerini ve stok düşüşünü tek transaction'da yazar.
// Satırlar alımdaki gibi forma girer, stok quantity * factor kadar azalır.
func (s *Service) CreateReturn(ctx context.Context, in ReturnInput, userID uint) (*models.PurchaseReturn, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, ErrNoReason
	}

	supplierID := in.SupplierID
	if in.PurchaseID != nil {
		var p models.Purchase
		if err := s.db.WithContext(ctx).Select("id", "supplier_id").First(&p, "id = ?", *in.PurchaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUnknownPurchase
			}
			return nil, fmt.Errorf("alım okunamadı: %w", err)
		}
		supplierID = p.SupplierID
	} else if supplierID != nil {
		if err := s.checkSupplier(ctx, *supplierID); err != nil {
			return nil, err
		}
	}

	form, err := s.BuildForm(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	lines := form.Rows()
	ret := models.PurchaseReturn{
		PurchaseID:  in.PurchaseID,
		SupplierID:  supplierID,
		Date:        in.Date,
		Reason:      reason,
		TotalAmount: form.Total(),
		CreatedBy:   userID,
		Items:       make([]models.PurchaseReturnItem, 0, len(lines)),
	}
	for _, l := range lines {
		ret.Items = append(ret.Items, models.PurchaseReturnItem{
			ProductID:        l.ProductID,
			Quantity:         l.Quantity,
			UnitCost:         l.UnitCost,
			PurchaseUnitID:   l.PurchaseUnitID,
			ConversionFactor: l.ConversionFactor,
			TotalCost:        pricing.RoundMoney(l.TotalCost),
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.PurchaseID != nil {
			if err := checkReturnable(tx, *in.PurchaseID, lines); err != nil {
				return err
			}
		}
		if err := tx.Create(&ret).Error; err != nil {
			return fmt.Errorf("iade kaydedilemedi: %w", err)
		}
		for _, l := range lines {
			delta := l.Quantity * l.ConversionFactor
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", l.ProductID, delta).
				UpdateColumn("stock", gorm.Expr("stock - ?", delta))
			if res.Error != nil {
				return fmt.Errorf("ürün %d stoğu güncellenemedi: %w", l.ProductID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("ürün %d: %w", l.ProductID, ErrInsufficientStock)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("iade kaydedildi",
		zap.Uint("return_id", ret.ID),
		zap.Int("items", len(ret.Items)),
		zap.Float64("total", ret.TotalAmount),
	)
	return &ret, nil
}

// checkReturnable: ürün başına önceki iadeler + bu iade <= alınan temel miktar
func checkReturnable(tx *gorm.DB, purchaseID uint, lines []Line) error {
	// Alım satırı güncellenerek kilitlenir, aynı alıma eşzamanlı iadeler sırayla kontrol edilir
	if err := tx.Model(&models.Purchase{}).Where("id = ?", purchaseID).
		UpdateColumn("updated_at", time.Now()).Error; err != nil {
		return fmt.Errorf("alım kilitlenemedi: %w", err)
	}

	var bought []models.PurchaseItem
	if err := tx.Where("purchase_id = ?", purchaseID).Find(&bought).Error; err != nil {
		return fmt.Errorf("alım kalemleri okunamadı: %w", err)
	}
	var returned []models.PurchaseReturnItem
	if err := tx.Where("purchase_return_id IN (?)",
		tx.Model(&models.PurchaseReturn{}).Select("id").Where("purchase_id = ?", purchaseID),
	).Find(&returned).Error; err != nil {
		return fmt.Errorf("önceki iadeler okunamadı: %w", err)
	}

	available := make(map[uint]float64, len(bought))
	for _, it := range bought {
		available[it.ProductID] += it.Quantity * it.ConversionFactor
	}
	for _, it := range returned {
		available[it.ProductID] -= it.Quantity * it.ConversionFactor
	}

	requested := make(map[uint]float64, len(lines))
	for _, l := range lines {
		requested[l.ProductID] += l.Quantity * l.ConversionFactor
	}
	for productID, qty := range requested {
		left, ok := available[productID]
		if !ok {
			return fmt.Errorf("ürün %d bu alımda yok: %w", productID, ErrExceedsPurchased)
		}
		if qty > left+baseQtyEpsilon {
			return fmt.Errorf("ürün %d, kalan %.3f: %w", productID, left, ErrExceedsPurchased)
		}
	}
	return nil
}

func (s *Service) GetReturn(ctx context.Context, id uint) (*models.PurchaseReturn, error) {
	var r models.PurchaseReturn
	if err := s.db.WithContext(ctx).
		Preload("Supplier").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Items.Product").
		First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReturns: purchaseID 0 ise tüm iadeler
func (s *Service) ListReturns(ctx context.Context, from, to time.Time, purchaseID uint) ([]models.PurchaseReturn, error) {
	q := s.db.WithContext(ctx).Model(&models.PurchaseReturn{}).
		Preload("Supplier").
		Preload("Items.Product")
	if !from.IsZero() {
		q = q.Where("date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", to)
	}
	if purchaseID != 0 {
		q = q.Where("purchase_id = ?", purchaseID)
	}

	var rows []models.PurchaseReturn
	if err := q.Order("date desc, id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
