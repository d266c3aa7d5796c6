package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kasa-backend/internal/models"
	"kasa-backend/internal/pricing"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNoLines         = errors.New("en az bir alım satırı gerekli")
	ErrUnknownProduct  = errors.New("ürün bulunamadı")
	ErrUnknownUnit     = errors.New("birim bulunamadı")
	ErrUnknownSupplier = errors.New("tedarikçi bulunamadı")
	ErrInvalidLine     = errors.New("miktar sıfırdan büyük, birim maliyet negatif olmamalı")
)

// LineInput: istemciden gelen satır. Tutar istemciden alınmaz, sunucuda hesaplanır.
type LineInput struct {
	ProductID      uint    `json:"product_id"`
	PurchaseUnitID uint    `json:"purchase_unit_id"` // 0 ise ürünün temel birimi
	Quantity       float64 `json:"quantity"`
	UnitCost       float64 `json:"unit_cost"`
}

type CreateInput struct {
	SupplierID    *uint
	Date          time.Time
	InvoiceNumber string
	Note          string
	Lines         []LineInput
}

type Service struct {
	db       *gorm.DB
	resolver Resolver
	logger   *zap.Logger
}

func NewService(db *gorm.DB, resolver Resolver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, resolver: resolver, logger: logger}
}

// BuildForm: satırları form üzerinden sırayla işler
// (ürün ata -> gerekirse birim seç -> miktar -> maliyet).
func (s *Service) BuildForm(ctx context.Context, inputs []LineInput) (*Form, error) {
	if len(inputs) == 0 {
		return nil, ErrNoLines
	}
	for i, in := range inputs {
		if in.Quantity <= 0 || in.UnitCost < 0 {
			return nil, fmt.Errorf("%d. satır: %w", i+1, ErrInvalidLine)
		}
	}

	products, err := s.loadProducts(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if err := s.checkUnits(ctx, inputs); err != nil {
		return nil, err
	}

	form := NewForm(s.resolver)
	for _, in := range inputs {
		p := products[in.ProductID]
		row := form.AddRow()

		if _, err := form.AssignProduct(row.ID, p); err != nil {
			return nil, err
		}
		if in.PurchaseUnitID != 0 && in.PurchaseUnitID != p.BaseUnitID {
			if _, err := form.SelectUnit(ctx, row.ID, in.PurchaseUnitID); err != nil {
				return nil, err
			}
		}
		if _, err := form.SetQuantity(row.ID, in.Quantity); err != nil {
			return nil, err
		}
		if _, err := form.SetUnitCost(row.ID, in.UnitCost); err != nil {
			return nil, err
		}
	}
	return form, nil
}

// Create: alımı, kalemlerini ve stok artışını tek transaction'da yazar
func (s *Service) Create(ctx context.Context, in CreateInput, userID uint) (*models.Purchase, error) {
	if in.SupplierID != nil {
		if err := s.checkSupplier(ctx, *in.SupplierID); err != nil {
			return nil, err
		}
	}

	form, err := s.BuildForm(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	lines := form.Rows()
	purchase := models.Purchase{
		SupplierID:    in.SupplierID,
		Date:          in.Date,
		InvoiceNumber: in.InvoiceNumber,
		Note:          in.Note,
		TotalAmount:   form.Total(),
		CreatedBy:     userID,
		Items:         make([]models.PurchaseItem, 0, len(lines)),
	}
	for _, l := range lines {
		purchase.Items = append(purchase.Items, models.PurchaseItem{
			ProductID:        l.ProductID,
			Quantity:         l.Quantity,
			UnitCost:         l.UnitCost,
			PurchaseUnitID:   l.PurchaseUnitID,
			ConversionFactor: l.ConversionFactor,
			TotalCost:        pricing.RoundMoney(l.TotalCost),
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&purchase).Error; err != nil {
			return fmt.Errorf("alım kaydedilemedi: %w", err)
		}
		for _, l := range lines {
			// Stok temel birimde artar
			delta := l.Quantity * l.ConversionFactor
			if err := tx.Model(&models.Product{}).
				Where("id = ?", l.ProductID).
				UpdateColumn("stock", gorm.Expr("stock + ?", delta)).Error; err != nil {
				return fmt.Errorf("ürün %d stoğu güncellenemedi: %w", l.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("alım kaydedildi",
		zap.Uint("purchase_id", purchase.ID),
		zap.Int("items", len(purchase.Items)),
		zap.Float64("total", purchase.TotalAmount),
	)
	return &purchase, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Purchase, error) {
	var p models.Purchase
	if err := s.db.WithContext(ctx).
		Preload("Supplier").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Items.Product").
		First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// List: tarih aralığı opsiyonel (sıfır değer filtre uygulanmaz)
func (s *Service) List(ctx context.Context, from, to time.Time, supplierID uint) ([]models.Purchase, error) {
	q := s.db.WithContext(ctx).Model(&models.Purchase{}).
		Preload("Supplier").
		Preload("Items.Product")
	if !from.IsZero() {
		q = q.Where("date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", to)
	}
	if supplierID != 0 {
		q = q.Where("supplier_id = ?", supplierID)
	}

	var rows []models.Purchase
	if err := q.Order("date desc, id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) SetReceiptURL(ctx context.Context, id uint, url string) error {
	res := s.db.WithContext(ctx).Model(&models.Purchase{}).Where("id = ?", id).Update("receipt_url", url)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Service) checkSupplier(ctx context.Context, id uint) error {
	var supplier models.Supplier
	if err := s.db.WithContext(ctx).First(&supplier, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownSupplier
		}
		return fmt.Errorf("tedarikçi okunamadı: %w", err)
	}
	return nil
}

func (s *Service) loadProducts(ctx context.Context, inputs []LineInput) (map[uint]models.Product, error) {
	ids := make([]uint, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.ProductID)
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("ürünler okunamadı: %w", err)
	}

	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w (ID: %d)", ErrUnknownProduct, id)
		}
	}
	return byID, nil
}

func (s *Service) checkUnits(ctx context.Context, inputs []LineInput) error {
	seen := make(map[uint]struct{})
	ids := make([]uint, 0, len(inputs))
	for _, in := range inputs {
		if in.PurchaseUnitID == 0 {
			continue
		}
		if _, ok := seen[in.PurchaseUnitID]; ok {
			continue
		}
		seen[in.PurchaseUnitID] = struct{}{}
		ids = append(ids, in.PurchaseUnitID)
	}
	if len(ids) == 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Unit{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return fmt.Errorf("birimler okunamadı: %w", err)
	}
	if int(count) != len(ids) {
		return ErrUnknownUnit
	}
	return nil
}

// UnitNames: export için birim ID -> ad
func (s *Service) UnitNames(ctx context.Context) (map[uint]string, error) {
	var units []models.Unit
	if err := s.db.WithContext(ctx).Find(&units).Error; err != nil {
		return nil, fmt.Errorf("birimler okunamadı: %w", err)
	}
	names := make(map[uint]string, len(units))
	for _, u := range units {
		names[u.ID] = u.Name
	}
	return names, nil
}
