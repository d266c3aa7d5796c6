package pricing

import (
	"context"

	"kasa-backend/internal/models"

	"gorm.io/gorm"
)

// GormSource: unit_conversions tablosundan okur
type GormSource struct {
	db *gorm.DB
}

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

func (s *GormSource) ListConversions(ctx context.Context, productID uint) ([]models.UnitConversion, error) {
	var edges []models.UnitConversion
	if err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id asc").
		Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}
