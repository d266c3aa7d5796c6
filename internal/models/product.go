package models

import "time"

// Product: satılan/alınan ürün. Stok her zaman temel birimde (BaseUnit) tutulur.
type Product struct {
	ID           uint    `gorm:"primaryKey"`
	Name         string  `gorm:"size:150;not null"`
	SKU          *string `gorm:"size:50;uniqueIndex"` // opsiyonel barkod/stok kodu
	BaseUnitID   uint    `gorm:"index;not null"`
	BaseUnit     Unit    `gorm:"foreignKey:BaseUnitID"`
	SellingPrice float64 `gorm:"not null;default:0"`
	CostPrice    float64 `gorm:"not null;default:0"`
	Stock        float64 `gorm:"not null;default:0"` // temel birim cinsinden
	ImageURL     string  `gorm:"size:500"`
	IsActive     bool    `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Conversions   []UnitConversion `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	PriceVariants []PriceVariant   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}
