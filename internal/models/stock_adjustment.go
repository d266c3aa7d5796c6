package models

import "time"

// StockAdjustment: elle stok düzeltmesi (sayım farkı, fire vs.). Delta temel birimde.
type StockAdjustment struct {
	ID        uint    `gorm:"primaryKey"`
	ProductID uint    `gorm:"index;not null"`
	Product   Product `gorm:"foreignKey:ProductID"`
	Delta     float64 `gorm:"not null"`
	Reason    string  `gorm:"size:255"`
	UserID    uint    `gorm:"index"`
	CreatedAt time.Time
}
