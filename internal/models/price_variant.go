package models

import "time"

// PriceVariant: miktar bazlı fiyat kademesi (toptan fiyat)
type PriceVariant struct {
	ID              uint    `gorm:"primaryKey"`
	ProductID       uint    `gorm:"index;not null"`
	Name            string  `gorm:"size:100;not null"`
	MinimumQuantity float64 `gorm:"not null"`
	Price           float64 `gorm:"not null"`
	IsActive        bool    `gorm:"not null"`
	CreatedAt       time.Time
}
