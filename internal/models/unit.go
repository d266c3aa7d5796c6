package models

import "time"

// Unit: ölçü birimi (koli, adet, kg ...)
type Unit struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:50;not null;unique"`
	Abbreviation string `gorm:"size:20"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UnitConversion: bir ürün için yönlü dönüşüm kenarı.
// 1 FromUnit = ConversionFactor ToUnit
type UnitConversion struct {
	ID               uint    `gorm:"primaryKey"`
	ProductID        uint    `gorm:"index;not null"`
	FromUnitID       uint    `gorm:"not null"`
	ToUnitID         uint    `gorm:"not null"`
	ConversionFactor float64 `gorm:"not null"`
	CreatedAt        time.Time
}
