package models

import "time"

// PurchaseReturn: tedarikçiye iade. PurchaseID doluysa iade o alıma bağlıdır
// ve ürün başına alınan temel miktarı aşamaz.
type PurchaseReturn struct {
	ID          uint      `gorm:"primaryKey"`
	PurchaseID  *uint     `gorm:"index"`
	Purchase    *Purchase `gorm:"foreignKey:PurchaseID"`
	SupplierID  *uint     `gorm:"index"`
	Supplier    *Supplier `gorm:"foreignKey:SupplierID"`
	Date        time.Time `gorm:"index;not null"`
	Reason      string    `gorm:"size:255;not null"`
	TotalAmount float64   `gorm:"not null"`
	CreatedBy   uint      `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Items []PurchaseReturnItem `gorm:"foreignKey:PurchaseReturnID;constraint:OnDelete:CASCADE"`
}

// PurchaseReturnItem: iade kalemi, alım kalemiyle aynı hesap
type PurchaseReturnItem struct {
	ID               uint    `gorm:"primaryKey"`
	PurchaseReturnID uint    `gorm:"index;not null"`
	ProductID        uint    `gorm:"index;not null"`
	Product          Product `gorm:"foreignKey:ProductID"`
	Quantity         float64 `gorm:"not null"`
	UnitCost         float64 `gorm:"not null"`
	PurchaseUnitID   uint    `gorm:"not null"`
	ConversionFactor float64 `gorm:"not null;default:1"`
	TotalCost        float64 `gorm:"not null"`
	CreatedAt        time.Time
}
