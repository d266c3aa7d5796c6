package models

import "time"

// Purchase: tedarikçiden alım (fatura). Kalemler PurchaseItem'da.
type Purchase struct {
	ID            uint      `gorm:"primaryKey"`
	SupplierID    *uint     `gorm:"index"`
	Supplier      *Supplier `gorm:"foreignKey:SupplierID"`
	Date          time.Time `gorm:"index;not null"`
	InvoiceNumber string    `gorm:"size:100"`
	TotalAmount   float64   `gorm:"not null"`
	Note          string    `gorm:"size:255"`
	ReceiptURL    string    `gorm:"size:500"`
	CreatedBy     uint      `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Items []PurchaseItem `gorm:"foreignKey:PurchaseID;constraint:OnDelete:CASCADE"`
}

// PurchaseItem: alım kalemi. TotalCost = Quantity * UnitCost * ConversionFactor
type PurchaseItem struct {
	ID               uint    `gorm:"primaryKey"`
	PurchaseID       uint    `gorm:"index;not null"`
	ProductID        uint    `gorm:"index;not null"`
	Product          Product `gorm:"foreignKey:ProductID"`
	Quantity         float64 `gorm:"not null"`
	UnitCost         float64 `gorm:"not null"`
	PurchaseUnitID   uint    `gorm:"not null"`
	ConversionFactor float64 `gorm:"not null;default:1"`
	TotalCost        float64 `gorm:"not null"`
	CreatedAt        time.Time
}
