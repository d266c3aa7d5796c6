package models

import "time"

type Supplier struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:150;not null;unique"`
	Phone     string `gorm:"size:50"`
	Note      string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
