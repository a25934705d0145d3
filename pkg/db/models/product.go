package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Category    string          `gorm:"column:category;not null"`
	Color       string          `gorm:"column:color;not null;default:''"`
	Sizes       []string        `gorm:"column:sizes;type:jsonb;serializer:json;not null"`
	ImageURL    string          `gorm:"column:image_url;not null"`
	Images      []string        `gorm:"column:images;type:jsonb;serializer:json;not null"`
	Description string          `gorm:"column:description;not null;default:''"`
	AIHint      string          `gorm:"column:ai_hint;not null;default:''"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// OffersSize reports whether size is one of the product's sizes.
func (p *Product) OffersSize(size string) bool {
	for _, candidate := range p.Sizes {
		if candidate == size {
			return true
		}
	}
	return false
}
