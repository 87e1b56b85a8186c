package models

import "time"

// Product is a catalog entry. InStock is never persisted; it is filled
// from StockQuantity whenever a product is read.
type Product struct {
	ProductID     string    `json:"productId" bson:"productId"`
	Name          string    `json:"name" bson:"name"`
	Description   string    `json:"description,omitempty" bson:"description,omitempty"`
	Category      string    `json:"category,omitempty" bson:"category,omitempty"`
	Unit          string    `json:"unit,omitempty" bson:"unit,omitempty"` // e.g. "50g jar"
	Price         float64   `json:"price" bson:"price"`
	StockQuantity int       `json:"stockQuantity" bson:"stockQuantity"`
	InStock       bool      `json:"inStock" bson:"-"`
	CreatedAt     time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// Derive fills the computed fields.
func (p *Product) Derive() *Product {
	p.InStock = p.StockQuantity > 0
	return p
}
