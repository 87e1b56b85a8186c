package models

import (
	"slices"
	"time"
)

// CartItem is one line of a user's cart. UnitPrice is captured when the
// product is first added and is not refreshed by later merges.
type CartItem struct {
	ProductID string    `json:"productId" bson:"productId"`
	Name      string    `json:"name" bson:"name"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	UnitPrice float64   `json:"unitPrice" bson:"unitPrice"`
	AddedAt   time.Time `json:"addedAt" bson:"addedAt"`
}

// Cart is the single cart document owned by a user.
// TotalItems and TotalAmount are derived from Items on every write.
type Cart struct {
	UserID      string     `json:"userId" bson:"userId"`
	Items       []CartItem `json:"items" bson:"items"`
	TotalItems  int        `json:"totalItems" bson:"totalItems"`
	TotalAmount float64    `json:"totalAmount" bson:"totalAmount"`
	CreatedAt   time.Time  `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// EmptyCart is what a user without a cart document sees.
func EmptyCart(userID string) *Cart {
	return &Cart{UserID: userID, Items: []CartItem{}}
}

// Line returns the index of productID in the cart, or -1.
func (c *Cart) Line(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Wishlist holds the product ids a user saved for later.
type Wishlist struct {
	UserID     string    `json:"userId" bson:"userId"`
	ProductIDs []string  `json:"productIds" bson:"productIds"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

func (w *Wishlist) Has(productID string) bool {
	return slices.Contains(w.ProductIDs, productID)
}

// Coupon is a percentage discount code.
type Coupon struct {
	Code      string    `bson:"code" json:"code"`
	Discount  float64   `bson:"discount" json:"discount"` // % value e.g. 10 means 10%
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
	Active    bool      `bson:"active" json:"active"`
}
