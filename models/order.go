package models

import "time"

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusReturned   OrderStatus = "returned"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentPaid              PaymentStatus = "paid"
	PaymentFailed            PaymentStatus = "failed"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentRefunded          PaymentStatus = "refunded"
)

// OrderItem is the frozen copy of a cart line taken at checkout.
type OrderItem struct {
	ProductID string  `json:"productId" bson:"productId"`
	Name      string  `json:"name" bson:"name"`
	Price     float64 `json:"price" bson:"price"`
	Quantity  int     `json:"quantity" bson:"quantity"`
}

// StatusEntry is one row of the order audit trail.
type StatusEntry struct {
	Status    OrderStatus `json:"status" bson:"status"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	Note      string      `json:"note,omitempty" bson:"note,omitempty"`
	By        string      `json:"by,omitempty" bson:"by,omitempty"`
}

type Refund struct {
	RefundID  string    `json:"refundId" bson:"refundId"`
	Amount    float64   `json:"amount" bson:"amount"`
	Reason    string    `json:"reason,omitempty" bson:"reason,omitempty"`
	By        string    `json:"by,omitempty" bson:"by,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Order represents a finalized order. OrderStatus and StatusHistory are only
// written through orders.Service.
type Order struct {
	OrderNumber    string        `json:"orderNumber" bson:"orderNumber"`
	UserID         string        `json:"userId" bson:"userId"`
	Items          []OrderItem   `json:"items" bson:"items"`
	Address        string        `json:"address" bson:"address"`
	PaymentMethod  string        `json:"paymentMethod" bson:"paymentMethod"`
	CouponCode     string        `json:"couponCode,omitempty" bson:"couponCode,omitempty"`
	Subtotal       float64       `json:"subtotal" bson:"subtotal"`
	Tax            float64       `json:"tax" bson:"tax"`
	ShippingCost   float64       `json:"shippingCost" bson:"shippingCost"`
	Discount       float64       `json:"discount" bson:"discount"`
	Total          float64       `json:"total" bson:"total"`
	OrderStatus    OrderStatus   `json:"orderStatus" bson:"orderStatus"`
	StatusHistory  []StatusEntry `json:"statusHistory" bson:"statusHistory"`
	PaymentStatus  PaymentStatus `json:"paymentStatus" bson:"paymentStatus"`
	PaymentRef     string        `json:"paymentRef,omitempty" bson:"paymentRef,omitempty"`
	RefundedAmount float64       `json:"refundedAmount" bson:"refundedAmount"`
	Refunds        []Refund      `json:"refunds" bson:"refunds"`
	CreatedAt      time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// IdempotencyRecord remembers the response of a keyed mutating request.
type IdempotencyRecord struct {
	Key         string    `bson:"key" json:"key"`
	Method      string    `bson:"method" json:"method"`
	Path        string    `bson:"path" json:"path"`
	UserID      string    `bson:"userId" json:"userId"`
	RequestHash string    `bson:"requestHash" json:"requestHash"`
	Status      int       `bson:"status,omitempty" json:"status,omitempty"`
	Body        []byte    `bson:"body,omitempty" json:"body,omitempty"`
	Done        bool      `bson:"done" json:"done"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	ExpiresAt   time.Time `bson:"expiresAt" json:"expiresAt"`
}
