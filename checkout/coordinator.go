package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spicery/cart"
	"spicery/config"
	"spicery/errs"
	"spicery/models"
	"spicery/orders"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Carts is the part of the cart store checkout reads and claims from.
type Carts interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	ClaimItems(ctx context.Context, userID string, lines []models.CartItem) (*models.Cart, error)
	RestoreItems(ctx context.Context, userID string, lines []models.CartItem) error
	QuoteCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (*cart.CouponQuote, error)
}

type Stock interface {
	Reserve(ctx context.Context, productID string, qty int) error
	Release(ctx context.Context, productID string, qty int) error
}

type Orders interface {
	Create(ctx context.Context, o *models.Order) error
}

type NumberGenerator interface {
	Next() string
}

// Request carries the shopper's checkout input.
type Request struct {
	UserID        string
	Address       string
	PaymentMethod string
	CouponCode    string
}

// Coordinator turns a cart into an order. There is no transaction across
// the cart, stock and order documents, so every step that fails after the
// cart lines were claimed gives the lines and any reserved stock back before
// returning.
type Coordinator struct {
	carts   Carts
	stock   Stock
	orders  Orders
	numbers NumberGenerator
	pricing config.Pricing
	retries int
	log     *zap.Logger
}

func NewCoordinator(carts Carts, stock Stock, orders Orders, numbers NumberGenerator, pricing config.Pricing, retries int, log *zap.Logger) *Coordinator {
	if retries < 1 {
		retries = 1
	}
	return &Coordinator{
		carts:   carts,
		stock:   stock,
		orders:  orders,
		numbers: numbers,
		pricing: pricing,
		retries: retries,
		log:     log,
	}
}

// Checkout places an order for the user's current cart.
//
// The snapshot lines are claimed from the cart before any stock is touched,
// so concurrent checkouts of one cart place at most one order and lines
// added while checkout runs stay in the cart. On success stock for every
// line is reserved and the order exists in the pending state. On failure no
// order exists, stock is back where it was and the cart holds its lines
// again.
func (c *Coordinator) Checkout(ctx context.Context, req Request) (*models.Order, error) {
	snapshot, err := c.carts.GetCart(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Items) == 0 {
		return nil, errs.ErrEmptyCart
	}
	items := freeze(snapshot.Items)

	subtotal := cart.Subtotal(snapshot.Items)
	discount := decimal.Zero
	couponCode := ""
	if strings.TrimSpace(req.CouponCode) != "" {
		quote, err := c.carts.QuoteCoupon(ctx, req.CouponCode, subtotal)
		if err != nil {
			return nil, err
		}
		discount = quote.Discount
		couponCode = quote.Code
	}
	totals := Price(c.pricing, subtotal, discount)

	if _, err := c.carts.ClaimItems(ctx, req.UserID, snapshot.Items); err != nil {
		return nil, err
	}

	reserved, err := c.reserve(ctx, items)
	if err != nil {
		c.release(ctx, reserved, "reservation failed")
		c.restore(ctx, req.UserID, snapshot.Items)
		return nil, err
	}

	order := &models.Order{
		UserID:        req.UserID,
		Items:         items,
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    couponCode,
		Subtotal:      totals.Subtotal.InexactFloat64(),
		Tax:           totals.Tax.InexactFloat64(),
		ShippingCost:  totals.ShippingCost.InexactFloat64(),
		Discount:      totals.Discount.InexactFloat64(),
		Total:         totals.Total.InexactFloat64(),
	}
	if err := c.create(ctx, order); err != nil {
		c.release(ctx, reserved, "order not persisted")
		c.restore(ctx, req.UserID, snapshot.Items)
		return nil, err
	}

	c.log.Info("order placed",
		zap.String("orderNumber", order.OrderNumber),
		zap.String("userId", req.UserID),
		zap.Int("lines", len(items)),
		zap.Float64("total", order.Total),
	)
	return order, nil
}

// reserve takes stock for every line in order and returns the lines that
// were reserved, including when it fails partway.
func (c *Coordinator) reserve(ctx context.Context, items []models.OrderItem) ([]models.OrderItem, error) {
	reserved := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		if err := c.stock.Reserve(ctx, it.ProductID, it.Quantity); err != nil {
			var short *errs.InsufficientStockError
			if errors.As(err, &short) && short.Name == "" {
				short.Name = it.Name
			}
			return reserved, err
		}
		reserved = append(reserved, it)
	}
	return reserved, nil
}

// release gives reserved stock back. It runs even if the request was
// cancelled, and failures are logged for manual reconciliation.
func (c *Coordinator) release(ctx context.Context, reserved []models.OrderItem, reason string) {
	ctx = context.WithoutCancel(ctx)
	for _, it := range reserved {
		if err := c.stock.Release(ctx, it.ProductID, it.Quantity); err != nil {
			c.log.Error("stock compensation failed",
				zap.String("reason", reason),
				zap.String("productId", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err),
			)
		}
	}
	if len(reserved) > 0 {
		c.log.Info("checkout compensated", zap.String("reason", reason), zap.Int("released", len(reserved)))
	}
}

// restore puts claimed lines back into the cart after a failed checkout.
func (c *Coordinator) restore(ctx context.Context, userID string, lines []models.CartItem) {
	if err := c.carts.RestoreItems(context.WithoutCancel(ctx), userID, lines); err != nil {
		c.log.Error("cart compensation failed",
			zap.String("userId", userID),
			zap.Int("lines", len(lines)),
			zap.Error(err),
		)
	}
}

// create inserts the order under a fresh number, drawing a new number each
// time the previous one turns out to be taken.
func (c *Coordinator) create(ctx context.Context, o *models.Order) error {
	var err error
	for attempt := 1; attempt <= c.retries; attempt++ {
		o.OrderNumber = c.numbers.Next()
		err = c.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !orders.IsCollision(err) {
			return fmt.Errorf("create order: %w", err)
		}
		c.log.Warn("order number collision", zap.String("orderNumber", o.OrderNumber), zap.Int("attempt", attempt))
	}
	return fmt.Errorf("no free order number after %d attempts: %w", c.retries, err)
}

func freeze(items []models.CartItem) []models.OrderItem {
	out := make([]models.OrderItem, len(items))
	for i, it := range items {
		out[i] = models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.UnitPrice,
			Quantity:  it.Quantity,
		}
	}
	return out
}
