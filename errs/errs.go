package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be greater than zero")
	ErrProductNotFound      = errors.New("product not found")
	ErrItemNotFound         = errors.New("item not found in cart")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderNumberCollision = errors.New("order number already in use")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrCartChanged          = errors.New("cart changed while checking out")
	ErrInvalidStatus        = errors.New("unknown order status")
	ErrInvalidCoupon        = errors.New("coupon is not valid")
	ErrForbidden            = errors.New("forbidden")
	ErrPaymentNotAllowed    = errors.New("order cannot be paid in its current state")
	ErrRefundNotAllowed     = errors.New("order cannot be refunded in its current state")
	ErrRefundExceedsPaid    = errors.New("refund exceeds the amount paid")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrDuplicate            = errors.New("duplicate key")
)

// InsufficientStockError reports how much of a product is left so the
// client can adjust the quantity and retry.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	if e.Remaining <= 0 {
		return fmt.Sprintf("%s is out of stock", name)
	}
	return fmt.Sprintf("only %d left in stock for %s", e.Remaining, name)
}

// IllegalTransitionError names the current and requested order status.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}
