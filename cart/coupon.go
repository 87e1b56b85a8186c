package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"spicery/errs"
	"spicery/models"

	"github.com/shopspring/decimal"
)

// CouponBook looks coupons up by their normalized code.
type CouponBook interface {
	FindCoupon(ctx context.Context, code string) (*models.Coupon, error)
}

type CouponQuote struct {
	Code     string          `json:"code"`
	Percent  float64         `json:"percent"`
	Discount decimal.Decimal `json:"discount"`
}

// NormalizeCoupon trims and lower-cases a coupon code.
func NormalizeCoupon(code string) string {
	return strings.TrimSpace(strings.ToLower(code))
}

// QuoteCoupon validates code and computes its discount against subtotal.
// The discount never exceeds the subtotal.
func (s *Store) QuoteCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (*CouponQuote, error) {
	code = NormalizeCoupon(code)
	if code == "" {
		return nil, fmt.Errorf("%w: no coupon provided", errs.ErrInvalidCoupon)
	}
	if s.coupons == nil {
		return nil, fmt.Errorf("%w: coupon not found", errs.ErrInvalidCoupon)
	}

	coupon, err := s.coupons.FindCoupon(ctx, code)
	if errors.Is(err, errs.ErrInvalidCoupon) {
		return nil, fmt.Errorf("%w: coupon not found", errs.ErrInvalidCoupon)
	}
	if err != nil {
		return nil, fmt.Errorf("load coupon: %w", err)
	}

	switch {
	case !coupon.Active:
		return nil, fmt.Errorf("%w: coupon inactive", errs.ErrInvalidCoupon)
	case s.now().After(coupon.ExpiresAt):
		return nil, fmt.Errorf("%w: coupon expired", errs.ErrInvalidCoupon)
	}

	discount := decimal.Zero
	if subtotal.IsPositive() && coupon.Discount > 0 {
		discount = subtotal.Mul(decimal.NewFromFloat(coupon.Discount)).Div(decimal.NewFromInt(100)).Round(2)
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return &CouponQuote{Code: code, Percent: coupon.Discount, Discount: discount}, nil
}
