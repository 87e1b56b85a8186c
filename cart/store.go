package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spicery/errs"
	"spicery/models"

	"go.uber.org/zap"
)

// Repository persists cart documents. Every mutating method must apply the
// change and recompute the totals in a single atomic write against the
// user's cart document, and return the cart as it is after that write.
type Repository interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	// AddLine merges line into an existing line for the same product by
	// incrementing its quantity, or appends it. The cart is created on demand.
	AddLine(ctx context.Context, userID string, line models.CartItem) (*models.Cart, error)
	// SetQuantity fails with errs.ErrItemNotFound when the product has no line.
	SetQuantity(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error)
	RemoveLine(ctx context.Context, userID, productID string) (*models.Cart, error)
	Clear(ctx context.Context, userID string) (*models.Cart, error)
	// Claim takes lines out of the cart in one write: each line's quantity
	// is subtracted from the cart line for the same product and lines left
	// at zero are dropped. Unless every line is still there with at least
	// that quantity it fails with errs.ErrCartChanged and changes nothing.
	Claim(ctx context.Context, userID string, lines []models.CartItem) (*models.Cart, error)
}

// Catalog resolves the current name and price of a product.
type Catalog interface {
	Lookup(ctx context.Context, productID string) (*models.Product, error)
}

// Store is the cart mutation engine. It never touches stock: carts are
// advisory and stock is only reserved at checkout.
type Store struct {
	repo    Repository
	catalog Catalog
	coupons CouponBook
	log     *zap.Logger
	now     func() time.Time
}

func NewStore(repo Repository, catalog Catalog, coupons CouponBook, log *zap.Logger) *Store {
	return &Store{
		repo:    repo,
		catalog: catalog,
		coupons: coupons,
		log:     log,
		now:     time.Now,
	}
}

func (s *Store) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	c, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c, nil
}

// AddItem adds quantity units of productID, merging with an existing line.
func (s *Store) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, errs.ErrInvalidQuantity
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, errs.ErrProductNotFound
	}

	p, err := s.catalog.Lookup(ctx, productID)
	if err != nil {
		return nil, err
	}

	line := models.CartItem{
		ProductID: p.ProductID,
		Name:      p.Name,
		Quantity:  quantity,
		UnitPrice: p.Price,
		AddedAt:   s.now().UTC(),
	}
	c, err := s.repo.AddLine(ctx, userID, line)
	if err != nil {
		return nil, fmt.Errorf("add %s to cart: %w", productID, err)
	}
	s.log.Debug("cart item added",
		zap.String("userId", userID),
		zap.String("productId", productID),
		zap.Int("quantity", quantity),
		zap.Int("totalItems", c.TotalItems),
	)
	return c, nil
}

// UpdateQuantity sets the absolute quantity of a line. A quantity of zero or
// less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	c, err := s.repo.SetQuantity(ctx, userID, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("update %s in cart: %w", productID, err)
	}
	return c, nil
}

// RemoveItem drops the line for productID. Removing an absent line is not
// an error.
func (s *Store) RemoveItem(ctx context.Context, userID, productID string) (*models.Cart, error) {
	c, err := s.repo.RemoveLine(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("remove %s from cart: %w", productID, err)
	}
	return c, nil
}

// ClaimItems removes exactly the lines of a checkout snapshot from the cart.
// Anything added after the snapshot stays, and a snapshot can be claimed
// only once.
func (s *Store) ClaimItems(ctx context.Context, userID string, lines []models.CartItem) (*models.Cart, error) {
	if len(lines) == 0 {
		return nil, errs.ErrEmptyCart
	}
	c, err := s.repo.Claim(ctx, userID, lines)
	if err != nil {
		return nil, fmt.Errorf("claim cart: %w", err)
	}
	return c, nil
}

// RestoreItems puts claimed lines back, merging them with lines added since.
func (s *Store) RestoreItems(ctx context.Context, userID string, lines []models.CartItem) error {
	for _, line := range lines {
		if _, err := s.repo.AddLine(ctx, userID, line); err != nil {
			return fmt.Errorf("restore %s to cart: %w", line.ProductID, err)
		}
	}
	return nil
}

// ClearCart empties the cart but keeps the document.
func (s *Store) ClearCart(ctx context.Context, userID string) (*models.Cart, error) {
	c, err := s.repo.Clear(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	return c, nil
}
