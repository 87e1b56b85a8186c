package wishlist

import (
	"context"
	"strings"

	"spicery/cart"
	"spicery/errs"
	"spicery/models"

	"go.uber.org/zap"
)

type Repository interface {
	Get(ctx context.Context, userID string) (*models.Wishlist, error)
	// Add is a no-op when the product is already listed.
	Add(ctx context.Context, userID, productID string) (*models.Wishlist, error)
	Remove(ctx context.Context, userID, productID string) (*models.Wishlist, error)
}

// CartAdder is the part of the cart store the wishlist needs.
type CartAdder interface {
	AddItem(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error)
}

type Service struct {
	repo    Repository
	catalog cart.Catalog
	carts   CartAdder
	log     *zap.Logger
}

func NewService(repo Repository, catalog cart.Catalog, carts CartAdder, log *zap.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, carts: carts, log: log}
}

func (s *Service) Get(ctx context.Context, userID string) (*models.Wishlist, error) {
	return s.repo.Get(ctx, userID)
}

// Add saves productID for later. Unknown products are rejected.
func (s *Service) Add(ctx context.Context, userID, productID string) (*models.Wishlist, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, errs.ErrProductNotFound
	}
	if _, err := s.catalog.Lookup(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.Add(ctx, userID, productID)
}

func (s *Service) Remove(ctx context.Context, userID, productID string) (*models.Wishlist, error) {
	return s.repo.Remove(ctx, userID, strings.TrimSpace(productID))
}

// MoveToCart adds quantity units of a wishlisted product to the cart and
// drops it from the wishlist. The wishlist is left untouched when the cart
// rejects the item.
func (s *Service) MoveToCart(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error) {
	if quantity == 0 {
		quantity = 1
	}
	wl, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !wl.Has(productID) {
		return nil, errs.ErrItemNotFound
	}

	c, err := s.carts.AddItem(ctx, userID, productID, quantity)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Remove(ctx, userID, productID); err != nil {
		// The item is in the cart; a stale wishlist entry is harmless.
		s.log.Warn("remove moved item from wishlist", zap.String("userId", userID), zap.String("productId", productID), zap.Error(err))
	}
	return c, nil
}

