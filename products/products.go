package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spicery/models"
	"spicery/utils"

	"go.uber.org/zap"
)

// ErrInvalidProduct is returned by Create for incomplete product data.
var ErrInvalidProduct = errors.New("invalid product")

type Repository interface {
	// FindByID fails with errs.ErrProductNotFound.
	FindByID(ctx context.Context, productID string) (*models.Product, error)
	List(ctx context.Context, category string, skip, limit int) ([]models.Product, error)
	// Insert fails with errs.ErrDuplicate when the id is taken.
	Insert(ctx context.Context, p *models.Product) error
}

// Service is the read side of the catalog. Stock counters are written only
// by the stock ledger.
type Service struct {
	repo Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewService(repo Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Lookup implements cart.Catalog.
func (s *Service) Lookup(ctx context.Context, productID string) (*models.Product, error) {
	p, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return p.Derive(), nil
}

func (s *Service) List(ctx context.Context, category string, skip, limit int) ([]models.Product, error) {
	list, err := s.repo.List(ctx, strings.TrimSpace(category), skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	for i := range list {
		list[i].Derive()
	}
	return list, nil
}

// Create adds a catalog entry. An empty ProductID gets a generated one.
func (s *Service) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Price <= 0:
		return nil, fmt.Errorf("%w: price must be greater than zero", ErrInvalidProduct)
	case p.StockQuantity < 0:
		return nil, fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	if strings.TrimSpace(p.ProductID) == "" {
		p.ProductID = utils.GetUUID()
	}
	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("product created",
		zap.String("productId", p.ProductID),
		zap.String("name", p.Name),
		zap.Int("stockQuantity", p.StockQuantity),
	)
	return p.Derive(), nil
}
