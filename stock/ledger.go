package stock

import (
	"context"
	"errors"
	"fmt"

	"spicery/errs"

	"go.uber.org/zap"
)

// Repository owns the stockQuantity counter of each product.
type Repository interface {
	// DecrementIfAvailable subtracts qty only when at least qty units are
	// left, as one conditional write. It reports whether the write applied.
	DecrementIfAvailable(ctx context.Context, productID string, qty int) (bool, error)
	// Increment adds qty back. It fails with errs.ErrProductNotFound for
	// unknown products.
	Increment(ctx context.Context, productID string, qty int) error
	// Available reads the current counter.
	Available(ctx context.Context, productID string) (int, error)
}

// Ledger is the single authority over product stock. Stock only moves
// through Reserve and Release.
type Ledger struct {
	repo Repository
	log  *zap.Logger
}

func NewLedger(repo Repository, log *zap.Logger) *Ledger {
	return &Ledger{repo: repo, log: log}
}

// Reserve takes qty units of productID or fails with an
// *errs.InsufficientStockError carrying what is left.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return errs.ErrInvalidQuantity
	}

	ok, err := l.repo.DecrementIfAvailable(ctx, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve %d of %s: %w", qty, productID, err)
	}
	if ok {
		return nil
	}

	remaining, err := l.repo.Available(ctx, productID)
	if errors.Is(err, errs.ErrProductNotFound) {
		return err
	}
	if err != nil {
		// The reservation failed either way; report what we know.
		l.log.Warn("could not read remaining stock", zap.String("productId", productID), zap.Error(err))
		remaining = 0
	}
	return &errs.InsufficientStockError{
		ProductID: productID,
		Requested: qty,
		Remaining: remaining,
	}
}

// Release gives qty units of productID back.
func (l *Ledger) Release(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return errs.ErrInvalidQuantity
	}
	if err := l.repo.Increment(ctx, productID, qty); err != nil {
		return fmt.Errorf("release %d of %s: %w", qty, productID, err)
	}
	return nil
}

func (l *Ledger) Available(ctx context.Context, productID string) (int, error) {
	return l.repo.Available(ctx, productID)
}

// Adjust applies an administrative stock correction. Positive deltas
// release, negative deltas reserve, so a correction can never drive stock
// below zero.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int) error {
	switch {
	case delta > 0:
		return l.Release(ctx, productID, delta)
	case delta < 0:
		return l.Reserve(ctx, productID, -delta)
	default:
		return errs.ErrInvalidQuantity
	}
}
