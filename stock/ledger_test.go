package stock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"spicery/errs"
	"spicery/memstore"
	"spicery/models"
	"spicery/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newLedger(qty int) (*stock.Ledger, *memstore.Store) {
	mem := memstore.New()
	mem.Seed(models.Product{ProductID: "P", Name: "Pepper", Price: 4, StockQuantity: qty})
	return stock.NewLedger(mem.Stock(), zap.NewNop()), mem
}

func TestReserve(t *testing.T) {
	l, _ := newLedger(5)
	ctx := context.Background()

	require.NoError(t, l.Reserve(ctx, "P", 3))
	left, err := l.Available(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	err = l.Reserve(ctx, "P", 3)
	var short *errs.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, "P", short.ProductID)
	assert.Equal(t, 3, short.Requested)
	assert.Equal(t, 2, short.Remaining)
	assert.Equal(t, "only 2 left in stock for P", short.Error())

	left, _ = l.Available(ctx, "P")
	assert.Equal(t, 2, left, "a failed reservation leaves stock untouched")
}

func TestReserve_Invalid(t *testing.T) {
	l, _ := newLedger(5)
	ctx := context.Background()

	assert.ErrorIs(t, l.Reserve(ctx, "P", 0), errs.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Reserve(ctx, "nope", 1), errs.ErrProductNotFound)
	assert.ErrorIs(t, l.Release(ctx, "P", -1), errs.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Release(ctx, "nope", 1), errs.ErrProductNotFound)
}

func TestReleaseRestores(t *testing.T) {
	l, _ := newLedger(5)
	ctx := context.Background()

	require.NoError(t, l.Reserve(ctx, "P", 5))
	require.NoError(t, l.Release(ctx, "P", 5))
	left, err := l.Available(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 5, left)
}

func TestAdjust(t *testing.T) {
	l, _ := newLedger(2)
	ctx := context.Background()

	require.NoError(t, l.Adjust(ctx, "P", 8))
	require.NoError(t, l.Adjust(ctx, "P", -4))
	left, _ := l.Available(ctx, "P")
	assert.Equal(t, 6, left)

	var short *errs.InsufficientStockError
	assert.ErrorAs(t, l.Adjust(ctx, "P", -7), &short)
	assert.ErrorIs(t, l.Adjust(ctx, "P", 0), errs.ErrInvalidQuantity)
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	const available, buyers = 10, 64
	l, _ := newLedger(available)
	ctx := context.Background()

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Reserve(ctx, "P", 1)
			var ise *errs.InsufficientStockError
			switch {
			case err == nil:
				ok.Add(1)
			case errors.As(err, &ise):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, available, ok.Load())
	assert.EqualValues(t, buyers-available, short.Load())
	left, err := l.Available(ctx, "P")
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestReserve_LastUnitRace(t *testing.T) {
	l, _ := newLedger(1)
	ctx := context.Background()

	errsCh := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errsCh <- l.Reserve(ctx, "P", 1)
		}()
	}
	wg.Wait()
	close(errsCh)

	var wins, losses int
	for err := range errsCh {
		if err == nil {
			wins++
			continue
		}
		var short *errs.InsufficientStockError
		require.ErrorAs(t, err, &short)
		assert.Zero(t, short.Remaining)
		losses++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
}
