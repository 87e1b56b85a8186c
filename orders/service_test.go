package orders_test

import (
	"context"
	"sync"
	"testing"

	"spicery/errs"
	"spicery/memstore"
	"spicery/models"
	"spicery/mq"
	"spicery/orders"
	"spicery/stock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

type recorder struct {
	mu     sync.Mutex
	events []mq.OrderEvent
}

func (r *recorder) Emit(_ context.Context, ev mq.OrderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	svc    *orders.Service
	mem    *memstore.Store
	ledger *stock.Ledger
	events *recorder
}

func newFixture() *fixture {
	mem := memstore.New()
	mem.Seed(models.Product{ProductID: "A", Name: "Saffron", Price: 10, StockQuantity: 3})
	ledger := stock.NewLedger(mem.Stock(), zap.NewNop())
	events := &recorder{}
	return &fixture{
		svc:    orders.NewService(mem.Orders(), ledger, events, zap.NewNop()),
		mem:    mem,
		ledger: ledger,
		events: events,
	}
}

// place reserves stock the way checkout does and creates the order.
func (f *fixture) place(t require.TestingT, number string, qty int) *models.Order {
	require.NoError(t, f.ledger.Reserve(context.Background(), "A", qty))
	o := &models.Order{
		OrderNumber: number,
		UserID:      "u1",
		Items:       []models.OrderItem{{ProductID: "A", Name: "Saffron", Price: 10, Quantity: qty}},
		Subtotal:    float64(10 * qty),
		Total:       float64(10 * qty),
	}
	require.NoError(t, f.svc.Create(context.Background(), o))
	return o
}

func TestCreate_InitialState(t *testing.T) {
	f := newFixture()
	o := f.place(t, "ORD-1", 1)

	assert.Equal(t, models.StatusPending, o.OrderStatus)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, models.StatusPending, o.StatusHistory[0].Status)
	assert.Equal(t, "u1", o.StatusHistory[0].By)
	assert.Equal(t, []string{mq.OrderCreated}, f.events.types())
}

func TestCreate_Collision(t *testing.T) {
	f := newFixture()
	f.place(t, "ORD-1", 1)

	err := f.svc.Create(context.Background(), &models.Order{OrderNumber: "ORD-1", UserID: "u2"})
	assert.True(t, orders.IsCollision(err))
}

func TestTransition_HappyPath(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 1)

	path := []models.OrderStatus{
		models.StatusConfirmed,
		models.StatusProcessing,
		models.StatusShipped,
		models.StatusDelivered,
	}
	for i, to := range path {
		o, err := f.svc.Transition(ctx, "ORD-1", to, "step", "admin1")
		require.NoError(t, err)
		assert.Equal(t, to, o.OrderStatus)
		assert.Len(t, o.StatusHistory, i+2)
	}

	o, err := f.svc.Get(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, o.StatusHistory, 5)
	last := o.StatusHistory[4]
	assert.Equal(t, models.StatusDelivered, last.Status)
	assert.Equal(t, "step", last.Note)
	assert.Equal(t, "admin1", last.By)
}

func TestTransition_Illegal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 1)

	_, err := f.svc.Transition(ctx, "ORD-1", models.StatusShipped, "", "admin1")
	var illegal *errs.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, "pending", illegal.From)
	assert.Equal(t, "shipped", illegal.To)

	_, err = f.svc.Transition(ctx, "ORD-1", "lost", "", "admin1")
	assert.ErrorIs(t, err, errs.ErrInvalidStatus)

	_, err = f.svc.Transition(ctx, "ORD-404", models.StatusConfirmed, "", "admin1")
	assert.ErrorIs(t, err, errs.ErrOrderNotFound)

	o, err := f.svc.Get(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Len(t, o.StatusHistory, 1, "rejected transitions leave the history alone")
}

func TestTransition_CancelReleasesStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 2)

	left, _ := f.ledger.Available(ctx, "A")
	require.Equal(t, 1, left)

	_, err := f.svc.Transition(ctx, "ORD-1", models.StatusCancelled, "customer asked", "admin1")
	require.NoError(t, err)

	left, _ = f.ledger.Available(ctx, "A")
	assert.Equal(t, 3, left)

	_, err = f.svc.Transition(ctx, "ORD-1", models.StatusConfirmed, "", "admin1")
	var illegal *errs.IllegalTransitionError
	assert.ErrorAs(t, err, &illegal, "cancelled is terminal")
	left, _ = f.ledger.Available(ctx, "A")
	assert.Equal(t, 3, left, "stock is released once")
}

func TestTransition_ConcurrentCancelOnlyOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 2)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transition(ctx, "ORD-1", models.StatusCancelled, "", "admin1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
	left, _ := f.ledger.Available(ctx, "A")
	assert.Equal(t, 3, left)

	o, _ := f.svc.Get(ctx, "ORD-1")
	assert.Len(t, o.StatusHistory, 2)
}

func TestTransition_Property(t *testing.T) {
	statuses := []models.OrderStatus{
		models.StatusPending, models.StatusConfirmed, models.StatusProcessing,
		models.StatusShipped, models.StatusDelivered, models.StatusCancelled, models.StatusReturned,
	}
	rapid.Check(t, func(t *rapid.T) {
		f := newFixture()
		ctx := context.Background()
		f.place(t, "ORD-1", 1)

		steps := rapid.IntRange(1, 15).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			before, err := f.svc.Get(ctx, "ORD-1")
			require.NoError(t, err)
			to := rapid.SampledFrom(statuses).Draw(t, "to")

			after, err := f.svc.Transition(ctx, "ORD-1", to, "", "admin")
			if orders.CanTransition(before.OrderStatus, to) {
				require.NoError(t, err)
				require.Len(t, after.StatusHistory, len(before.StatusHistory)+1)
				continue
			}
			require.Error(t, err)
			now, _ := f.svc.Get(ctx, "ORD-1")
			require.Equal(t, before.OrderStatus, now.OrderStatus)
			require.Len(t, now.StatusHistory, len(before.StatusHistory))
		}
	})
}

// charge runs one payment attempt the way the pay handler does.
func (f *fixture) charge(t require.TestingT, number string, success bool, ref string) *models.Order {
	_, err := f.svc.BeginPayment(context.Background(), number)
	require.NoError(t, err)
	o, err := f.svc.SettlePayment(context.Background(), number, success, ref)
	require.NoError(t, err)
	return o
}

func TestSettlePayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 1)

	o := f.charge(t, "ORD-1", false, "sbx_1")
	assert.Equal(t, models.PaymentFailed, o.PaymentStatus)
	assert.True(t, orders.Payable(o), "a failed payment may be retried")

	o = f.charge(t, "ORD-1", true, "sbx_2")
	assert.Equal(t, models.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, "sbx_2", o.PaymentRef)
	assert.Equal(t, models.StatusPending, o.OrderStatus, "payment never moves the order status")

	_, err := f.svc.BeginPayment(ctx, "ORD-1")
	assert.ErrorIs(t, err, errs.ErrPaymentNotAllowed)
	_, err = f.svc.SettlePayment(ctx, "ORD-1", true, "sbx_3")
	assert.ErrorIs(t, err, errs.ErrPaymentNotAllowed)
}

func TestBeginPayment_SingleClaim(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 1)

	o, err := f.svc.BeginPayment(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentProcessing, o.PaymentStatus)
	assert.False(t, orders.Payable(o))

	_, err = f.svc.BeginPayment(ctx, "ORD-1")
	assert.ErrorIs(t, err, errs.ErrPaymentNotAllowed, "a second attempt waits for the first to settle")

	_, err = f.svc.BeginPayment(ctx, "ORD-404")
	assert.ErrorIs(t, err, errs.ErrOrderNotFound)
}

func TestBeginPayment_Concurrent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 1)

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.BeginPayment(ctx, "ORD-1"); err == nil {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claimed)
}

func TestSettlePayment_WithoutClaim(t *testing.T) {
	f := newFixture()
	f.place(t, "ORD-1", 1)

	_, err := f.svc.SettlePayment(context.Background(), "ORD-1", true, "sbx_1")
	assert.ErrorIs(t, err, errs.ErrPaymentNotAllowed)
	o, _ := f.svc.Get(context.Background(), "ORD-1")
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
}

func TestSettlePayment_CancelledOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 1)
	_, err := f.svc.Transition(ctx, "ORD-1", models.StatusCancelled, "", "admin1")
	require.NoError(t, err)

	_, err = f.svc.BeginPayment(ctx, "ORD-1")
	assert.ErrorIs(t, err, errs.ErrPaymentNotAllowed)
}

func TestSettlePayment_CancelledWhileCharging(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 1)

	_, err := f.svc.BeginPayment(ctx, "ORD-1")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, "ORD-1", models.StatusCancelled, "", "admin1")
	require.NoError(t, err)

	// The money moved, so the result is recorded and can be refunded.
	o, err := f.svc.SettlePayment(ctx, "ORD-1", true, "sbx_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, o.PaymentStatus)
	assert.True(t, orders.Refundable(o))
}

func TestRefund(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 2) // total 20
	f.charge(t, "ORD-1", true, "sbx_1")

	_, err := f.svc.Refund(ctx, "ORD-1", 5, "early", "admin1")
	assert.ErrorIs(t, err, errs.ErrRefundNotAllowed, "order is not cancelled yet")

	_, err = f.svc.Transition(ctx, "ORD-1", models.StatusCancelled, "", "admin1")
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, "ORD-1", 0, "", "admin1")
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)

	o, err := f.svc.Refund(ctx, "ORD-1", 12.5, "partial", "admin1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPartiallyRefunded, o.PaymentStatus)
	assert.Equal(t, 12.5, o.RefundedAmount)

	_, err = f.svc.Refund(ctx, "ORD-1", 8, "too much", "admin1")
	assert.ErrorIs(t, err, errs.ErrRefundExceedsPaid)

	o, err = f.svc.Refund(ctx, "ORD-1", 7.5, "rest", "admin1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, 20.0, o.RefundedAmount)
	assert.Len(t, o.Refunds, 2)

	_, err = f.svc.Refund(ctx, "ORD-1", 1, "again", "admin1")
	assert.ErrorIs(t, err, errs.ErrRefundNotAllowed)
}

func TestGetForUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 1)

	_, err := f.svc.GetForUser(ctx, "ORD-1", "u1", false)
	assert.NoError(t, err)
	_, err = f.svc.GetForUser(ctx, "ORD-1", "u2", false)
	assert.ErrorIs(t, err, errs.ErrOrderNotFound)
	_, err = f.svc.GetForUser(ctx, "ORD-1", "admin1", true)
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 1)
	f.place(t, "ORD-2", 1)
	_, err := f.svc.Transition(ctx, "ORD-2", models.StatusConfirmed, "", "admin1")
	require.NoError(t, err)

	mine, err := f.svc.ListForUser(ctx, "u1", 0, 10)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	confirmed, err := f.svc.List(ctx, models.StatusConfirmed, 0, 10)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "ORD-2", confirmed[0].OrderNumber)

	_, err = f.svc.List(ctx, "bogus", 0, 10)
	assert.ErrorIs(t, err, errs.ErrInvalidStatus)
}
