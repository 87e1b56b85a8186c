package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spicery/errs"
	"spicery/models"
	"spicery/mq"
	"spicery/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Repository persists order documents keyed by order number. The
// conditional methods report false, not an error, when their precondition
// no longer holds.
type Repository interface {
	// Insert fails with errs.ErrOrderNumberCollision when the number is taken.
	Insert(ctx context.Context, o *models.Order) error
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	// CompareAndSetStatus moves the order to entry.Status and appends entry
	// to the history, only if the order is still in status from.
	CompareAndSetStatus(ctx context.Context, number string, from models.OrderStatus, entry models.StatusEntry) (bool, error)
	// ClaimPayment moves a pending or failed payment to processing, as long as
	// the order is neither cancelled nor returned.
	ClaimPayment(ctx context.Context, number string, at time.Time) (bool, error)
	// SettlePayment records a gateway result on an order whose payment is
	// processing.
	SettlePayment(ctx context.Context, number string, to models.PaymentStatus, ref string, at time.Time) (bool, error)
	// AddRefund appends refund on a cancelled or returned, paid order as long
	// as the refunded total stays within the order total.
	AddRefund(ctx context.Context, number string, refund models.Refund) (bool, error)
	ListByUser(ctx context.Context, userID string, skip, limit int) ([]models.Order, error)
	List(ctx context.Context, status models.OrderStatus, skip, limit int) ([]models.Order, error)
}

// StockReleaser gives reserved stock back.
type StockReleaser interface {
	Release(ctx context.Context, productID string, qty int) error
}

// Service is the order state machine. It is the only writer of orderStatus
// and statusHistory.
type Service struct {
	repo   Repository
	stock  StockReleaser
	events mq.Emitter
	log    *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, stock StockReleaser, events mq.Emitter, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		stock:  stock,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// Create persists a new order in the pending state with the initial history
// entry. The caller supplies the order number; a taken number surfaces as
// errs.ErrOrderNumberCollision.
func (s *Service) Create(ctx context.Context, o *models.Order) error {
	now := s.now().UTC()
	o.OrderStatus = models.StatusPending
	o.StatusHistory = []models.StatusEntry{{
		Status:    models.StatusPending,
		Timestamp: now,
		Note:      "order placed",
		By:        o.UserID,
	}}
	o.PaymentStatus = models.PaymentPending
	o.RefundedAmount = 0
	o.Refunds = []models.Refund{}
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := s.repo.Insert(ctx, o); err != nil {
		return err
	}
	s.emit(ctx, mq.OrderCreated, o, "")
	return nil
}

// maxTransitionAttempts bounds the compare-and-set loop. Every failed
// attempt means another writer moved the order forward, and the longest
// path through the lifecycle is five edges.
const maxTransitionAttempts = 6

// Transition moves an order to status to and records the change in its
// audit trail. Entering cancelled or returned releases the order's stock.
func (s *Service) Transition(ctx context.Context, number string, to models.OrderStatus, note, actor string) (*models.Order, error) {
	if !Known(to) {
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidStatus, to)
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		o, err := s.repo.FindByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		from := o.OrderStatus
		if !CanTransition(from, to) {
			return nil, &errs.IllegalTransitionError{From: string(from), To: string(to)}
		}

		entry := models.StatusEntry{Status: to, Timestamp: s.now().UTC(), Note: note, By: actor}
		ok, err := s.repo.CompareAndSetStatus(ctx, number, from, entry)
		if err != nil {
			return nil, fmt.Errorf("update order %s status: %w", number, err)
		}
		if !ok {
			continue
		}

		o.OrderStatus = to
		o.StatusHistory = append(o.StatusHistory, entry)
		o.UpdatedAt = entry.Timestamp

		s.log.Info("order status changed",
			zap.String("orderNumber", number),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("by", actor),
		)
		if releasesStock(to) {
			s.restock(ctx, o)
		}
		s.emit(ctx, mq.OrderTransition, o, note)
		return o, nil
	}
	return nil, fmt.Errorf("order %s kept changing while updating status", number)
}

// restock releases every line of o. Failures are logged for reconciliation
// and do not undo the transition.
func (s *Service) restock(ctx context.Context, o *models.Order) {
	ctx = context.WithoutCancel(ctx)
	for _, it := range o.Items {
		if err := s.stock.Release(ctx, it.ProductID, it.Quantity); err != nil {
			s.log.Error("stock release failed after status change",
				zap.String("orderNumber", o.OrderNumber),
				zap.String("status", string(o.OrderStatus)),
				zap.String("productId", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err),
			)
		}
	}
}

// Payable reports whether a payment attempt may be made on o.
func Payable(o *models.Order) bool {
	if o.OrderStatus == models.StatusCancelled || o.OrderStatus == models.StatusReturned {
		return false
	}
	return o.PaymentStatus == models.PaymentPending || o.PaymentStatus == models.PaymentFailed
}

// BeginPayment claims the order for one charge attempt by moving its payment
// to processing. Only the caller holding the claim may charge the customer,
// and it must end the attempt with SettlePayment.
func (s *Service) BeginPayment(ctx context.Context, number string) (*models.Order, error) {
	ok, err := s.repo.ClaimPayment(ctx, number, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("claim payment of %s: %w", number, err)
	}
	o, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrPaymentNotAllowed
	}
	return o, nil
}

// SettlePayment records the outcome of the charge attempt started by
// BeginPayment. A failed attempt leaves the order payable again.
func (s *Service) SettlePayment(ctx context.Context, number string, success bool, ref string) (*models.Order, error) {
	to := models.PaymentFailed
	if success {
		to = models.PaymentPaid
	}

	ok, err := s.repo.SettlePayment(ctx, number, to, ref, s.now().UTC())
	if err != nil {
		s.orphaned(number, success, ref, err)
		return nil, fmt.Errorf("settle payment of %s: %w", number, err)
	}
	if !ok {
		s.orphaned(number, success, ref, errs.ErrPaymentNotAllowed)
		return nil, errs.ErrPaymentNotAllowed
	}
	o, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, mq.OrderPayment, o, ref)
	return o, nil
}

// orphaned logs a gateway result that could not be recorded on the order so
// the charge can be reconciled by hand.
func (s *Service) orphaned(number string, success bool, ref string, err error) {
	if !success && ref == "" {
		return
	}
	s.log.Error("payment result not recorded",
		zap.String("orderNumber", number),
		zap.Bool("success", success),
		zap.String("paymentRef", ref),
		zap.Error(err),
	)
}

// Refund books a refund against a cancelled or returned order that was paid.
func (s *Service) Refund(ctx context.Context, number string, amount float64, reason, actor string) (*models.Order, error) {
	amt := decimal.NewFromFloat(amount).Round(2)
	if !amt.IsPositive() {
		return nil, errs.ErrInvalidAmount
	}

	refund := models.Refund{
		RefundID:  utils.GetUUID(),
		Amount:    amt.InexactFloat64(),
		Reason:    reason,
		By:        actor,
		CreatedAt: s.now().UTC(),
	}
	ok, err := s.repo.AddRefund(ctx, number, refund)
	if err != nil {
		return nil, fmt.Errorf("refund %s: %w", number, err)
	}

	o, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !ok {
		if !Refundable(o) {
			return nil, errs.ErrRefundNotAllowed
		}
		return nil, errs.ErrRefundExceedsPaid
	}

	s.log.Info("order refunded",
		zap.String("orderNumber", number),
		zap.Float64("amount", refund.Amount),
		zap.Float64("refundedAmount", o.RefundedAmount),
		zap.String("by", actor),
	)
	s.emit(ctx, mq.OrderRefunded, o, reason)
	return o, nil
}

// Refundable reports whether o is in a state that allows refunds at all.
func Refundable(o *models.Order) bool {
	if o.OrderStatus != models.StatusCancelled && o.OrderStatus != models.StatusReturned {
		return false
	}
	return o.PaymentStatus == models.PaymentPaid || o.PaymentStatus == models.PaymentPartiallyRefunded
}

func (s *Service) Get(ctx context.Context, number string) (*models.Order, error) {
	return s.repo.FindByNumber(ctx, number)
}

// GetForUser returns the order if userID owns it or the caller is an admin.
func (s *Service) GetForUser(ctx context.Context, number, userID string, isAdmin bool) (*models.Order, error) {
	o, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		// Do not reveal that the number exists.
		return nil, errs.ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, skip, limit int) ([]models.Order, error) {
	return s.repo.ListByUser(ctx, userID, skip, limit)
}

// List returns orders for the back office, optionally filtered by status.
func (s *Service) List(ctx context.Context, status models.OrderStatus, skip, limit int) ([]models.Order, error) {
	if status != "" && !Known(status) {
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidStatus, status)
	}
	return s.repo.List(ctx, status, skip, limit)
}

func (s *Service) emit(ctx context.Context, typ string, o *models.Order, note string) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, mq.OrderEvent{
		Type:          typ,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        string(o.OrderStatus),
		PaymentStatus: string(o.PaymentStatus),
		Note:          note,
		At:            s.now().UTC(),
	})
}

// IsCollision reports whether err means the order number was taken.
func IsCollision(err error) bool {
	return errors.Is(err, errs.ErrOrderNumberCollision)
}
