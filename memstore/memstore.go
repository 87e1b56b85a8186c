// Package memstore is an in-process implementation of every repository in
// the service. It backs STORE=memory and the unit tests. All views share
// one mutex, so each repository call is atomic in the same way the
// corresponding single-document Mongo write is.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"spicery/cart"
	"spicery/errs"
	"spicery/models"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	carts      map[string]*models.Cart
	products   map[string]*models.Product
	orders     map[string]*models.Order
	orderSeq   []string
	wishlists  map[string]*models.Wishlist
	coupons    map[string]models.Coupon
	idempotent map[string]models.IdempotencyRecord
}

func New() *Store {
	return &Store{
		now:        time.Now,
		carts:      map[string]*models.Cart{},
		products:   map[string]*models.Product{},
		orders:     map[string]*models.Order{},
		wishlists:  map[string]*models.Wishlist{},
		coupons:    map[string]models.Coupon{},
		idempotent: map[string]models.IdempotencyRecord{},
	}
}

// Seed puts products into the catalog, replacing any with the same id.
func (s *Store) Seed(products ...models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		p := p
		s.products[p.ProductID] = &p
	}
}

func (s *Store) SeedCoupons(coupons ...models.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range coupons {
		c.Code = cart.NormalizeCoupon(c.Code)
		s.coupons[c.Code] = c
	}
}

func (s *Store) Carts() *CartRepository         { return &CartRepository{s} }
func (s *Store) Stock() *StockRepository        { return &StockRepository{s} }
func (s *Store) Products() *ProductRepository   { return &ProductRepository{s} }
func (s *Store) Orders() *OrderRepository       { return &OrderRepository{s} }
func (s *Store) Wishlists() *WishlistRepository { return &WishlistRepository{s} }
func (s *Store) Idempotency() *IdempotencyStore { return &IdempotencyStore{s} }

// CartRepository implements cart.Repository and cart.CouponBook.
type CartRepository struct{ s *Store }

func (r *CartRepository) Get(_ context.Context, userID string) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		return models.EmptyCart(userID), nil
	}
	return cloneCart(c), nil
}

func (r *CartRepository) AddLine(_ context.Context, userID string, line models.CartItem) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.cart(userID)
	if i := c.Line(line.ProductID); i >= 0 {
		c.Items[i].Quantity += line.Quantity
	} else {
		c.Items = append(c.Items, line)
	}
	return r.s.touch(c), nil
}

func (r *CartRepository) SetQuantity(_ context.Context, userID, productID string, quantity int) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		return nil, errs.ErrItemNotFound
	}
	i := c.Line(productID)
	if i < 0 {
		return nil, errs.ErrItemNotFound
	}
	c.Items[i].Quantity = quantity
	return r.s.touch(c), nil
}

func (r *CartRepository) RemoveLine(_ context.Context, userID, productID string) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		return models.EmptyCart(userID), nil
	}
	c.Items = slices.DeleteFunc(c.Items, func(it models.CartItem) bool { return it.ProductID == productID })
	return r.s.touch(c), nil
}

func (r *CartRepository) Clear(_ context.Context, userID string) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		return models.EmptyCart(userID), nil
	}
	c.Items = []models.CartItem{}
	return r.s.touch(c), nil
}

func (r *CartRepository) Claim(_ context.Context, userID string, lines []models.CartItem) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		return nil, errs.ErrCartChanged
	}
	for _, l := range lines {
		i := c.Line(l.ProductID)
		if i < 0 || c.Items[i].Quantity < l.Quantity {
			return nil, errs.ErrCartChanged
		}
	}
	for _, l := range lines {
		c.Items[c.Line(l.ProductID)].Quantity -= l.Quantity
	}
	c.Items = slices.DeleteFunc(c.Items, func(it models.CartItem) bool { return it.Quantity <= 0 })
	return r.s.touch(c), nil
}

func (r *CartRepository) FindCoupon(_ context.Context, code string) (*models.Coupon, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.coupons[code]
	if !ok {
		return nil, errs.ErrInvalidCoupon
	}
	return &c, nil
}

func (r *CartRepository) SaveCoupon(_ context.Context, c models.Coupon) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.Code = cart.NormalizeCoupon(c.Code)
	r.s.coupons[c.Code] = c
	return nil
}

func (s *Store) cart(userID string) *models.Cart {
	c, ok := s.carts[userID]
	if !ok {
		c = models.EmptyCart(userID)
		c.CreatedAt = s.now().UTC()
		s.carts[userID] = c
	}
	return c
}

func (s *Store) touch(c *models.Cart) *models.Cart {
	cart.Recompute(c)
	c.UpdatedAt = s.now().UTC()
	return cloneCart(c)
}

// StockRepository implements stock.Repository on the catalog entries.
type StockRepository struct{ s *Store }

func (r *StockRepository) DecrementIfAvailable(_ context.Context, productID string, qty int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok || p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	p.UpdatedAt = r.s.now().UTC()
	return true, nil
}

func (r *StockRepository) Increment(_ context.Context, productID string, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok {
		return errs.ErrProductNotFound
	}
	p.StockQuantity += qty
	p.UpdatedAt = r.s.now().UTC()
	return nil
}

func (r *StockRepository) Available(_ context.Context, productID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok {
		return 0, errs.ErrProductNotFound
	}
	return p.StockQuantity, nil
}

// ProductRepository implements products.Repository.
type ProductRepository struct{ s *Store }

func (r *ProductRepository) FindByID(_ context.Context, productID string) (*models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok {
		return nil, errs.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *ProductRepository) List(_ context.Context, category string, skip, limit int) ([]models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := []models.Product{}
	for _, p := range r.s.products {
		if category == "" || p.Category == category {
			list = append(list, *p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return page(list, skip, limit), nil
}

func (r *ProductRepository) Insert(_ context.Context, p *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[p.ProductID]; ok {
		return errs.ErrDuplicate
	}
	cp := *p
	r.s.products[p.ProductID] = &cp
	return nil
}

// OrderRepository implements orders.Repository.
type OrderRepository struct{ s *Store }

func (r *OrderRepository) Insert(_ context.Context, o *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[o.OrderNumber]; ok {
		return errs.ErrOrderNumberCollision
	}
	r.s.orders[o.OrderNumber] = cloneOrder(o)
	r.s.orderSeq = append(r.s.orderSeq, o.OrderNumber)
	return nil
}

func (r *OrderRepository) FindByNumber(_ context.Context, number string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[number]
	if !ok {
		return nil, errs.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *OrderRepository) CompareAndSetStatus(_ context.Context, number string, from models.OrderStatus, entry models.StatusEntry) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[number]
	if !ok || o.OrderStatus != from {
		return false, nil
	}
	o.OrderStatus = entry.Status
	o.StatusHistory = append(o.StatusHistory, entry)
	o.UpdatedAt = entry.Timestamp
	return true, nil
}

func (r *OrderRepository) ClaimPayment(_ context.Context, number string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[number]
	if !ok {
		return false, nil
	}
	if o.PaymentStatus != models.PaymentPending && o.PaymentStatus != models.PaymentFailed {
		return false, nil
	}
	if o.OrderStatus == models.StatusCancelled || o.OrderStatus == models.StatusReturned {
		return false, nil
	}
	o.PaymentStatus = models.PaymentProcessing
	o.UpdatedAt = at
	return true, nil
}

func (r *OrderRepository) SettlePayment(_ context.Context, number string, to models.PaymentStatus, ref string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[number]
	if !ok || o.PaymentStatus != models.PaymentProcessing {
		return false, nil
	}
	o.PaymentStatus = to
	o.PaymentRef = ref
	o.UpdatedAt = at
	return true, nil
}

func (r *OrderRepository) AddRefund(_ context.Context, number string, refund models.Refund) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[number]
	if !ok {
		return false, nil
	}
	if o.OrderStatus != models.StatusCancelled && o.OrderStatus != models.StatusReturned {
		return false, nil
	}
	if o.PaymentStatus != models.PaymentPaid && o.PaymentStatus != models.PaymentPartiallyRefunded {
		return false, nil
	}
	refunded := decimal.NewFromFloat(o.RefundedAmount).Add(decimal.NewFromFloat(refund.Amount)).Round(2)
	total := decimal.NewFromFloat(o.Total)
	if refunded.GreaterThan(total) {
		return false, nil
	}
	o.RefundedAmount = refunded.InexactFloat64()
	o.Refunds = append(o.Refunds, refund)
	o.UpdatedAt = refund.CreatedAt
	if refunded.GreaterThanOrEqual(total) {
		o.PaymentStatus = models.PaymentRefunded
	} else {
		o.PaymentStatus = models.PaymentPartiallyRefunded
	}
	return true, nil
}

func (r *OrderRepository) ListByUser(_ context.Context, userID string, skip, limit int) ([]models.Order, error) {
	return r.list(func(o *models.Order) bool { return o.UserID == userID }, skip, limit), nil
}

func (r *OrderRepository) List(_ context.Context, status models.OrderStatus, skip, limit int) ([]models.Order, error) {
	return r.list(func(o *models.Order) bool { return status == "" || o.OrderStatus == status }, skip, limit), nil
}

// list returns matching orders newest first.
func (r *OrderRepository) list(match func(*models.Order) bool, skip, limit int) []models.Order {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	list := []models.Order{}
	for i := len(r.s.orderSeq) - 1; i >= 0; i-- {
		o := r.s.orders[r.s.orderSeq[i]]
		if match(o) {
			list = append(list, *cloneOrder(o))
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return page(list, skip, limit)
}

// WishlistRepository implements wishlist.Repository.
type WishlistRepository struct{ s *Store }

func (r *WishlistRepository) Get(_ context.Context, userID string) (*models.Wishlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.wishlist(userID), nil
}

func (r *WishlistRepository) Add(_ context.Context, userID, productID string) (*models.Wishlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wl := r.s.wishlists[userID]
	if wl == nil {
		wl = &models.Wishlist{UserID: userID, ProductIDs: []string{}}
		r.s.wishlists[userID] = wl
	}
	if !wl.Has(productID) {
		wl.ProductIDs = append(wl.ProductIDs, productID)
	}
	wl.UpdatedAt = r.s.now().UTC()
	return r.s.wishlist(userID), nil
}

func (r *WishlistRepository) Remove(_ context.Context, userID, productID string) (*models.Wishlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if wl := r.s.wishlists[userID]; wl != nil {
		wl.ProductIDs = slices.DeleteFunc(wl.ProductIDs, func(id string) bool { return id == productID })
		wl.UpdatedAt = r.s.now().UTC()
	}
	return r.s.wishlist(userID), nil
}

func (s *Store) wishlist(userID string) *models.Wishlist {
	wl, ok := s.wishlists[userID]
	if !ok {
		return &models.Wishlist{UserID: userID, ProductIDs: []string{}}
	}
	cp := *wl
	cp.ProductIDs = slices.Clone(wl.ProductIDs)
	return &cp
}

// IdempotencyStore implements pay.IdempotencyStore.
type IdempotencyStore struct{ s *Store }

func (r *IdempotencyStore) Insert(_ context.Context, rec models.IdempotencyRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if old, ok := r.s.idempotent[rec.Key]; ok && r.s.now().Before(old.ExpiresAt) {
		return errs.ErrDuplicate
	}
	r.s.idempotent[rec.Key] = rec
	return nil
}

func (r *IdempotencyStore) Find(_ context.Context, key string) (*models.IdempotencyRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.idempotent[key]
	if !ok {
		return nil, errs.ErrItemNotFound
	}
	rec.Body = slices.Clone(rec.Body)
	return &rec, nil
}

func (r *IdempotencyStore) Complete(_ context.Context, key string, status int, body []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.idempotent[key]
	if !ok {
		return nil
	}
	rec.Status = status
	rec.Body = slices.Clone(body)
	rec.Done = true
	r.s.idempotent[key] = rec
	return nil
}

func (r *IdempotencyStore) Delete(_ context.Context, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.idempotent, key)
	return nil
}

func page[T any](list []T, skip, limit int) []T {
	if skip >= len(list) {
		return list[:0]
	}
	list = list[skip:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

func cloneCart(c *models.Cart) *models.Cart {
	cp := *c
	cp.Items = slices.Clone(c.Items)
	if cp.Items == nil {
		cp.Items = []models.CartItem{}
	}
	return &cp
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	cp.StatusHistory = slices.Clone(o.StatusHistory)
	cp.Refunds = slices.Clone(o.Refunds)
	return &cp
}
