package orders_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"spicery/globals"
	"spicery/invoice"
	"spicery/models"
	"spicery/orders"
	"spicery/pay"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func asCaller(userID string, roles ...string) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			ctx := context.WithValue(r.Context(), globals.UserIDKey, userID)
			ctx = context.WithValue(ctx, globals.RoleKey, roles)
			next(w, r.WithContext(ctx), ps)
		}
	}
}

func newOrderRouter(f *fixture, userID string, roles ...string) *httprouter.Router {
	return newOrderRouterWith(f, pay.NewSandboxGateway(zap.NewNop()), userID, roles...)
}

func newOrderRouterWith(f *fixture, gateway pay.Gateway, userID string, roles ...string) *httprouter.Router {
	h := orders.NewHandler(f.svc, gateway, invoice.NewRenderer([]byte("k")), zap.NewNop())
	as := asCaller(userID, roles...)

	router := httprouter.New()
	router.GET("/api/orders", as(h.ListMyOrders))
	router.GET("/api/orders/:orderNumber", as(h.GetOrder))
	router.GET("/api/orders/:orderNumber/invoice", as(h.Invoice))
	router.POST("/api/orders/:orderNumber/pay", as(h.PayOrder))
	router.PATCH("/api/orders/:orderNumber/status", as(h.UpdateStatus))
	router.GET("/api/admin/orders", as(h.ListAll))
	router.GET("/api/admin/orders/:orderNumber/next", as(h.NextStatuses))
	router.POST("/api/admin/orders/:orderNumber/refund", as(h.Refund))
	router.POST("/api/admin/invoices/verify", as(h.VerifyInvoice))
	return router
}

func call(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestUpdateStatus_AdminOnly(t *testing.T) {
	f := newFixture()
	f.place(t, "ORD-1", 1)

	rec := call(newOrderRouter(f, "u1", "user"), http.MethodPatch, "/api/orders/ORD-1/status", `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := newOrderRouter(f, "a1", "admin")
	rec = call(admin, http.MethodPatch, "/api/orders/ORD-1/status", `{"status":"Confirmed","note":"called customer"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var o models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, models.StatusConfirmed, o.OrderStatus)
	assert.Len(t, o.StatusHistory, 2)

	rec = call(admin, http.MethodPatch, "/api/orders/ORD-1/status", `{"status":"delivered"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"currentStatus":"confirmed"`)
	assert.Contains(t, rec.Body.String(), `"requestedStatus":"delivered"`)

	rec = call(admin, http.MethodPatch, "/api/orders/ORD-404/status", `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrder_Ownership(t *testing.T) {
	f := newFixture()
	f.place(t, "ORD-1", 1)

	assert.Equal(t, http.StatusOK, call(newOrderRouter(f, "u1"), http.MethodGet, "/api/orders/ORD-1", "").Code)
	assert.Equal(t, http.StatusNotFound, call(newOrderRouter(f, "u2"), http.MethodGet, "/api/orders/ORD-1", "").Code)
	assert.Equal(t, http.StatusOK, call(newOrderRouter(f, "a1", "admin"), http.MethodGet, "/api/orders/ORD-1", "").Code)
}

func TestPayOrder(t *testing.T) {
	f := newFixture()
	f.place(t, "ORD-1", 1)
	require.NoError(t, f.mem.Orders().Insert(context.Background(), &models.Order{
		OrderNumber: "ORD-2", UserID: "u1", PaymentMethod: "card", Total: 12,
		OrderStatus: models.StatusPending, PaymentStatus: models.PaymentPending,
	}))

	router := newOrderRouter(f, "u1")

	// ORD-1 was placed without a payment method.
	rec := call(router, http.MethodPost, "/api/orders/ORD-1/pay", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(router, http.MethodPost, "/api/orders/ORD-2/pay", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paymentStatus":"paid"`)

	rec = call(router, http.MethodPost, "/api/orders/ORD-2/pay", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "PaymentNotAllowed")

	rec = call(newOrderRouter(f, "u2"), http.MethodPost, "/api/orders/ORD-2/pay", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// heldGateway blocks every charge until release is closed.
type heldGateway struct {
	entered chan struct{}
	release chan struct{}
	charges atomic.Int32
}

func newHeldGateway() *heldGateway {
	return &heldGateway{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *heldGateway) Charge(_ context.Context, req pay.ChargeRequest) (pay.ChargeResult, error) {
	n := g.charges.Add(1)
	g.entered <- struct{}{}
	<-g.release
	return pay.ChargeResult{Success: true, Reference: fmt.Sprintf("held_%d", n), Message: "approved"}, nil
}

func TestPayOrder_ConcurrentRequestsChargeOnce(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.mem.Orders().Insert(context.Background(), &models.Order{
		OrderNumber: "ORD-2", UserID: "u1", PaymentMethod: "card", Total: 12,
		OrderStatus: models.StatusPending, PaymentStatus: models.PaymentPending,
	}))
	gateway := newHeldGateway()
	router := newOrderRouterWith(f, gateway, "u1")

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- call(router, http.MethodPost, "/api/orders/ORD-2/pay", "") }()
	<-gateway.entered

	second := call(router, http.MethodPost, "/api/orders/ORD-2/pay", "")
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "PaymentNotAllowed")

	close(gateway.release)
	rec := <-first
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paymentRef":"held_1"`)
	assert.EqualValues(t, 1, gateway.charges.Load())
}

type brokenGateway struct{}

func (brokenGateway) Charge(context.Context, pay.ChargeRequest) (pay.ChargeResult, error) {
	return pay.ChargeResult{}, errors.New("connection reset")
}

func TestPayOrder_GatewayErrorReleasesClaim(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.mem.Orders().Insert(context.Background(), &models.Order{
		OrderNumber: "ORD-2", UserID: "u1", PaymentMethod: "card", Total: 12,
		OrderStatus: models.StatusPending, PaymentStatus: models.PaymentPending,
	}))

	rec := call(newOrderRouterWith(f, brokenGateway{}, "u1"), http.MethodPost, "/api/orders/ORD-2/pay", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	o, err := f.svc.Get(context.Background(), "ORD-2")
	require.NoError(t, err)
	assert.True(t, orders.Payable(o), "the order can be paid again")

	rec = call(newOrderRouter(f, "u1"), http.MethodPost, "/api/orders/ORD-2/pay", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvoice(t *testing.T) {
	f := newFixture()
	f.place(t, "ORD-1", 1)

	rec := call(newOrderRouter(f, "u1"), http.MethodGet, "/api/orders/ORD-1/invoice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestVerifyInvoice(t *testing.T) {
	f := newFixture()
	o := f.place(t, "ORD-1", 1)
	admin := newOrderRouter(f, "a1", "admin")
	payload := invoice.NewRenderer([]byte("k")).QRPayload(o)

	body, err := json.Marshal(map[string]string{"payload": payload})
	require.NoError(t, err)
	rec := call(admin, http.MethodPost, "/api/admin/invoices/verify", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)
	assert.Contains(t, rec.Body.String(), `"orderNumber":"ORD-1"`)

	forged := strings.Replace(payload, "|10.00|", "|1.00|", 1)
	body, err = json.Marshal(map[string]string{"payload": forged})
	require.NoError(t, err)
	rec = call(admin, http.MethodPost, "/api/admin/invoices/verify", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":false`)

	other := invoice.NewRenderer([]byte("k")).QRPayload(&models.Order{OrderNumber: "ORD-404", UserID: "u1", Total: 3})
	body, err = json.Marshal(map[string]string{"payload": other})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, call(admin, http.MethodPost, "/api/admin/invoices/verify", string(body)).Code)

	assert.Equal(t, http.StatusBadRequest, call(admin, http.MethodPost, "/api/admin/invoices/verify", `{}`).Code)
}

func TestAdminListAndRefund(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.place(t, "ORD-1", 1)
	f.charge(t, "ORD-1", true, "sbx_1")
	_, err := f.svc.Transition(ctx, "ORD-1", models.StatusCancelled, "", "a1")
	require.NoError(t, err)

	admin := newOrderRouter(f, "a1", "admin")

	rec := call(admin, http.MethodGet, "/api/admin/orders?status=cancelled", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ORD-1")

	rec = call(admin, http.MethodGet, "/api/admin/orders?status=lost", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(admin, http.MethodGet, "/api/admin/orders/ORD-1/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"terminal":true`)

	rec = call(admin, http.MethodPost, "/api/admin/orders/ORD-1/refund", `{"amount":4,"reason":"damaged"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paymentStatus":"partially_refunded"`)

	rec = call(admin, http.MethodPost, "/api/admin/orders/ORD-1/refund", `{"amount":40}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "RefundExceedsPaid")
}
