package products_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"spicery/errs"
	"spicery/memstore"
	"spicery/models"
	"spicery/products"
	"spicery/stock"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup() (*products.Service, *httprouter.Router) {
	mem := memstore.New()
	mem.Seed(
		models.Product{ProductID: "A", Name: "Saffron", Category: "premium", Price: 10, StockQuantity: 5},
		models.Product{ProductID: "B", Name: "Cumin", Category: "seeds", Price: 5},
		models.Product{ProductID: "C", Name: "Anise", Category: "seeds", Price: 3, StockQuantity: 1},
	)
	svc := products.NewService(mem.Products(), zap.NewNop())
	h := products.NewHandler(svc, stock.NewLedger(mem.Stock(), zap.NewNop()), zap.NewNop())

	router := httprouter.New()
	router.GET("/api/products", h.ListProducts)
	router.GET("/api/products/:id", h.GetProduct)
	router.POST("/api/admin/products", h.CreateProduct)
	router.PATCH("/api/admin/products/:id/stock", h.AdjustStock)
	return svc, router
}

func TestLookup(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()

	p, err := svc.Lookup(ctx, "A")
	require.NoError(t, err)
	assert.True(t, p.InStock)

	p, err = svc.Lookup(ctx, "B")
	require.NoError(t, err)
	assert.False(t, p.InStock)

	_, err = svc.Lookup(ctx, "Z")
	assert.ErrorIs(t, err, errs.ErrProductNotFound)
}

func TestList(t *testing.T) {
	svc, _ := setup()

	seeds, err := svc.List(context.Background(), "seeds", 0, 10)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "Anise", seeds[0].Name)
	assert.True(t, seeds[0].InStock)

	page, err := svc.List(context.Background(), "", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Cumin", page[0].Name)
}

func TestCreate(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()

	p, err := svc.Create(ctx, &models.Product{Name: " Sumac ", Price: 4, StockQuantity: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ProductID)
	assert.Equal(t, "Sumac", p.Name)

	_, err = svc.Create(ctx, &models.Product{ProductID: "A", Name: "Dup", Price: 1})
	assert.ErrorIs(t, err, errs.ErrDuplicate)
	_, err = svc.Create(ctx, &models.Product{Name: "", Price: 1})
	assert.ErrorIs(t, err, products.ErrInvalidProduct)
	_, err = svc.Create(ctx, &models.Product{Name: "Neg", Price: -1})
	assert.ErrorIs(t, err, products.ErrInvalidProduct)
	_, err = svc.Create(ctx, &models.Product{Name: "Free", Price: 0, StockQuantity: 3})
	assert.ErrorIs(t, err, products.ErrInvalidProduct)
	_, err = svc.Create(ctx, &models.Product{Name: "Bulk", Price: 1, StockQuantity: -1})
	assert.ErrorIs(t, err, products.ErrInvalidProduct)
}

func TestHandlers(t *testing.T) {
	_, router := setup()
	do := func(method, target, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
		return rec
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/products?category=seeds", "").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/products/Z", "").Code)
	assert.Equal(t, http.StatusCreated, do(http.MethodPost, "/api/admin/products", `{"productId":"D","name":"Dill","price":2}`).Code)
	assert.Equal(t, http.StatusConflict, do(http.MethodPost, "/api/admin/products", `{"productId":"D","name":"Dill","price":2}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/api/admin/products", `{"name":"Dill","price":0}`).Code)

	rec := do(http.MethodPatch, "/api/admin/products/B/stock", `{"delta":7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stockQuantity":7`)

	rec = do(http.MethodPatch, "/api/admin/products/B/stock", `{"delta":-8}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "InsufficientStock")

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPatch, "/api/admin/products/B/stock", `{"delta":0}`).Code)
}
