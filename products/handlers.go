package products

import (
	"context"
	"errors"
	"net/http"

	"spicery/errs"
	"spicery/models"
	"spicery/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// StockAdjuster applies administrative stock corrections.
type StockAdjuster interface {
	Adjust(ctx context.Context, productID string, delta int) error
}

type Handler struct {
	svc   *Service
	stock StockAdjuster
	log   *zap.Logger
}

func NewHandler(svc *Service, stock StockAdjuster, log *zap.Logger) *Handler {
	return &Handler{svc: svc, stock: stock, log: log}
}

// ListProducts handles GET /api/products?category=&page=&limit=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := utils.ParseQueryOptions(r)
	list, err := h.svc.List(r.Context(), q.Category, q.Skip(), q.Limit)
	if err != nil {
		h.log.Error("list products", zap.Error(err))
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"products": list,
		"page":     q.Page,
		"limit":    q.Limit,
	})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := h.svc.Lookup(r.Context(), ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// CreateProduct handles POST /api/admin/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var p models.Product
	if err := utils.DecodeJSON(r, &p); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	created, err := h.svc.Create(r.Context(), &p)
	switch {
	case errors.Is(err, ErrInvalidProduct):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, errs.ErrDuplicate):
		utils.RespondWithError(w, http.StatusConflict, "product id already exists")
		return
	case err != nil:
		h.log.Error("create product", zap.Error(err))
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, created)
}

// AdjustStock handles PATCH /api/admin/products/:id/stock {delta}.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	productID := ps.ByName("id")
	if err := h.stock.Adjust(r.Context(), productID, req.Delta); err != nil {
		h.log.Warn("stock adjustment rejected",
			zap.String("productId", productID),
			zap.Int("delta", req.Delta),
			zap.String("by", utils.GetUserIDFromRequest(r)),
			zap.Error(err),
		)
		utils.RespondWithAppError(w, err)
		return
	}
	h.log.Info("stock adjusted",
		zap.String("productId", productID),
		zap.Int("delta", req.Delta),
		zap.String("by", utils.GetUserIDFromRequest(r)),
	)

	p, err := h.svc.Lookup(r.Context(), productID)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}
