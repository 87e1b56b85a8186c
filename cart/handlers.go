package cart

import (
	"net/http"
	"net/url"
	"strings"

	"spicery/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Handler exposes the cart over HTTP. All routes require an authenticated user.
type Handler struct {
	store *Store
	log   *zap.Logger
}

func NewHandler(store *Store, log *zap.Logger) *Handler {
	return &Handler{store: store, log: log}
}

type itemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// GetCart returns the cart with its recomputed totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	c, err := h.store.GetCart(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		h.fail(w, r, "GetCart", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c)
}

// AddToCart handles POST /api/cart {productId, quantity}.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req itemRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	c, err := h.store.AddItem(r.Context(), utils.GetUserIDFromRequest(r), req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, "AddToCart", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c)
}

// UpdateCart handles PUT /api/cart {productId, quantity}. The quantity is
// absolute; zero removes the line.
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req itemRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "productId is required")
		return
	}
	c, err := h.store.UpdateQuantity(r.Context(), utils.GetUserIDFromRequest(r), req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, "UpdateCart", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c)
}

// RemoveFromCart handles DELETE /api/cart?productId=<id>. A JSON body
// {"productId": ...} is still accepted for older clients but is deprecated.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	productID := strings.TrimSpace(r.URL.Query().Get("productId"))
	if productID == "" && r.ContentLength != 0 {
		var req itemRequest
		if err := utils.DecodeJSON(r, &req); err == nil {
			productID = strings.TrimSpace(req.ProductID)
		}
		if productID != "" {
			w.Header().Set("Deprecation", "true")
			w.Header().Set("Link", `</api/cart?productId=`+url.QueryEscape(productID)+`>; rel="alternate"`)
			h.log.Info("deprecated remove-item body used",
				zap.String("userId", utils.GetUserIDFromRequest(r)),
				zap.String("userAgent", r.UserAgent()),
			)
		}
	}
	if productID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "productId is required")
		return
	}

	c, err := h.store.RemoveItem(r.Context(), utils.GetUserIDFromRequest(r), productID)
	if err != nil {
		h.fail(w, r, "RemoveFromCart", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c)
}

// ClearCart handles DELETE /api/cart/clear.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	c, err := h.store.ClearCart(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		h.fail(w, r, "ClearCart", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c)
}

// PreviewCoupon handles POST /api/cart/coupon {code} and reports the discount
// the coupon would give on the current cart.
func (h *Handler) PreviewCoupon(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Code string `json:"code"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request")
		return
	}

	c, err := h.store.GetCart(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		h.fail(w, r, "PreviewCoupon", err)
		return
	}
	quote, err := h.store.QuoteCoupon(r.Context(), req.Code, Subtotal(c.Items))
	if err != nil {
		h.fail(w, r, "PreviewCoupon", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"valid":    true,
		"code":     quote.Code,
		"percent":  quote.Percent,
		"discount": quote.Discount.InexactFloat64(),
		"message":  "Coupon applied successfully",
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Warn(op+" failed",
		zap.String("userId", utils.GetUserIDFromRequest(r)),
		zap.Error(err),
	)
	utils.RespondWithAppError(w, err)
}
