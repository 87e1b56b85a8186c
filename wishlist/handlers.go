package wishlist

import (
	"net/http"
	"strings"

	"spicery/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	wl, err := h.svc.Get(r.Context(), utils.GetUserIDFromRequest(r))
	if err != nil {
		h.fail(w, r, "GetWishlist", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, wl)
}

// AddToWishlist handles POST /api/wishlist {productId}.
func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		ProductID string `json:"productId"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	wl, err := h.svc.Add(r.Context(), utils.GetUserIDFromRequest(r), req.ProductID)
	if err != nil {
		h.fail(w, r, "AddToWishlist", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, wl)
}

// RemoveFromWishlist handles DELETE /api/wishlist?productId=<id>.
func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	productID := strings.TrimSpace(r.URL.Query().Get("productId"))
	if productID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "productId is required")
		return
	}
	wl, err := h.svc.Remove(r.Context(), utils.GetUserIDFromRequest(r), productID)
	if err != nil {
		h.fail(w, r, "RemoveFromWishlist", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, wl)
}

// MoveToCart handles POST /api/wishlist/move-to-cart {productId, quantity}.
func (h *Handler) MoveToCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	c, err := h.svc.MoveToCart(r.Context(), utils.GetUserIDFromRequest(r), req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, "MoveToCart", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Warn(op+" failed", zap.String("userId", utils.GetUserIDFromRequest(r)), zap.Error(err))
	utils.RespondWithAppError(w, err)
}
