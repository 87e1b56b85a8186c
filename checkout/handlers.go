package checkout

import (
	"net/http"
	"strings"

	"spicery/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type Handler struct {
	coord *Coordinator
	log   *zap.Logger
}

func NewHandler(coord *Coordinator, log *zap.Logger) *Handler {
	return &Handler{coord: coord, log: log}
}

type checkoutRequest struct {
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod"`
	CouponCode    string `json:"couponCode"`
}

// Checkout handles POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req checkoutRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	req.Address = strings.TrimSpace(req.Address)
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if req.Address == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "address is required")
		return
	}
	if req.PaymentMethod == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "paymentMethod is required")
		return
	}

	userID := utils.GetUserIDFromRequest(r)
	order, err := h.coord.Checkout(r.Context(), Request{
		UserID:        userID,
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		h.log.Warn("checkout failed", zap.String("userId", userID), zap.Error(err))
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, order)
}
