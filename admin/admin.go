package admin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"spicery/cart"
	"spicery/models"
	"spicery/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// CouponWriter stores coupons by normalized code.
type CouponWriter interface {
	SaveCoupon(ctx context.Context, c models.Coupon) error
}

// Handler serves back-office endpoints that are not tied to an order.
type Handler struct {
	coupons CouponWriter
	log     *zap.Logger
	now     func() time.Time
}

func NewHandler(coupons CouponWriter, log *zap.Logger) *Handler {
	return &Handler{coupons: coupons, log: log, now: time.Now}
}

// SaveCoupon creates or replaces a coupon.
//
// Endpoint: PUT /api/admin/coupons
//
// Body: {code, discount, expiresAt, active}. discount is a percentage in (0, 100].
func (h *Handler) SaveCoupon(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var c models.Coupon
	if err := utils.DecodeJSON(r, &c); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	c.Code = cart.NormalizeCoupon(c.Code)
	switch {
	case c.Code == "" || strings.ContainsAny(c.Code, " \t"):
		utils.RespondWithError(w, http.StatusBadRequest, "code must be a single word")
		return
	case c.Discount <= 0 || c.Discount > 100:
		utils.RespondWithError(w, http.StatusBadRequest, "discount must be between 0 and 100")
		return
	case !c.ExpiresAt.After(h.now()):
		utils.RespondWithError(w, http.StatusBadRequest, "expiresAt must be in the future")
		return
	}

	if err := h.coupons.SaveCoupon(r.Context(), c); err != nil {
		h.log.Error("save coupon", zap.String("code", c.Code), zap.Error(err))
		utils.RespondWithAppError(w, err)
		return
	}
	h.log.Info("coupon saved",
		zap.String("code", c.Code),
		zap.Float64("discount", c.Discount),
		zap.Bool("active", c.Active),
		zap.String("by", utils.GetUserIDFromRequest(r)),
	)
	utils.RespondWithJSON(w, http.StatusOK, c)
}
