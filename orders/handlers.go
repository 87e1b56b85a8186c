package orders

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"spicery/errs"
	"spicery/invoice"
	"spicery/models"
	"spicery/pay"
	"spicery/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type Handler struct {
	svc      *Service
	gateway  pay.Gateway
	invoices *invoice.Renderer
	log      *zap.Logger
}

func NewHandler(svc *Service, gateway pay.Gateway, invoices *invoice.Renderer, log *zap.Logger) *Handler {
	return &Handler{svc: svc, gateway: gateway, invoices: invoices, log: log}
}

// ListMyOrders handles GET /api/orders.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := utils.ParseQueryOptions(r)
	list, err := h.svc.ListForUser(r.Context(), utils.GetUserIDFromRequest(r), q.Skip(), q.Limit)
	if err != nil {
		h.fail(w, r, "ListMyOrders", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"orders": list, "page": q.Page, "limit": q.Limit})
}

// GetOrder handles GET /api/orders/:orderNumber.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.svc.GetForUser(r.Context(), ps.ByName("orderNumber"), utils.GetUserIDFromRequest(r), utils.IsAdmin(r))
	if err != nil {
		h.fail(w, r, "GetOrder", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

// UpdateStatus handles PATCH /api/orders/:orderNumber/status {status, note}.
// Only admins may call it.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !utils.IsAdmin(r) {
		utils.RespondWithAppError(w, errs.ErrForbidden)
		return
	}
	var req struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	to := models.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	o, err := h.svc.Transition(r.Context(), ps.ByName("orderNumber"), to, req.Note, utils.GetUserIDFromRequest(r))
	if err != nil {
		h.fail(w, r, "UpdateStatus", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

// PayOrder handles POST /api/orders/:orderNumber/pay. The order is claimed
// before the gateway is called, so concurrent requests cannot both charge.
// The gateway result only ever moves paymentStatus.
func (h *Handler) PayOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	userID := utils.GetUserIDFromRequest(r)

	o, err := h.svc.GetForUser(ctx, ps.ByName("orderNumber"), userID, false)
	if err != nil {
		h.fail(w, r, "PayOrder", err)
		return
	}
	if !Payable(o) {
		h.fail(w, r, "PayOrder", errs.ErrPaymentNotAllowed)
		return
	}
	if o, err = h.svc.BeginPayment(ctx, o.OrderNumber); err != nil {
		h.fail(w, r, "PayOrder", err)
		return
	}

	res, err := h.gateway.Charge(ctx, pay.ChargeRequest{
		OrderNumber: o.OrderNumber,
		Amount:      o.Total,
		Currency:    "USD",
		Method:      o.PaymentMethod,
	})
	if err != nil {
		// Nothing was charged; give the claim back so the order stays payable.
		if _, serr := h.svc.SettlePayment(context.WithoutCancel(ctx), o.OrderNumber, false, ""); serr != nil {
			h.log.Error("release payment claim", zap.String("orderNumber", o.OrderNumber), zap.Error(serr))
		}
		if errors.Is(err, pay.ErrUnsupportedMethod) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("payment gateway", zap.String("orderNumber", o.OrderNumber), zap.Error(err))
		utils.RespondWithError(w, http.StatusBadGateway, "payment could not be processed, please retry")
		return
	}

	o, err = h.svc.SettlePayment(context.WithoutCancel(ctx), o.OrderNumber, res.Success, res.Reference)
	if err != nil {
		h.fail(w, r, "PayOrder", err)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusPaymentRequired
	}
	utils.RespondWithJSON(w, status, utils.M{
		"order":   o,
		"success": res.Success,
		"message": res.Message,
	})
}

// Invoice handles GET /api/orders/:orderNumber/invoice.
func (h *Handler) Invoice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.svc.GetForUser(r.Context(), ps.ByName("orderNumber"), utils.GetUserIDFromRequest(r), utils.IsAdmin(r))
	if err != nil {
		h.fail(w, r, "Invoice", err)
		return
	}
	pdf, err := h.invoices.Render(o)
	if err != nil {
		h.fail(w, r, "Invoice", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=invoice-"+o.OrderNumber+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// VerifyInvoice handles POST /api/admin/invoices/verify {payload}, where
// payload is the text scanned from an invoice QR code.
func (h *Handler) VerifyInvoice(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Payload string `json:"payload"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil || strings.TrimSpace(req.Payload) == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "payload is required")
		return
	}
	if !h.invoices.Verify(req.Payload) {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"valid": false})
		return
	}

	number, _, _ := strings.Cut(req.Payload, "|")
	o, err := h.svc.Get(r.Context(), number)
	if err != nil {
		h.fail(w, r, "VerifyInvoice", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"valid":         true,
		"orderNumber":   o.OrderNumber,
		"userId":        o.UserID,
		"total":         o.Total,
		"orderStatus":   o.OrderStatus,
		"paymentStatus": o.PaymentStatus,
	})
}

// Refund handles POST /api/admin/orders/:orderNumber/refund {amount, reason}.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req struct {
		Amount float64 `json:"amount"`
		Reason string  `json:"reason"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	o, err := h.svc.Refund(r.Context(), ps.ByName("orderNumber"), req.Amount, req.Reason, utils.GetUserIDFromRequest(r))
	if err != nil {
		h.fail(w, r, "Refund", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, o)
}

// ListAll handles GET /api/admin/orders?status=&page=&limit=.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := utils.ParseQueryOptions(r)
	list, err := h.svc.List(r.Context(), models.OrderStatus(q.Status), q.Skip(), q.Limit)
	if err != nil {
		h.fail(w, r, "ListAll", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"orders": list, "page": q.Page, "limit": q.Limit})
}

// NextStatuses handles GET /api/admin/orders/:orderNumber/next and lists the
// statuses the order may move to.
func (h *Handler) NextStatuses(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	o, err := h.svc.Get(r.Context(), ps.ByName("orderNumber"))
	if err != nil {
		h.fail(w, r, "NextStatuses", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"orderNumber":   o.OrderNumber,
		"currentStatus": o.OrderStatus,
		"next":          NextStatuses(o.OrderStatus),
		"terminal":      IsTerminal(o.OrderStatus),
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Warn(op+" failed", zap.String("userId", utils.GetUserIDFromRequest(r)), zap.Error(err))
	utils.RespondWithAppError(w, err)
}
