package pay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"spicery/utils"

	"go.uber.org/zap"
)

// ChargeRequest asks the gateway to collect Amount for an order.
type ChargeRequest struct {
	OrderNumber string
	Amount      float64
	Currency    string
	Method      string
}

// ChargeResult is the gateway's verdict. A declined charge is a result with
// Success false, not an error; errors mean the gateway could not be reached.
type ChargeResult struct {
	Success   bool
	Reference string
	Message   string
}

// Gateway is the external payment provider. Its internals are opaque to the
// store; only success or failure is consumed.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

var ErrUnsupportedMethod = errors.New("unsupported payment method")

// SandboxGateway approves charges up to DeclineOver and declines the rest.
// It stands in for the real provider in development and tests.
type SandboxGateway struct {
	DeclineOver float64
	Methods     []string
	log         *zap.Logger
}

func NewSandboxGateway(log *zap.Logger) *SandboxGateway {
	return &SandboxGateway{
		DeclineOver: 10000,
		Methods:     []string{"card", "upi", "wallet", "cod"},
		log:         log,
	}
}

func (g *SandboxGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}
	method := strings.ToLower(req.Method)
	if !g.supports(method) {
		return ChargeResult{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}

	ref := "sbx_" + strings.ReplaceAll(utils.GetUUID(), "-", "")[:16]
	if req.Amount <= 0 || req.Amount > g.DeclineOver {
		g.log.Info("sandbox charge declined", zap.String("orderNumber", req.OrderNumber), zap.Float64("amount", req.Amount))
		return ChargeResult{Success: false, Reference: ref, Message: "payment declined"}, nil
	}

	g.log.Info("sandbox charge approved",
		zap.String("orderNumber", req.OrderNumber),
		zap.Float64("amount", req.Amount),
		zap.String("method", method),
		zap.Time("at", time.Now().UTC()),
	)
	return ChargeResult{Success: true, Reference: ref, Message: "approved"}, nil
}

func (g *SandboxGateway) supports(method string) bool {
	return slices.Contains(g.Methods, method)
}
