package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	OrderCreated    = "order.created"
	OrderTransition = "order.status_changed"
	OrderPayment    = "order.payment_settled"
	OrderRefunded   = "order.refunded"
)

// OrderEvent describes one change in an order's lifecycle.
type OrderEvent struct {
	Type          string    `json:"type"`
	OrderNumber   string    `json:"orderNumber"`
	UserID        string    `json:"userId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus,omitempty"`
	Note          string    `json:"note,omitempty"`
	At            time.Time `json:"at"`
}

// Emitter publishes order events. Emit never fails the caller; delivery
// problems are logged.
type Emitter interface {
	Emit(ctx context.Context, ev OrderEvent)
}

// RedisEmitter publishes events on a Redis pub/sub channel.
type RedisEmitter struct {
	conn    *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisEmitter(conn *redis.Client, channel string, log *zap.Logger) *RedisEmitter {
	return &RedisEmitter{conn: conn, channel: channel, log: log}
}

func (e *RedisEmitter) Emit(ctx context.Context, ev OrderEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		e.log.Error("marshal order event", zap.String("orderNumber", ev.OrderNumber), zap.Error(err))
		return
	}

	// Publishing must not be cut short by a finished request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := e.conn.Publish(ctx, e.channel, data).Err(); err != nil {
		e.log.Warn("publish order event",
			zap.String("channel", e.channel),
			zap.String("type", ev.Type),
			zap.String("orderNumber", ev.OrderNumber),
			zap.Error(err),
		)
		return
	}
	e.log.Debug("order event published", zap.String("type", ev.Type), zap.String("orderNumber", ev.OrderNumber))
}

// LogEmitter writes events to the log only. It is used when no Redis is
// configured.
type LogEmitter struct {
	log *zap.Logger
}

func NewLogEmitter(log *zap.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Emit(_ context.Context, ev OrderEvent) {
	e.log.Info("order event",
		zap.String("type", ev.Type),
		zap.String("orderNumber", ev.OrderNumber),
		zap.String("status", ev.Status),
		zap.String("paymentStatus", ev.PaymentStatus),
	)
}
