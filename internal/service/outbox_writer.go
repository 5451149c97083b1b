package service

import (
	"context"
	"encoding/json"
	"time"

	"paycore/internal/config"
	"paycore/internal/model"
	"paycore/internal/repository"

	"gorm.io/gorm"
)

// OutboxWriter 支付事件写入发件箱，和业务变更同一事务提交
type OutboxWriter struct {
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
}

func NewOutboxWriter(db *gorm.DB, cfg *config.Config) *OutboxWriter {
	return &OutboxWriter{
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
	}
}

func (w *OutboxWriter) WriteOrderPaid(ctx context.Context, tx *gorm.DB, order *model.PaymentOrder) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"order_no":   order.OrderNo,
		"user_id":    order.UserID,
		"order_type": order.OrderType,
		"amount":     order.Amount,
		"method":     order.PaymentMethod,
		"trade_no":   order.TradeNo,
		"status":     model.OrderStatusPaid,
		"paid_at":    time.Now().Format(time.RFC3339),
	})

	return w.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: order.OrderNo,
		Topic:      w.cfg.Kafka.Topic.OrderPaid,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

func (w *OutboxWriter) WriteOrderRefunded(ctx context.Context, tx *gorm.DB, order *model.PaymentOrder, refundNo string) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"order_no":    order.OrderNo,
		"refund_no":   refundNo,
		"user_id":     order.UserID,
		"amount":      order.Amount,
		"status":      model.OrderStatusRefunded,
		"refunded_at": time.Now().Format(time.RFC3339),
	})

	return w.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: order.OrderNo,
		Topic:      w.cfg.Kafka.Topic.OrderRefunded,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}
