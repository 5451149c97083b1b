package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paycore/internal/config"
	"paycore/internal/infrastructure/lock"
	"paycore/internal/model"
	"paycore/internal/provider"
	"paycore/internal/repository"
	"paycore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ack 回调处理结论，由各渠道 handler 翻译成渠道要求的应答体
type Ack int

const (
	// AckOK 处理成功（或幂等空操作），渠道停止重发
	AckOK Ack = iota
	// AckFail 终态失败（验签失败、状态冲突、金额不符），重发也不会成功
	AckFail
	// AckRetry 基础设施暂时故障，应答失败让渠道稍后重发
	AckRetry
)

// ============================================================================
// 回调接入管线
// ============================================================================
//
// 同一笔通知可能被渠道重发、被多实例同时收到，管线里有三层独立防重：
//   1. 分布式锁 —— 把并发重复投递串行化
//   2. 已支付短路 —— 重放直接幂等应答成功
//   3. 条件更新行数校验 —— 锁过期等极端场景下的最终闸门
//
// 订单置为已支付、入账、履约、发件箱写入在同一个事务里，
// 任何一步失败整体回滚：不允许已支付未履约，也不允许履约了未支付。
// ============================================================================

type WebhookService struct {
	db           *gorm.DB
	lockStore    lock.Store
	cfg          *config.Config
	orderRepo    *repository.OrderRepository
	callbackRepo *repository.CallbackRepository
	fulfillment  *FulfillmentService
	outbox       *OutboxWriter
}

func NewWebhookService(db *gorm.DB, lockStore lock.Store, cfg *config.Config) *WebhookService {
	return &WebhookService{
		db:           db,
		lockStore:    lockStore,
		cfg:          cfg,
		orderRepo:    repository.NewOrderRepository(db),
		callbackRepo: repository.NewCallbackRepository(db),
		fulfillment:  NewFulfillmentService(db, cfg),
		outbox:       NewOutboxWriter(db, cfg),
	}
}

// HandleNotification 处理一次归一化后的渠道通知
func (s *WebhookService) HandleNotification(ctx context.Context, n provider.Notification, rawPayload string) Ack {
	// 1. 验签失败：留痕后终态拒绝，绝不触碰订单
	if !n.Verified {
		s.recordEvent(ctx, nil, &model.CallbackEvent{
			Provider: n.Provider,
			OrderNo:  n.OrderNo,
			TradeNo:  n.TradeNo,
			Verified: false,
			Reason:   n.Reason,
			Payload:  rawPayload,
		})
		logger.L.Warn("回调验签失败",
			zap.String("provider", n.Provider),
			zap.String("reason", n.Reason))
		return AckFail
	}

	// 验签通过但交易状态非成功态：留痕后应答成功，避免无意义重发
	if n.Ignore {
		s.recordVerifiedEvent(ctx, nil, n, false, n.Reason, rawPayload)
		logger.L.Info("回调为非成功交易状态，忽略",
			zap.String("provider", n.Provider),
			zap.String("order_no", n.OrderNo),
			zap.String("reason", n.Reason))
		return AckOK
	}

	// 2. 抢分布式锁，限时等待；抢不到让渠道稍后重发
	lockKey := notifyLockKey(n)
	mutex := lock.NewMutex(s.lockStore, lockKey, uuid.NewString(), s.notifyLockTTL())
	if err := mutex.Lock(ctx, 100*time.Millisecond, s.notifyLockRetries()); err != nil {
		logger.L.Warn("回调抢锁失败，等待渠道重发",
			zap.String("provider", n.Provider),
			zap.String("lock_key", lockKey),
			zap.Error(err))
		return AckRetry
	}
	defer func() {
		if err := mutex.Unlock(context.Background()); err != nil {
			logger.L.Error("释放回调锁失败", zap.String("lock_key", lockKey), zap.Error(err))
		}
	}()

	return s.process(ctx, n, rawPayload)
}

// process 持锁后的订单处理
func (s *WebhookService) process(ctx context.Context, n provider.Notification, rawPayload string) Ack {
	// 3. 持锁后重新读取订单
	order, err := s.orderRepo.GetByOrderNo(ctx, n.OrderNo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			s.recordVerifiedEvent(ctx, nil, n, false, model.CallbackReasonOrderNotFound, rawPayload)
			logger.L.Warn("回调对应的订单不存在",
				zap.String("provider", n.Provider),
				zap.String("order_no", n.OrderNo))
			return AckFail
		}
		logger.L.Error("查询订单失败", zap.String("order_no", n.OrderNo), zap.Error(err))
		return AckRetry
	}

	// 4. 已支付短路：重放的幂等应答
	if order.Status == model.OrderStatusPaid {
		s.recordVerifiedEvent(ctx, nil, n, true, model.CallbackReasonAlreadyPaid, rawPayload)
		logger.L.Info("订单已支付，回调幂等短路",
			zap.String("order_no", n.OrderNo),
			zap.String("trade_no", n.TradeNo))
		return AckOK
	}

	// 5. 状态与金额校验，权威金额以订单为准
	if order.Status != model.OrderStatusPending {
		s.recordVerifiedEvent(ctx, nil, n, false, model.CallbackReasonStateConflict, rawPayload)
		logger.L.Warn("订单状态不允许支付",
			zap.String("order_no", n.OrderNo),
			zap.String("status", order.Status))
		return AckFail
	}
	if n.Amount != order.Amount {
		reason := fmt.Sprintf("%s: 通知 %d 订单 %d", model.CallbackReasonAmountMismatch, n.Amount, order.Amount)
		s.recordVerifiedEvent(ctx, nil, n, false, reason, rawPayload)
		logger.L.Warn("回调金额与订单不符",
			zap.String("order_no", n.OrderNo),
			zap.Int64("notify_amount", n.Amount),
			zap.Int64("order_amount", order.Amount))
		return AckFail
	}

	// 6-7. 条件更新置为已支付 + 履约 + 发件箱，同一事务
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.MarkPaid(ctx, tx, order.OrderNo, n.TradeNo); err != nil {
			return err
		}

		order.Status = model.OrderStatusPaid
		order.TradeNo = n.TradeNo

		if err := s.fulfillment.Fulfill(ctx, tx, order); err != nil {
			return fmt.Errorf("履约失败: %w", err)
		}

		return s.outbox.WriteOrderPaid(ctx, tx, order)
	})

	if err != nil {
		if errors.Is(err, repository.ErrOrderStateConflict) {
			// 锁过期后另一实例抢先完成，按幂等处理
			s.recordVerifiedEvent(ctx, nil, n, true, model.CallbackReasonAlreadyPaid, rawPayload)
			logger.L.Info("并发重复投递，订单已被其他实例处理",
				zap.String("order_no", n.OrderNo))
			return AckOK
		}
		logger.L.Error("支付事务失败，整体回滚",
			zap.String("order_no", n.OrderNo),
			zap.Error(err))
		return AckRetry
	}

	// 8. 成功留痕
	s.recordVerifiedEvent(ctx, nil, n, true, "", rawPayload)
	logger.L.Info("回调处理成功",
		zap.String("provider", n.Provider),
		zap.String("order_no", n.OrderNo),
		zap.String("trade_no", n.TradeNo),
		zap.Int64("amount", n.Amount))
	return AckOK
}

func (s *WebhookService) recordVerifiedEvent(ctx context.Context, tx *gorm.DB, n provider.Notification, success bool, reason, rawPayload string) {
	event := &model.CallbackEvent{
		Provider: n.Provider,
		OrderNo:  n.OrderNo,
		TradeNo:  n.TradeNo,
		Verified: true,
		Success:  success,
		Reason:   reason,
		Payload:  rawPayload,
	}
	if err := s.callbackRepo.CreateVerified(ctx, tx, event); err != nil {
		logger.L.Error("写入回调审计记录失败",
			zap.String("order_no", n.OrderNo),
			zap.Error(err))
	}
}

func (s *WebhookService) recordEvent(ctx context.Context, tx *gorm.DB, event *model.CallbackEvent) {
	if err := s.callbackRepo.Create(ctx, tx, event); err != nil {
		logger.L.Error("写入回调审计记录失败",
			zap.String("order_no", event.OrderNo),
			zap.Error(err))
	}
}

// notifyLockKey 锁粒度：渠道 + 交易号（缺交易号时退化到订单号）
func notifyLockKey(n provider.Notification) string {
	ref := n.TradeNo
	if ref == "" {
		ref = n.OrderNo
	}
	return fmt.Sprintf("pay:notify:%s:%s", n.Provider, ref)
}

func (s *WebhookService) notifyLockTTL() time.Duration {
	seconds := s.cfg.Business.NotifyLockSeconds
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

func (s *WebhookService) notifyLockRetries() int {
	retries := s.cfg.Business.NotifyLockWaitRetries
	if retries <= 0 {
		retries = 20
	}
	return retries
}
