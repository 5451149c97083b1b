package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paycore/internal/config"
	"paycore/internal/infrastructure/lock"
	"paycore/internal/model"
	"paycore/internal/repository"
	"paycore/pkg/idgen"
	"paycore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminService 运营后台人工干预
//
// 渠道回调长期不到、对账确认钱已到的订单，允许运营手工补单。
// 补单走和回调完全一样的事务管线，只是交易号是自己生成的。
type AdminService struct {
	db          *gorm.DB
	lockStore   lock.Store
	orderRepo   *repository.OrderRepository
	fulfillment *FulfillmentService
	outbox      *OutboxWriter
}

func NewAdminService(db *gorm.DB, lockStore lock.Store, cfg *config.Config) *AdminService {
	return &AdminService{
		db:          db,
		lockStore:   lockStore,
		orderRepo:   repository.NewOrderRepository(db),
		fulfillment: NewFulfillmentService(db, cfg),
		outbox:      NewOutboxWriter(db, cfg),
	}
}

// MarkOrderPaid 人工标记订单已支付
//
// 锁只串行化并发的人工操作；和回调管线之间靠 MarkPaid 的
// 条件更新兜底。重复标记幂等返回。
func (s *AdminService) MarkOrderPaid(ctx context.Context, orderNo, operator string) (*model.PaymentOrder, error) {
	lockKey := fmt.Sprintf("pay:admin:%s", orderNo)
	mutex := lock.NewMutex(s.lockStore, lockKey, uuid.NewString(), 30*time.Second)
	if err := mutex.Lock(ctx, 100*time.Millisecond, 10); err != nil {
		return nil, err
	}
	defer func() {
		if err := mutex.Unlock(context.Background()); err != nil {
			logger.L.Error("释放补单锁失败", zap.String("lock_key", lockKey), zap.Error(err))
		}
	}()

	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderStatusPaid {
		return order, nil
	}
	if order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: 当前状态 %s", ErrOrderNotPayable, order.Status)
	}

	tradeNo := idgen.GenerateTradeNo()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.MarkPaid(ctx, tx, order.OrderNo, tradeNo); err != nil {
			return err
		}

		order.Status = model.OrderStatusPaid
		order.TradeNo = tradeNo

		if err := s.fulfillment.Fulfill(ctx, tx, order); err != nil {
			return fmt.Errorf("履约失败: %w", err)
		}

		return s.outbox.WriteOrderPaid(ctx, tx, order)
	})
	if err != nil {
		if errors.Is(err, repository.ErrOrderStateConflict) {
			// 回调在持锁间隙抢先完成，重读后按幂等返回
			return s.orderRepo.GetByOrderNo(ctx, orderNo)
		}
		return nil, err
	}

	logger.L.Warn("人工补单",
		zap.String("order_no", orderNo),
		zap.String("trade_no", tradeNo),
		zap.String("operator", operator))
	return order, nil
}

// CancelOrder 人工关单，不校验归属
func (s *AdminService) CancelOrder(ctx context.Context, orderNo, operator string) error {
	if err := s.orderRepo.UpdateStatus(ctx, nil, orderNo,
		model.OrderStatusPending, model.OrderStatusCancelled); err != nil {
		return err
	}

	logger.L.Warn("人工关单",
		zap.String("order_no", orderNo),
		zap.String("operator", operator))
	return nil
}
