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

var (
	// ErrUnsupportedMethod 不认识的支付方式
	ErrUnsupportedMethod = errors.New("不支持的支付方式")
	// ErrOrderNotPayable 订单不在可支付状态（已支付、已取消或已过期）
	ErrOrderNotPayable = errors.New("订单不可支付")
	// ErrBalanceRecharge 充值订单不能用余额支付
	ErrBalanceRecharge = errors.New("充值订单不能使用余额支付")
)

// PayService 发起支付
//
// 所有支付方式走同一个入口按 method 分发，不再为每个渠道开一个接口。
// 余额支付在本地事务内直接完结；外部渠道只落支付方式，
// 订单停留在待支付，由回调管线负责后续迁移。
type PayService struct {
	db          *gorm.DB
	lockStore   lock.Store
	cfg         *config.Config
	orderRepo   *repository.OrderRepository
	ledger      *LedgerService
	fulfillment *FulfillmentService
	outbox      *OutboxWriter
}

func NewPayService(db *gorm.DB, lockStore lock.Store, cfg *config.Config) *PayService {
	return &PayService{
		db:          db,
		lockStore:   lockStore,
		cfg:         cfg,
		orderRepo:   repository.NewOrderRepository(db),
		ledger:      NewLedgerService(db),
		fulfillment: NewFulfillmentService(db, cfg),
		outbox:      NewOutboxWriter(db, cfg),
	}
}

type PayRequest struct {
	OrderNo string `json:"order_no" binding:"required"`
	UserID  int64  `json:"user_id" binding:"required"`
	Method  string `json:"method" binding:"required"`
}

type PayResponse struct {
	OrderNo string `json:"order_no"`
	Status  string `json:"status"`
	Method  string `json:"method"`
	Amount  int64  `json:"amount"`
	Message string `json:"message,omitempty"`
}

// PayOrder 对已创建的待支付订单发起支付
func (s *PayService) PayOrder(ctx context.Context, req *PayRequest) (*PayResponse, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, req.OrderNo)
	if err != nil {
		return nil, err
	}
	if order.UserID != req.UserID {
		return nil, repository.ErrOrderNotFound
	}
	if order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: 当前状态 %s", ErrOrderNotPayable, order.Status)
	}
	if time.Now().After(order.ExpiresAt) {
		return nil, fmt.Errorf("%w: 订单已过期", ErrOrderNotPayable)
	}

	switch req.Method {
	case model.PayMethodBalance:
		return s.payWithBalance(ctx, order)
	case model.PayMethodAlipay, model.PayMethodWechat, model.PayMethodIkunpay, model.PayMethodGateway:
		return s.payWithProvider(ctx, order, req.Method)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, req.Method)
	}
}

// payWithProvider 外部渠道：只记录支付方式，等回调完结订单
func (s *PayService) payWithProvider(ctx context.Context, order *model.PaymentOrder, method string) (*PayResponse, error) {
	if err := s.orderRepo.SetPaymentMethod(ctx, nil, order.OrderNo, method); err != nil {
		if errors.Is(err, repository.ErrOrderStateConflict) {
			return nil, fmt.Errorf("%w: 订单状态已变化", ErrOrderNotPayable)
		}
		return nil, err
	}

	logger.L.Info("发起渠道支付",
		zap.String("order_no", order.OrderNo),
		zap.String("method", method),
		zap.Int64("amount", order.Amount))

	return &PayResponse{
		OrderNo: order.OrderNo,
		Status:  model.OrderStatusPending,
		Method:  method,
		Amount:  order.Amount,
		Message: "等待渠道支付结果",
	}, nil
}

// payWithBalance 余额支付：扣款、订单完结、履约、发件箱，同一事务
func (s *PayService) payWithBalance(ctx context.Context, order *model.PaymentOrder) (*PayResponse, error) {
	// 余额充余额没有意义，直接拒绝
	if order.OrderType == model.OrderTypeRecharge {
		return nil, ErrBalanceRecharge
	}

	// 按用户加锁，串行化同一用户的余额支付
	lockKey := fmt.Sprintf("pay:balance:%d", order.UserID)
	mutex := lock.NewMutex(s.lockStore, lockKey, uuid.NewString(), 10*time.Second)
	if err := mutex.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer func() {
		if err := mutex.Unlock(context.Background()); err != nil {
			logger.L.Error("释放余额支付锁失败", zap.String("lock_key", lockKey), zap.Error(err))
		}
	}()

	tradeNo := idgen.GenerateTradeNo()
	remark := fmt.Sprintf("余额支付-%s", order.OrderNo)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.MarkPaid(ctx, tx, order.OrderNo, tradeNo); err != nil {
			return err
		}

		if err := s.ledger.Debit(ctx, tx, order.UserID, order.Amount, order.OrderNo, remark); err != nil {
			return err
		}

		order.Status = model.OrderStatusPaid
		order.TradeNo = tradeNo
		order.PaymentMethod = model.PayMethodBalance

		if err := tx.WithContext(ctx).
			Model(&model.PaymentOrder{}).
			Where("order_no = ?", order.OrderNo).
			Update("payment_method", model.PayMethodBalance).Error; err != nil {
			return err
		}

		if err := s.fulfillment.Fulfill(ctx, tx, order); err != nil {
			return fmt.Errorf("履约失败: %w", err)
		}

		return s.outbox.WriteOrderPaid(ctx, tx, order)
	})

	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, repository.ErrInsufficientBalance
		}
		if errors.Is(err, repository.ErrOrderStateConflict) {
			return nil, fmt.Errorf("%w: 订单状态已变化", ErrOrderNotPayable)
		}
		return nil, err
	}

	logger.L.Info("余额支付成功",
		zap.String("order_no", order.OrderNo),
		zap.Int64("user_id", order.UserID),
		zap.Int64("amount", order.Amount))

	return &PayResponse{
		OrderNo: order.OrderNo,
		Status:  model.OrderStatusPaid,
		Method:  model.PayMethodBalance,
		Amount:  order.Amount,
		Message: "支付成功",
	}, nil
}
