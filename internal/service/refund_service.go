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

// ErrOrderNotRefundable 只有已支付订单可以退款
var ErrOrderNotRefundable = errors.New("订单状态不允许退款")

// RefundService 退款到余额
//
// PAID -> REFUNDED 是一次性迁移：条件更新 0 行命中即退出，
// 退款入账和流水不可能被触发两次。重复请求返回已退款结果而不是报错。
type RefundService struct {
	db              *gorm.DB
	lockStore       lock.Store
	cfg             *config.Config
	orderRepo       *repository.OrderRepository
	transactionRepo *repository.TransactionRepository
	ledger          *LedgerService
	outbox          *OutboxWriter
}

func NewRefundService(db *gorm.DB, lockStore lock.Store, cfg *config.Config) *RefundService {
	return &RefundService{
		db:              db,
		lockStore:       lockStore,
		cfg:             cfg,
		orderRepo:       repository.NewOrderRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		ledger:          NewLedgerService(db),
		outbox:          NewOutboxWriter(db, cfg),
	}
}

type RefundRequest struct {
	OrderNo string `json:"order_no" binding:"required"`
	Reason  string `json:"reason"`
}

type RefundResponse struct {
	RefundNo string `json:"refund_no,omitempty"`
	OrderNo  string `json:"order_no"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// Refund 把已支付订单退款到用户余额
func (s *RefundService) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, req.OrderNo)
	if err != nil {
		return nil, err
	}

	if order.Status == model.OrderStatusRefunded {
		return s.alreadyRefunded(order), nil
	}
	if order.Status != model.OrderStatusPaid {
		return nil, fmt.Errorf("%w: 当前状态 %s", ErrOrderNotRefundable, order.Status)
	}

	lockKey := fmt.Sprintf("pay:refund:%s", req.OrderNo)
	mutex := lock.NewMutex(s.lockStore, lockKey, uuid.NewString(), 30*time.Second)
	if err := mutex.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer func() {
		if err := mutex.Unlock(context.Background()); err != nil {
			logger.L.Error("释放退款锁失败", zap.String("lock_key", lockKey), zap.Error(err))
		}
	}()

	// 持锁后重读
	order, err = s.orderRepo.GetByOrderNo(ctx, req.OrderNo)
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderStatusRefunded {
		return s.alreadyRefunded(order), nil
	}
	if order.Status != model.OrderStatusPaid {
		return nil, fmt.Errorf("%w: 当前状态 %s", ErrOrderNotRefundable, order.Status)
	}

	refundNo := idgen.GenerateRefundNo()
	remark := fmt.Sprintf("退款-%s", refundNo)
	if req.Reason != "" {
		remark = fmt.Sprintf("退款-%s-%s", refundNo, req.Reason)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, req.OrderNo, model.OrderStatusPaid, model.OrderStatusRefunded); err != nil {
			return err
		}

		if err := s.ledger.Refund(ctx, tx, order, remark); err != nil {
			return err
		}

		return s.outbox.WriteOrderRefunded(ctx, tx, order, refundNo)
	})

	if err != nil {
		if errors.Is(err, repository.ErrOrderStateConflict) {
			// 并发退款被条件更新挡住，按幂等处理
			fresh, ferr := s.orderRepo.GetByOrderNo(ctx, req.OrderNo)
			if ferr == nil && fresh.Status == model.OrderStatusRefunded {
				return s.alreadyRefunded(fresh), nil
			}
			return nil, fmt.Errorf("%w: 订单状态已变化", ErrOrderNotRefundable)
		}
		return nil, err
	}

	logger.L.Info("退款成功",
		zap.String("refund_no", refundNo),
		zap.String("order_no", req.OrderNo),
		zap.Int64("user_id", order.UserID),
		zap.Int64("amount", order.Amount))

	return &RefundResponse{
		RefundNo: refundNo,
		OrderNo:  req.OrderNo,
		Amount:   order.Amount,
		Status:   model.OrderStatusRefunded,
		Message:  "退款成功",
	}, nil
}

func (s *RefundService) alreadyRefunded(order *model.PaymentOrder) *RefundResponse {
	return &RefundResponse{
		OrderNo: order.OrderNo,
		Amount:  order.Amount,
		Status:  model.OrderStatusRefunded,
		Message: "已退款，请勿重复操作",
	}
}
