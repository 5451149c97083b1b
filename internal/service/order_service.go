package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paycore/internal/config"
	"paycore/internal/model"
	"paycore/internal/repository"
	"paycore/pkg/idgen"
	"paycore/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidOrderType 未知的订单类型
var ErrInvalidOrderType = errors.New("无效的订单类型")

type OrderService struct {
	db        *gorm.DB
	cfg       *config.Config
	orderRepo *repository.OrderRepository
}

func NewOrderService(db *gorm.DB, cfg *config.Config) *OrderService {
	return &OrderService{
		db:        db,
		cfg:       cfg,
		orderRepo: repository.NewOrderRepository(db),
	}
}

type CreateOrderRequest struct {
	RequestID   string `json:"request_id" binding:"required"`
	UserID      int64  `json:"user_id" binding:"required"`
	OrderType   string `json:"order_type" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	RelatedID   int64  `json:"related_id"`
	RelatedType string `json:"related_type"`
}

// CreateOrder 创建待支付订单，request_id 幂等
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.PaymentOrder, error) {
	if !validOrderType(req.OrderType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrderType, req.OrderType)
	}

	existing, err := s.orderRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	expireMinutes := s.cfg.Business.OrderExpireMinutes
	if expireMinutes <= 0 {
		expireMinutes = 120
	}

	order := &model.PaymentOrder{
		OrderNo:     idgen.GenerateOrderNo(),
		RequestID:   req.RequestID,
		UserID:      req.UserID,
		OrderType:   req.OrderType,
		Amount:      req.Amount,
		Status:      model.OrderStatusPending,
		RelatedID:   req.RelatedID,
		RelatedType: req.RelatedType,
		ExpiresAt:   time.Now().Add(time.Duration(expireMinutes) * time.Minute),
	}

	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		// 并发撞 request_id 唯一索引时回退到已有订单
		if existing, gerr := s.orderRepo.GetByRequestID(ctx, req.RequestID); gerr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}

	logger.L.Info("创建订单",
		zap.String("order_no", order.OrderNo),
		zap.Int64("user_id", order.UserID),
		zap.String("order_type", order.OrderType),
		zap.Int64("amount", order.Amount))

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderNo string) (*model.PaymentOrder, error) {
	return s.orderRepo.GetByOrderNo(ctx, orderNo)
}

func (s *OrderService) GetOrderByRequestID(ctx context.Context, requestID string) (*model.PaymentOrder, error) {
	return s.orderRepo.GetByRequestID(ctx, requestID)
}

// CancelOrder 用户主动取消，仅待支付订单可取消
func (s *OrderService) CancelOrder(ctx context.Context, orderNo string, userID int64) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return repository.ErrOrderNotFound
	}

	return s.orderRepo.UpdateStatus(ctx, nil, orderNo, model.OrderStatusPending, model.OrderStatusCancelled)
}

// CloseExpiredOrders 关闭超时未支付的订单，由定时任务驱动
//
// 逐单条件更新，和迟到回调竞争时以数据库为准：
// 回调先到订单已支付则这里 0 行命中跳过，这里先到则回调吃到状态冲突。
func (s *OrderService) CloseExpiredOrders(ctx context.Context, limit int) (int, error) {
	orders, err := s.orderRepo.GetExpiredOrders(ctx, limit)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		err := s.orderRepo.UpdateStatus(ctx, nil, order.OrderNo, model.OrderStatusPending, model.OrderStatusFailed)
		if err != nil {
			if errors.Is(err, repository.ErrOrderStateConflict) {
				continue
			}
			logger.L.Error("关闭过期订单失败",
				zap.String("order_no", order.OrderNo),
				zap.Error(err))
			continue
		}
		closed++
	}

	if closed > 0 {
		logger.L.Info("关闭过期订单", zap.Int("count", closed))
	}
	return closed, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID int64, page, pageSize int) ([]*model.PaymentOrder, int64, error) {
	return s.orderRepo.ListByUserID(ctx, userID, page, pageSize)
}

func validOrderType(orderType string) bool {
	switch orderType {
	case model.OrderTypeRecharge, model.OrderTypeVip, model.OrderTypeCreditPack,
		model.OrderTypeConsultation, model.OrderTypeReviewTask:
		return true
	}
	return false
}
