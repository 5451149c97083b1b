package service

import (
	"context"
	"fmt"
	"time"

	"paycore/internal/config"
	"paycore/internal/model"
	"paycore/internal/repository"

	"gorm.io/gorm"
)

// FulfillmentService 履约分发
//
// 只在订单 PENDING->PAID 迁移的同一个事务里执行一次。
// 外层的条件更新已经保证单次触发，这里每个子步骤再各自做到幂等，
// 作为锁过期等极端场景下的冗余防线。
// 任何子步骤失败都会让整个事务回滚：不允许存在已支付但未履约的订单。
type FulfillmentService struct {
	entitlementRepo *repository.EntitlementRepository
	ledger          *LedgerService
	cfg             *config.Config
}

func NewFulfillmentService(db *gorm.DB, cfg *config.Config) *FulfillmentService {
	return &FulfillmentService{
		entitlementRepo: repository.NewEntitlementRepository(db),
		ledger:          NewLedgerService(db),
		cfg:             cfg,
	}
}

// Fulfill 按订单类型发放权益
func (s *FulfillmentService) Fulfill(ctx context.Context, tx *gorm.DB, order *model.PaymentOrder) error {
	switch order.OrderType {
	case model.OrderTypeRecharge:
		remark := fmt.Sprintf("充值-%s", order.OrderNo)
		return s.ledger.Credit(ctx, tx, order.UserID, order.Amount, order.OrderNo, remark)

	case model.OrderTypeVip:
		duration := time.Duration(s.cfg.Business.VipDurationDays) * 24 * time.Hour
		return s.entitlementRepo.ExtendVip(ctx, tx, order.UserID, duration)

	case model.OrderTypeCreditPack:
		quantity := int64(s.cfg.Business.CreditPackQuantity)
		return s.entitlementRepo.AddCredits(ctx, tx, order.UserID, order.RelatedType, quantity)

	case model.OrderTypeConsultation:
		return s.entitlementRepo.ConfirmConsultation(ctx, tx, order.RelatedID, order.UserID)

	case model.OrderTypeReviewTask:
		task := &model.ReviewTask{
			OrderNo:   order.OrderNo,
			UserID:    order.UserID,
			RelatedID: order.RelatedID,
			Status:    model.ReviewTaskStatusPending,
		}
		return s.entitlementRepo.CreateReviewTask(ctx, tx, task)

	default:
		return fmt.Errorf("未知订单类型: %s", order.OrderType)
	}
}
