package repository

import (
	"context"
	"errors"
	"time"

	"paycore/internal/model"

	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrOrderStateConflict = errors.New("订单状态冲突")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.PaymentOrder) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.PaymentOrder, error) {
	var order model.PaymentOrder
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) GetByRequestID(ctx context.Context, requestID string) (*model.PaymentOrder, error) {
	var order model.PaymentOrder
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// MarkPaid 待支付 -> 已支付，一次性写入渠道交易号
//
// 【关键点】条件更新 + 影响行数校验是防重的最后一道闸：
// 即使锁过期导致两个实例同时走到这里，也只有一个 UPDATE 能命中
// status='PENDING' 的行，另一个拿到 0 行直接报状态冲突回滚。
func (r *OrderRepository) MarkPaid(ctx context.Context, tx *gorm.DB, orderNo, tradeNo string) error {
	if tx == nil {
		tx = r.db
	}

	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.PaymentOrder{}).
		Where("order_no = ? AND status = ?", orderNo, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":   model.OrderStatusPaid,
			"trade_no": tradeNo,
			"paid_at":  &now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStateConflict
	}
	return nil
}

// UpdateStatus 按状态机迁移订单状态，0 行命中视为冲突而不是静默成功
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderNo string, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrOrderStateConflict
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.PaymentOrder{}).
		Where("order_no = ? AND status = ?", orderNo, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStateConflict
	}
	return nil
}

// SetPaymentMethod 记录本次发起支付选择的渠道，仅待支付订单可改
func (r *OrderRepository) SetPaymentMethod(ctx context.Context, tx *gorm.DB, orderNo, method string) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.PaymentOrder{}).
		Where("order_no = ? AND status = ?", orderNo, model.OrderStatusPending).
		Update("payment_method", method)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderStateConflict
	}
	return nil
}

func (r *OrderRepository) GetExpiredOrders(ctx context.Context, limit int) ([]*model.PaymentOrder, error) {
	var orders []*model.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", model.OrderStatusPending, time.Now()).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.PaymentOrder, int64, error) {
	var orders []*model.PaymentOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PaymentOrder{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}
