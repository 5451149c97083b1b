package model

import (
	"time"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusRefunded  = "REFUNDED"
	OrderStatusFailed    = "FAILED"
)

// ValidStatusTransitions 订单状态机
//
// 合法迁移只有三条主路径：待支付->已支付、待支付->已取消、已支付->已退款。
// PENDING->FAILED 留给超时关单和管理员关单。
var ValidStatusTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusRefunded},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// 订单类型：决定支付成功后发放什么权益
const (
	OrderTypeRecharge     = "RECHARGE"     // 余额充值
	OrderTypeVip          = "VIP"          // VIP 会员
	OrderTypeCreditPack   = "CREDIT_PACK"  // 次数加油包
	OrderTypeConsultation = "CONSULTATION" // 咨询解锁
	OrderTypeReviewTask   = "REVIEW_TASK"  // 审稿任务
)

// 支付方式
const (
	PayMethodAlipay  = "ALIPAY"
	PayMethodWechat  = "WECHAT"
	PayMethodIkunpay = "IKUNPAY"
	PayMethodGateway = "GATEWAY"
	PayMethodBalance = "BALANCE"
)

// PaymentOrder 支付订单表
//
// Amount 以最小货币单位（分）存储，是对账时的权威金额。
// TradeNo 在 PENDING->PAID 迁移时一次性写入，之后不再变更。
type PaymentOrder struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	RequestID     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"`
	UserID        int64      `gorm:"index;not null" json:"user_id"`
	OrderType     string     `gorm:"type:varchar(32);not null" json:"order_type"`
	Amount        int64      `gorm:"not null" json:"amount"` // 单位：分
	Status        string     `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentMethod string     `gorm:"type:varchar(20);not null" json:"payment_method"`
	TradeNo       string     `gorm:"type:varchar(64);index" json:"trade_no"` // 渠道交易号
	RelatedID     int64      `gorm:"index" json:"related_id"`                // 订单解锁的目标
	RelatedType   string     `gorm:"type:varchar(32)" json:"related_type"`
	ExpiresAt     time.Time  `gorm:"not null" json:"expires_at"`
	PaidAt        *time.Time `json:"paid_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentOrder) TableName() string {
	return "payment_order"
}
