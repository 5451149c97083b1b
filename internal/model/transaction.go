package model

import (
	"time"
)

const (
	TransactionTypeRecharge = "RECHARGE" // 充值入账
	TransactionTypePay      = "PAY"      // 余额支付（扣款）
	TransactionTypeRefund   = "REFUND"   // 退款入账
)

// BalanceTransaction 余额流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 每笔流水必须关联订单号 —— 便于对账
// 3. 记录交易前后余额 —— 任意时刻 sum(amount) == user_balance.balance
type BalanceTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	OrderNo       string    `gorm:"type:varchar(64);index;not null" json:"order_no"`
	Amount        int64     `gorm:"not null" json:"amount"` // 正数入账，负数出账
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"` // 恒等于 before + amount
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (BalanceTransaction) TableName() string {
	return "balance_transaction"
}
