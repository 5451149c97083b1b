package model

import (
	"time"
)

// UserBalance 用户余额表
//
// 每个用户一行，所有字段以最小货币单位（分）存储，是余额的唯一权威来源。
// 任何读改写都必须走数据库侧的原子自增/条件更新，不允许在内存里算完再写回。
type UserBalance struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance        int64     `gorm:"not null;default:0" json:"balance"`         // 可用余额
	Frozen         int64     `gorm:"not null;default:0" json:"frozen"`          // 冻结金额（预留）
	TotalRecharged int64     `gorm:"not null;default:0" json:"total_recharged"` // 累计充值
	TotalConsumed  int64     `gorm:"not null;default:0" json:"total_consumed"`  // 累计消费
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserBalance) TableName() string {
	return "user_balance"
}
