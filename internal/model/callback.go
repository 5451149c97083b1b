package model

import (
	"time"
)

// CallbackEvent 渠道回调审计表
//
// 每一次入站通知都落一行，无论验签成败 —— 排障时要能看到全部尝试。
// DedupKey 只在"验签通过且能唯一定位交易"时写入 provider:trade_no，
// 其余情况留空（NULL），避免把伪造/残缺通知挡在唯一索引上。
type CallbackEvent struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider  string    `gorm:"type:varchar(20);index;not null" json:"provider"`
	OrderNo   string    `gorm:"type:varchar(64);index" json:"order_no"`
	TradeNo   string    `gorm:"type:varchar(64);index" json:"trade_no"`
	DedupKey  *string   `gorm:"type:varchar(128);uniqueIndex" json:"dedup_key,omitempty"`
	Verified  bool      `gorm:"not null;default:false" json:"verified"`
	Success   bool      `gorm:"not null;default:false" json:"success"`
	Reason    string    `gorm:"type:varchar(256)" json:"reason"`
	Payload   string    `gorm:"type:text" json:"payload"` // 原始报文，仅做取证
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CallbackEvent) TableName() string {
	return "callback_event"
}

// 回调验签失败的常见原因，对账诊断按前缀匹配
const (
	CallbackReasonSignatureFailed = "signature failed"
	CallbackReasonDecryptFailed   = "decrypt failed"
	CallbackReasonAmountMismatch  = "amount mismatch"
	CallbackReasonOrderNotFound   = "order not found"
	CallbackReasonStateConflict   = "order state conflict"
	CallbackReasonAlreadyPaid     = "already paid"
)
