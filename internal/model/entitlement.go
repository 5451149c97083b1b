package model

import (
	"time"
)

// VipMembership VIP 会员表，每用户一行
type VipMembership struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (VipMembership) TableName() string {
	return "vip_membership"
}

// CreditPack 按功能维度的剩余次数包
type CreditPack struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex:idx_user_feature;not null" json:"user_id"`
	Feature   string    `gorm:"type:varchar(32);uniqueIndex:idx_user_feature;not null" json:"feature"`
	Remaining int64     `gorm:"not null;default:0" json:"remaining"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CreditPack) TableName() string {
	return "credit_pack"
}

const (
	ConsultationStatusPending   = "PENDING"
	ConsultationStatusConfirmed = "CONFIRMED"
)

// Consultation 咨询单，支付成功后由 PENDING 翻转为 CONFIRMED
type Consultation struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Status    string    `gorm:"type:varchar(20);not null;default:PENDING" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Consultation) TableName() string {
	return "consultation"
}

const (
	ReviewTaskStatusPending = "PENDING"
)

// ReviewTask 审稿任务，按订单号唯一，重复履约时 insert-if-absent
type ReviewTask struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	RelatedID int64     `gorm:"index" json:"related_id"`
	Status    string    `gorm:"type:varchar(20);not null;default:PENDING" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ReviewTask) TableName() string {
	return "review_task"
}
