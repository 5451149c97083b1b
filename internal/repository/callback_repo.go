package repository

import (
	"context"
	"fmt"

	"paycore/internal/model"
	"paycore/pkg/idgen"

	"gorm.io/gorm"
)

type CallbackRepository struct {
	db *gorm.DB
}

func NewCallbackRepository(db *gorm.DB) *CallbackRepository {
	return &CallbackRepository{db: db}
}

// Create 落一条回调审计记录
//
// 验签通过且交易号明确时写入去重键 provider:trade_no:序号，
// 其余情况 DedupKey 留空，保证伪造报文也能留痕。
func (r *CallbackRepository) Create(ctx context.Context, tx *gorm.DB, event *model.CallbackEvent) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(event).Error
}

// CreateVerified 写入验签通过的回调记录，自动生成去重键
//
// 同一笔交易的重放会落多行（no-op 重放也要留痕）。
// 后缀取雪花 ID：并发写同一笔交易也不会在唯一索引上相撞，
// 审计记录绝不因为键冲突而丢行。
func (r *CallbackRepository) CreateVerified(ctx context.Context, tx *gorm.DB, event *model.CallbackEvent) error {
	if tx == nil {
		tx = r.db
	}
	if event.TradeNo != "" {
		key := fmt.Sprintf("%s:%s:%d", event.Provider, event.TradeNo, idgen.NextID())
		event.DedupKey = &key
	}
	return tx.WithContext(ctx).Create(event).Error
}

func (r *CallbackRepository) ListByOrderNo(ctx context.Context, orderNo string) ([]*model.CallbackEvent, error) {
	var events []*model.CallbackEvent
	err := r.db.WithContext(ctx).
		Where("order_no = ?", orderNo).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

func (r *CallbackRepository) ListByProviderAndTradeNo(ctx context.Context, provider, tradeNo string) ([]*model.CallbackEvent, error) {
	var events []*model.CallbackEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND trade_no = ?", provider, tradeNo).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}
