package repository

import (
	"context"
	"errors"
	"time"

	"paycore/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrConsultationNotOwned = errors.New("咨询单不属于付款用户")
)

type EntitlementRepository struct {
	db *gorm.DB
}

func NewEntitlementRepository(db *gorm.DB) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

// ExtendVip 延长 VIP 有效期
//
// 基准取 max(now, 当前到期时间)：未过期接着续，已过期从现在起算。
// 重复执行同一笔订单的履约时结果会多延一段，靠外层的单次触发保证不会发生；
// 这里的 upsert 只保证行存在性上的幂等。
func (r *EntitlementRepository) ExtendVip(ctx context.Context, tx *gorm.DB, userID int64, duration time.Duration) error {
	if tx == nil {
		tx = r.db
	}

	var vip model.VipMembership
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&vip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.insertVipAtLeast(ctx, tx, userID, time.Now().Add(duration))
	}
	if err != nil {
		return err
	}

	base := time.Now()
	if vip.ExpiresAt.After(base) {
		base = vip.ExpiresAt
	}

	return tx.WithContext(ctx).
		Model(&model.VipMembership{}).
		Where("user_id = ?", userID).
		Update("expires_at", base.Add(duration)).Error
}

// insertVipAtLeast 按"不早于给定到期时间"插入或抬升 VIP 行
//
// 读到不存在后插入时可能和另一条履约撞上 user_id 唯一索引，
// 冲突分支只能抬升到期时间，不允许把更晚的到期时间改短。
func (r *EntitlementRepository) insertVipAtLeast(ctx context.Context, tx *gorm.DB, userID int64, expiresAt time.Time) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"expires_at": gorm.Expr("CASE WHEN expires_at > ? THEN expires_at ELSE ? END", expiresAt, expiresAt),
			}),
		}).
		Create(&model.VipMembership{UserID: userID, ExpiresAt: expiresAt}).Error
}

func (r *EntitlementRepository) GetVip(ctx context.Context, userID int64) (*model.VipMembership, error) {
	var vip model.VipMembership
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&vip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vip, nil
}

// AddCredits 按 (用户, 功能) 维度累加剩余次数
func (r *EntitlementRepository) AddCredits(ctx context.Context, tx *gorm.DB, userID int64, feature string, quantity int64) error {
	if tx == nil {
		tx = r.db
	}

	pack := model.CreditPack{
		UserID:    userID,
		Feature:   feature,
		Remaining: quantity,
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "feature"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"remaining": gorm.Expr("remaining + ?", quantity),
			}),
		}).
		Create(&pack).Error
}

func (r *EntitlementRepository) GetCredits(ctx context.Context, userID int64, feature string) (int64, error) {
	var pack model.CreditPack
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND feature = ?", userID, feature).
		First(&pack).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return pack.Remaining, nil
}

// ConfirmConsultation 咨询单 PENDING -> CONFIRMED
//
// 条件更新带上 user_id：归属校验和状态校验一次完成。
// 0 行命中时再查一次区分"已确认（幂等放行）"和"归属不符（拒绝）"。
func (r *EntitlementRepository) ConfirmConsultation(ctx context.Context, tx *gorm.DB, consultationID, userID int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Consultation{}).
		Where("id = ? AND user_id = ? AND status = ?", consultationID, userID, model.ConsultationStatusPending).
		Update("status", model.ConsultationStatusConfirmed)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var consultation model.Consultation
		err := tx.WithContext(ctx).Where("id = ?", consultationID).First(&consultation).Error
		if err != nil {
			return err
		}
		if consultation.UserID != userID {
			return ErrConsultationNotOwned
		}
		// 已确认，幂等放行
	}
	return nil
}

// CreateReviewTask 按订单号 insert-if-absent 审稿任务
func (r *EntitlementRepository) CreateReviewTask(ctx context.Context, tx *gorm.DB, task *model.ReviewTask) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_no"}},
			DoNothing: true,
		}).
		Create(task).Error
}
