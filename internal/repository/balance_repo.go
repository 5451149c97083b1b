package repository

import (
	"context"
	"errors"

	"paycore/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBalanceNotFound     = errors.New("余额账户不存在")
	ErrInsufficientBalance = errors.New("余额不足")
)

type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

func (r *BalanceRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.UserBalance, error) {
	if tx == nil {
		tx = r.db
	}
	var balance model.UserBalance
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// GetOrCreate 读取或创建余额行
//
// 并发首充时两个实例可能同时 INSERT，靠 user_id 唯一约束 + DoNothing
// 兜底，冲突后重新读取即可。
func (r *BalanceRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, userID int64) (*model.UserBalance, error) {
	if tx == nil {
		tx = r.db
	}

	balance, err := r.GetByUserID(ctx, tx, userID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, ErrBalanceNotFound) {
		return nil, err
	}

	newBalance := &model.UserBalance{UserID: userID}
	err = tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newBalance).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, tx, userID)
}

// Credit 入账：数据库侧原子自增，绝不在内存里读改写
func (r *BalanceRepository) Credit(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.UserBalance{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance + ?", amount),
			"total_recharged": gorm.Expr("total_recharged + ?", amount),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBalanceNotFound
	}
	return nil
}

// CreditRefund 退款入账，不计入累计充值
func (r *BalanceRepository) CreditRefund(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.UserBalance{}).
		Where("user_id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBalanceNotFound
	}
	return nil
}

// Debit 出账
//
// 【关键点】balance >= amount 直接写进 UPDATE 的 WHERE 条件，
// 余额不足就是原子性的 0 行命中 —— 不存在"扣了一半"的中间态，
// 也不需要对账户行加独占行锁。
func (r *BalanceRepository) Debit(ctx context.Context, tx *gorm.DB, userID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.UserBalance{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance":        gorm.Expr("balance - ?", amount),
			"total_consumed": gorm.Expr("total_consumed + ?", amount),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}
