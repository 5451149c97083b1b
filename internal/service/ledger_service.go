package service

import (
	"context"
	"fmt"

	"paycore/internal/model"
	"paycore/internal/repository"
	"paycore/pkg/idgen"

	"gorm.io/gorm"
)

// LedgerService 余额账本
//
// 所有方法都在调用方的事务里执行（tx 必传），保证流水和订单变更同生共死。
// 余额增减一律走数据库侧原子更新；balance_after 取自更新后重读的行，
// 高并发下同一账户的流水 before/after 仍然首尾相接。
type LedgerService struct {
	balanceRepo     *repository.BalanceRepository
	transactionRepo *repository.TransactionRepository
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{
		balanceRepo:     repository.NewBalanceRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// Credit 充值入账（仅充值类订单）
func (s *LedgerService) Credit(ctx context.Context, tx *gorm.DB, userID, amount int64, orderNo, remark string) error {
	if _, err := s.balanceRepo.GetOrCreate(ctx, tx, userID); err != nil {
		return fmt.Errorf("读取余额账户失败: %w", err)
	}

	if err := s.balanceRepo.Credit(ctx, tx, userID, amount); err != nil {
		return fmt.Errorf("入账失败: %w", err)
	}

	// 重读刚写入的行，balance_after 用数据库结果而不是内存快照
	balance, err := s.balanceRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("回读余额失败: %w", err)
	}

	trans := &model.BalanceTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        userID,
		OrderNo:       orderNo,
		Amount:        amount,
		Type:          model.TransactionTypeRecharge,
		BalanceBefore: balance.Balance - amount,
		BalanceAfter:  balance.Balance,
		Remark:        remark,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}
	return nil
}

// Debit 余额支付出账
//
// 余额不足时条件更新 0 行命中，返回 repository.ErrInsufficientBalance，
// 账户没有任何变化 —— 不靠异常做控制流，调用方 errors.Is 判断即可。
func (s *LedgerService) Debit(ctx context.Context, tx *gorm.DB, userID, amount int64, orderNo, remark string) error {
	if _, err := s.balanceRepo.GetOrCreate(ctx, tx, userID); err != nil {
		return fmt.Errorf("读取余额账户失败: %w", err)
	}

	if err := s.balanceRepo.Debit(ctx, tx, userID, amount); err != nil {
		// ErrInsufficientBalance 原样抛给调用方
		return err
	}

	balance, err := s.balanceRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("回读余额失败: %w", err)
	}

	trans := &model.BalanceTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        userID,
		OrderNo:       orderNo,
		Amount:        -amount,
		Type:          model.TransactionTypePay,
		BalanceBefore: balance.Balance + amount,
		BalanceAfter:  balance.Balance,
		Remark:        remark,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}
	return nil
}

// Refund 退款入账
//
// 只在 PAID->REFUNDED 的一次性迁移里调用，单次触发由订单状态机保证。
func (s *LedgerService) Refund(ctx context.Context, tx *gorm.DB, order *model.PaymentOrder, remark string) error {
	if _, err := s.balanceRepo.GetOrCreate(ctx, tx, order.UserID); err != nil {
		return fmt.Errorf("读取余额账户失败: %w", err)
	}

	if err := s.balanceRepo.CreditRefund(ctx, tx, order.UserID, order.Amount); err != nil {
		return fmt.Errorf("退款入账失败: %w", err)
	}

	balance, err := s.balanceRepo.GetByUserID(ctx, tx, order.UserID)
	if err != nil {
		return fmt.Errorf("回读余额失败: %w", err)
	}

	trans := &model.BalanceTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        order.UserID,
		OrderNo:       order.OrderNo,
		Amount:        order.Amount,
		Type:          model.TransactionTypeRefund,
		BalanceBefore: balance.Balance - order.Amount,
		BalanceAfter:  balance.Balance,
		Remark:        remark,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}
	return nil
}
