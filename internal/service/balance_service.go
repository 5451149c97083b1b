package service

import (
	"context"
	"errors"

	"paycore/internal/model"
	"paycore/internal/repository"

	"gorm.io/gorm"
)

// BalanceService 余额与流水查询
//
// 只读服务：所有余额变更都走 LedgerService 并且必须在事务里，
// 这里不提供任何直接改余额的入口。
type BalanceService struct {
	balanceRepo     *repository.BalanceRepository
	transactionRepo *repository.TransactionRepository
}

func NewBalanceService(db *gorm.DB) *BalanceService {
	return &BalanceService{
		balanceRepo:     repository.NewBalanceRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// GetBalance 查余额，账户不存在视为 0
func (s *BalanceService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	balance, err := s.balanceRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance.Balance, nil
}

// GetAccount 查账户全貌，不存在则创建零余额账户
func (s *BalanceService) GetAccount(ctx context.Context, userID int64) (*model.UserBalance, error) {
	return s.balanceRepo.GetOrCreate(ctx, nil, userID)
}

// ListTransactions 按时间倒序分页查流水
func (s *BalanceService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.BalanceTransaction, int64, error) {
	return s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
}
