package service

import (
	"context"
	"errors"
	"testing"

	"paycore/internal/model"
	"paycore/internal/repository"
)

func TestLedgerCreditWritesChainedTransaction(t *testing.T) {
	db := setupServiceTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	if err := ledger.Credit(ctx, db, 1, 1000, "PAY-L1", "充值"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.Credit(ctx, db, 1, 500, "PAY-L2", "充值"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	balance := loadBalance(t, db, 1)
	if balance.Balance != 1500 || balance.TotalRecharged != 1500 {
		t.Errorf("balance = %+v", balance)
	}

	var transactions []model.BalanceTransaction
	if err := db.Where("user_id = ?", 1).Order("id ASC").Find(&transactions).Error; err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(transactions))
	}

	// before/after 首尾相接
	if transactions[0].BalanceBefore != 0 || transactions[0].BalanceAfter != 1000 {
		t.Errorf("first: %+v", transactions[0])
	}
	if transactions[1].BalanceBefore != 1000 || transactions[1].BalanceAfter != 1500 {
		t.Errorf("second: %+v", transactions[1])
	}
	for _, trans := range transactions {
		if trans.BalanceAfter != trans.BalanceBefore+trans.Amount {
			t.Errorf("after != before+amount: %+v", trans)
		}
	}
}

func TestLedgerDebitInsufficientBalance(t *testing.T) {
	db := setupServiceTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	createTestBalance(t, db, 2, 300)

	err := ledger.Debit(ctx, db, 2, 500, "PAY-L3", "支付")
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	// 账户无任何变化、无流水
	if balance := loadBalance(t, db, 2); balance.Balance != 300 || balance.TotalConsumed != 0 {
		t.Errorf("balance mutated: %+v", balance)
	}
	if cnt := countRows(t, db, &model.BalanceTransaction{}, "user_id = ?", 2); cnt != 0 {
		t.Errorf("transactions = %d, want 0", cnt)
	}
}

func TestLedgerDebitThenSumMatchesBalance(t *testing.T) {
	db := setupServiceTestDB(t)
	ledger := NewLedgerService(db)
	transactionRepo := repository.NewTransactionRepository(db)
	ctx := context.Background()

	if err := ledger.Credit(ctx, db, 3, 2000, "PAY-L4", "充值"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.Debit(ctx, db, 3, 700, "PAY-L5", "支付"); err != nil {
		t.Fatalf("debit: %v", err)
	}

	balance := loadBalance(t, db, 3)
	if balance.Balance != 1300 || balance.TotalConsumed != 700 {
		t.Errorf("balance = %+v", balance)
	}

	// 守恒：sum(amount) == balance
	sum, err := transactionRepo.SumByUserID(ctx, 3)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != balance.Balance {
		t.Errorf("sum(amount) = %d, balance = %d", sum, balance.Balance)
	}
}

func TestLedgerRefundCreatesAccountIfMissing(t *testing.T) {
	db := setupServiceTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	order := &model.PaymentOrder{
		OrderNo: "PAY-L6",
		UserID:  4,
		Amount:  900,
	}

	if err := ledger.Refund(ctx, db, order, "退款"); err != nil {
		t.Fatalf("refund: %v", err)
	}

	balance := loadBalance(t, db, 4)
	if balance.Balance != 900 {
		t.Errorf("balance = %d, want 900", balance.Balance)
	}
	// 退款不计入累计充值
	if balance.TotalRecharged != 0 {
		t.Errorf("total_recharged = %d, want 0", balance.TotalRecharged)
	}

	var trans model.BalanceTransaction
	if err := db.Where("order_no = ?", "PAY-L6").First(&trans).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if trans.Type != model.TransactionTypeRefund || trans.Amount != 900 {
		t.Errorf("transaction = %+v", trans)
	}
}
