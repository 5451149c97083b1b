package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"paycore/internal/infrastructure/lock"
	"paycore/internal/model"
)

func TestRefundPaidOrder(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewRefundService(db, lock.NewMemoryStore(), testConfig())

	now := time.Now()
	createTestOrder(t, db, &model.PaymentOrder{
		OrderNo:   "PAY-R1",
		RequestID: "req-r1",
		UserID:    1,
		OrderType: model.OrderTypeVip,
		Amount:    2500,
		Status:    model.OrderStatusPaid,
		TradeNo:   "GW-R1",
		PaidAt:    &now,
	})

	resp, err := svc.Refund(context.Background(), &RefundRequest{OrderNo: "PAY-R1", Reason: "用户申请"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if resp.Status != model.OrderStatusRefunded || resp.RefundNo == "" {
		t.Errorf("resp = %+v", resp)
	}

	if order := loadOrder(t, db, "PAY-R1"); order.Status != model.OrderStatusRefunded {
		t.Errorf("order status = %q", order.Status)
	}

	balance := loadBalance(t, db, 1)
	if balance.Balance != 2500 {
		t.Errorf("balance = %d, want 2500", balance.Balance)
	}

	if cnt := countRows(t, db, &model.BalanceTransaction{}, "order_no = ? AND type = ?", "PAY-R1", model.TransactionTypeRefund); cnt != 1 {
		t.Errorf("refund transactions = %d, want 1", cnt)
	}
	if cnt := countRows(t, db, &model.OutboxMessage{}, "message_key = ? AND topic = ?", "PAY-R1", "pay.order.refunded"); cnt != 1 {
		t.Errorf("outbox rows = %d, want 1", cnt)
	}
}

func TestRefundReplayReturnsAlreadyRefunded(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewRefundService(db, lock.NewMemoryStore(), testConfig())

	now := time.Now()
	createTestOrder(t, db, &model.PaymentOrder{
		OrderNo:   "PAY-R2",
		RequestID: "req-r2",
		UserID:    2,
		OrderType: model.OrderTypeVip,
		Amount:    1000,
		Status:    model.OrderStatusPaid,
		PaidAt:    &now,
	})

	if _, err := svc.Refund(context.Background(), &RefundRequest{OrderNo: "PAY-R2"}); err != nil {
		t.Fatalf("first refund: %v", err)
	}

	resp, err := svc.Refund(context.Background(), &RefundRequest{OrderNo: "PAY-R2"})
	if err != nil {
		t.Fatalf("replay refund: %v", err)
	}
	if resp.Status != model.OrderStatusRefunded {
		t.Errorf("replay status = %q", resp.Status)
	}

	// 单次触发：退款入账只有一笔
	if balance := loadBalance(t, db, 2); balance.Balance != 1000 {
		t.Errorf("balance = %d, want 1000", balance.Balance)
	}
	if cnt := countRows(t, db, &model.BalanceTransaction{}, "order_no = ?", "PAY-R2"); cnt != 1 {
		t.Errorf("transactions = %d, want 1", cnt)
	}
}

func TestRefundPendingOrderRejected(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewRefundService(db, lock.NewMemoryStore(), testConfig())

	createTestOrder(t, db, &model.PaymentOrder{
		OrderNo:   "PAY-R3",
		RequestID: "req-r3",
		UserID:    3,
		OrderType: model.OrderTypeVip,
		Amount:    1000,
	})

	_, err := svc.Refund(context.Background(), &RefundRequest{OrderNo: "PAY-R3"})
	if !errors.Is(err, ErrOrderNotRefundable) {
		t.Fatalf("err = %v, want ErrOrderNotRefundable", err)
	}
}
