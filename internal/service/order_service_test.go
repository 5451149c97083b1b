package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"paycore/internal/model"
	"paycore/internal/repository"
	"paycore/pkg/idgen"
)

func TestCreateOrderIdempotentByRequestID(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewOrderService(db, testConfig())
	idgen.Init(1)

	req := &CreateOrderRequest{
		RequestID: "req-o1",
		UserID:    1,
		OrderType: model.OrderTypeVip,
		Amount:    2500,
	}

	first, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Status != model.OrderStatusPending {
		t.Errorf("status = %q", first.Status)
	}
	if first.ExpiresAt.Before(time.Now().Add(110 * time.Minute)) {
		t.Errorf("expires too early: %v", first.ExpiresAt)
	}

	second, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("replay create: %v", err)
	}
	if second.OrderNo != first.OrderNo {
		t.Errorf("replay returned different order: %q vs %q", second.OrderNo, first.OrderNo)
	}
	if cnt := countRows(t, db, &model.PaymentOrder{}, "request_id = ?", "req-o1"); cnt != 1 {
		t.Errorf("orders = %d, want 1", cnt)
	}
}

func TestCreateOrderRejectsUnknownType(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewOrderService(db, testConfig())

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		RequestID: "req-o2",
		UserID:    1,
		OrderType: "LOTTERY",
		Amount:    100,
	})
	if !errors.Is(err, ErrInvalidOrderType) {
		t.Fatalf("err = %v, want ErrInvalidOrderType", err)
	}
}

func TestCancelOrderOnlyPending(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewOrderService(db, testConfig())

	createTestOrder(t, db, &model.PaymentOrder{
		OrderNo:   "PAY-O1",
		RequestID: "req-o3",
		UserID:    1,
		OrderType: model.OrderTypeVip,
		Amount:    100,
	})

	if err := svc.CancelOrder(context.Background(), "PAY-O1", 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if order := loadOrder(t, db, "PAY-O1"); order.Status != model.OrderStatusCancelled {
		t.Errorf("status = %q", order.Status)
	}

	// 已取消的订单再取消吃到状态冲突
	err := svc.CancelOrder(context.Background(), "PAY-O1", 1)
	if !errors.Is(err, repository.ErrOrderStateConflict) {
		t.Fatalf("err = %v, want ErrOrderStateConflict", err)
	}
}

func TestCancelOrderForeignUserRejected(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewOrderService(db, testConfig())

	createTestOrder(t, db, &model.PaymentOrder{
		OrderNo:   "PAY-O2",
		RequestID: "req-o4",
		UserID:    1,
		OrderType: model.OrderTypeVip,
		Amount:    100,
	})

	err := svc.CancelOrder(context.Background(), "PAY-O2", 2)
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestCloseExpiredOrders(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := NewOrderService(db, testConfig())

	createTestOrder(t, db, &model.PaymentOrder{
		OrderNo:   "PAY-O3",
		RequestID: "req-o5",
		UserID:    1,
		OrderType: model.OrderTypeVip,
		Amount:    100,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	createTestOrder(t, db, &model.PaymentOrder{
		OrderNo:   "PAY-O4",
		RequestID: "req-o6",
		UserID:    1,
		OrderType: model.OrderTypeVip,
		Amount:    100,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	// 已支付的过期订单不能被关
	now := time.Now()
	createTestOrder(t, db, &model.PaymentOrder{
		OrderNo:   "PAY-O5",
		RequestID: "req-o7",
		UserID:    1,
		OrderType: model.OrderTypeVip,
		Amount:    100,
		Status:    model.OrderStatusPaid,
		ExpiresAt: time.Now().Add(-time.Minute),
		PaidAt:    &now,
	})

	closed, err := svc.CloseExpiredOrders(context.Background(), 100)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}

	if order := loadOrder(t, db, "PAY-O3"); order.Status != model.OrderStatusFailed {
		t.Errorf("expired order status = %q", order.Status)
	}
	if order := loadOrder(t, db, "PAY-O4"); order.Status != model.OrderStatusPending {
		t.Errorf("live order status = %q", order.Status)
	}
	if order := loadOrder(t, db, "PAY-O5"); order.Status != model.OrderStatusPaid {
		t.Errorf("paid order status = %q", order.Status)
	}
}
