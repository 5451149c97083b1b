package service

import (
	"fmt"
	"testing"
	"time"

	"paycore/internal/config"
	"paycore/internal/infrastructure/database"
	"paycore/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:paycore_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			OrderExpireMinutes:    120,
			MaxRetryCount:         3,
			VipDurationDays:       31,
			CreditPackQuantity:    100,
			NotifyLockSeconds:     5,
			NotifyLockWaitRetries: 3,
		},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				OrderPaid:     "pay.order.paid",
				OrderRefunded: "pay.order.refunded",
			},
		},
	}
}

func createTestOrder(t *testing.T, db *gorm.DB, order *model.PaymentOrder) *model.PaymentOrder {
	t.Helper()

	if order.Status == "" {
		order.Status = model.OrderStatusPending
	}
	if order.ExpiresAt.IsZero() {
		order.ExpiresAt = time.Now().Add(2 * time.Hour)
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func createTestBalance(t *testing.T, db *gorm.DB, userID, balance int64) {
	t.Helper()

	if err := db.Create(&model.UserBalance{UserID: userID, Balance: balance}).Error; err != nil {
		t.Fatalf("create balance failed: %v", err)
	}
}

func loadOrder(t *testing.T, db *gorm.DB, orderNo string) *model.PaymentOrder {
	t.Helper()

	var order model.PaymentOrder
	if err := db.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	return &order
}

func loadBalance(t *testing.T, db *gorm.DB, userID int64) *model.UserBalance {
	t.Helper()

	var balance model.UserBalance
	if err := db.Where("user_id = ?", userID).First(&balance).Error; err != nil {
		t.Fatalf("load balance failed: %v", err)
	}
	return &balance
}

func countRows(t *testing.T, db *gorm.DB, modelValue interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var count int64
	if err := db.Model(modelValue).Where(query, args...).Count(&count).Error; err != nil {
		t.Fatalf("count rows failed: %v", err)
	}
	return count
}
