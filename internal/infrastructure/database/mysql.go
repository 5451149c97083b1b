package database

import (
	"fmt"
	"time"

	"paycore/internal/config"
	"paycore/internal/model"
	"paycore/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitMySQL 初始化 MySQL 连接
func InitMySQL(cfg *config.MySQLConfig) *gorm.DB {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.L.Fatal("连接 MySQL 失败", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.L.Fatal("获取底层 DB 失败", zap.Error(err))
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := AutoMigrate(db); err != nil {
		logger.L.Fatal("自动迁移表结构失败", zap.Error(err))
	}

	logger.L.Info("MySQL 连接成功")
	return db
}

// AutoMigrate 迁移全部表结构，测试里对 sqlite 复用
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.PaymentOrder{},
		&model.UserBalance{},
		&model.BalanceTransaction{},
		&model.CallbackEvent{},
		&model.VipMembership{},
		&model.CreditPack{},
		&model.Consultation{},
		&model.ReviewTask{},
		&model.OutboxMessage{},
	)
}
