package idgen

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ============================================================================
// 分布式 ID 生成器（雪花算法）
// ============================================================================
//
// 订单号要求：
//   1. 全局唯一 - 不能重复
//   2. 趋势递增 - 便于数据库索引
//   3. 高性能 - 支持高并发生成
//   4. 信息隐藏 - 不暴露业务量
//
// ============================================================================

var (
	defaultNode *snowflake.Node
	once        sync.Once
)

// Init 初始化默认 ID 生成器，workerID 区分部署实例
func Init(workerID int64) {
	once.Do(func() {
		node, err := snowflake.NewNode(workerID)
		if err != nil {
			log.Fatalf("初始化雪花节点失败: %v", err)
		}
		defaultNode = node
	})
}

// NextID 生成下一个ID
func NextID() int64 {
	if defaultNode == nil {
		Init(1) // 默认使用 workerID = 1
	}
	return defaultNode.Generate().Int64()
}

// GenerateOrderNo 生成订单号
// 格式：PAY + 年月日时分秒 + 雪花ID后8位
// 例如：PAY20240115143052_12345678
func GenerateOrderNo() string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("PAY%s%08d", timestamp, id%100000000)
}

// GenerateTransactionNo 生成流水号
func GenerateTransactionNo() string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("TXN%s%08d", timestamp, id%100000000)
}

// GenerateTradeNo 生成内部交易号（余额支付、管理员手工收款时充当渠道交易号）
func GenerateTradeNo() string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("BAL%s%08d", timestamp, id%100000000)
}

// GenerateRefundNo 生成退款单号
func GenerateRefundNo() string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("REF%s%08d", timestamp, id%100000000)
}
