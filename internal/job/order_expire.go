package job

import (
	"context"

	"paycore/internal/service"
	"paycore/pkg/logger"

	"go.uber.org/zap"
)

// OrderExpireJob 扫描超时未支付的订单并标记失败
type OrderExpireJob struct {
	orderService *service.OrderService
	batchSize    int
}

func NewOrderExpireJob(orderService *service.OrderService) *OrderExpireJob {
	return &OrderExpireJob{
		orderService: orderService,
		batchSize:    100,
	}
}

// Run 单轮扫描，作为 Runner 的任务函数
func (j *OrderExpireJob) Run(ctx context.Context) error {
	closed, err := j.orderService.CloseExpiredOrders(ctx, j.batchSize)
	if err != nil {
		return err
	}
	if closed > 0 {
		logger.L.Info("过期订单清理完成", zap.Int("closed", closed))
	}
	return nil
}
