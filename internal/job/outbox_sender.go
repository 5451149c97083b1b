package job

import (
	"context"

	"paycore/internal/config"
	"paycore/internal/infrastructure/mq"
	"paycore/internal/model"
	"paycore/internal/repository"
	"paycore/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxSender 把发件箱里的待发消息投递到 Kafka
//
// 消息在业务事务里落库，这里异步投递，至少一次语义；
// 下游按 message_key 幂等消费。超过最大重试次数的消息标记失败，
// 留给人工处理而不是无限重试。
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	producer   mq.Producer
	cfg        *config.Config
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, producer mq.Producer, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		producer:   producer,
		cfg:        cfg,
		batchSize:  100,
	}
}

// Run 单轮投递，作为 Runner 的任务函数
func (s *OutboxSender) Run(ctx context.Context) error {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.sendMessage(ctx, msg)
	}
	return nil
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := s.producer.Send(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			logger.L.Error("更新消息状态失败",
				zap.Int64("id", msg.ID),
				zap.Error(updateErr))
		}
		return
	}

	logger.L.Warn("消息发送失败",
		zap.Int64("id", msg.ID),
		zap.String("topic", msg.Topic),
		zap.Error(err))

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		logger.L.Error("增加重试次数失败", zap.Int64("id", msg.ID), zap.Error(err))
		return
	}

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			logger.L.Error("标记消息失败状态失败", zap.Int64("id", msg.ID), zap.Error(err))
		} else {
			logger.L.Error("消息超过最大重试次数，标记为失败",
				zap.Int64("id", msg.ID),
				zap.String("topic", msg.Topic))
		}
	}
}
