package mq

import (
	"paycore/internal/config"
	"paycore/pkg/logger"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Producer 消息生产者，OutboxSender 依赖这个接口而不是具体客户端
type Producer interface {
	Send(topic, key, value string) error
	Close() error
}

type kafkaProducer struct {
	producer sarama.SyncProducer
}

// InitKafka 初始化 Kafka 生产者
func InitKafka(cfg *config.KafkaConfig) Producer {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		logger.L.Fatal("创建 Kafka 生产者失败", zap.Error(err))
	}

	logger.L.Info("Kafka 生产者创建成功")
	return &kafkaProducer{producer: producer}
}

func (p *kafkaProducer) Send(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *kafkaProducer) Close() error {
	return p.producer.Close()
}
