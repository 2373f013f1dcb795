package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"gochat-server/pkg/logger"
)

// Producer 生产者
type Producer struct {
	asyncProducer sarama.AsyncProducer
}

// InitProducer 初始化生产者
func InitProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = false
	config.Producer.Partitioner = sarama.NewHashPartitioner
	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	p := &Producer{asyncProducer: producer}
	go p.drainErrors()
	return p, nil
}

// drainErrors 排空错误通道，不排空时内部缓冲写满后 Input 会永久阻塞
func (p *Producer) drainErrors() {
	log := logger.GetLogger()
	for err := range p.asyncProducer.Errors() {
		log.Error(context.Background(), "Kafka produce failed",
			logger.F("topic", err.Msg.Topic),
			logger.F("error", err.Err.Error()))
	}
}

// SendMessage 发送消息
func (p *Producer) SendMessage(topic string, key, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	p.asyncProducer.Input() <- msg
	return nil
}

// GroupEvent 群组事件，按群ID分区保证同群事件有序
type GroupEvent struct {
	Type      string `json:"type"` // created / member.joined / member.left / announcement
	GroupID   string `json:"group_id"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
}

// SendGroupEvent 发送群组事件
func (p *Producer) SendGroupEvent(topic string, event GroupEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.SendMessage(topic, []byte(event.GroupID), value)
}

// Close 关闭生产者
func (p *Producer) Close() error {
	return p.asyncProducer.Close()
}
