package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/simaogato/settleflow/internal/usecase/settlement"
)

// Publisher emits settlement outcome notifications to a Kafka topic.
// Messages are keyed by account id so consumers see one account's outcomes
// in order.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *Publisher) PublishSettled(ctx context.Context, notifications []settlement.Notification) error {
	messages := make([]kafka.Message, 0, len(notifications))
	for _, notification := range notifications {
		data, err := json.Marshal(notification)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(notification.AccountID),
			Value: data,
		})
	}

	return p.writer.WriteMessages(ctx, messages...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ settlement.Notifier = (*Publisher)(nil)
