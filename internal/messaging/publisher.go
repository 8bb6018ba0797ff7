package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"direct-chat/internal/models"
	"direct-chat/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Publisher announces persisted messages to downstream consumers.
type Publisher interface {
	PublishMessage(ctx context.Context, msg *models.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
			Completion:   logCompletion,
		},
	}
}

func (p *KafkaPublisher) PublishMessage(ctx context.Context, msg *models.Message) error {
	record, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// logCompletion reports delivery failures of the async writer, which
// WriteMessages no longer returns.
func logCompletion(messages []kafka.Message, err error) {
	if err != nil {
		logger.L().Warn().Err(err).Int("count", len(messages)).Msg("failed to deliver message events to kafka")
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// encodeMessage keys the record by conversation so both directions of a
// pair land on the same partition in persist order.
func encodeMessage(msg *models.Message) (kafka.Message, error) {
	value, err := json.Marshal(msg)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	low, high := models.ConversationKey(msg.SenderID, msg.RecipientID)
	return kafka.Message{
		Key:   []byte(low + ":" + high),
		Value: value,
		Time:  msg.CreatedAt,
	}, nil
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishMessage(context.Context, *models.Message) error { return nil }
func (NopPublisher) Close() error                                          { return nil }
