package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of kafka.Writer used by the channel.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaChannel publishes notifications to a Kafka topic for downstream
// delivery services.
type KafkaChannel struct {
	writer KafkaWriter
}

// NewKafkaChannel constructs a channel over an existing writer.
func NewKafkaChannel(writer KafkaWriter) (*KafkaChannel, error) {
	if writer == nil {
		return nil, errors.New("notify: nil kafka writer")
	}
	return &KafkaChannel{writer: writer}, nil
}

// NewKafkaWriter builds a kafka.Writer for the given brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
}

// Name implements Channel.
func (c *KafkaChannel) Name() string { return "kafka" }

// Send implements Channel. Messages are keyed by event code so versions of
// one event stay in order within a partition.
func (c *KafkaChannel) Send(ctx context.Context, msg Message) error {
	if c == nil || c.writer == nil {
		return errors.New("notify: nil kafka channel")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.EventCode),
		Value: payload,
	})
}
