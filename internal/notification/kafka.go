package notification

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier implements Notifier using segmentio/kafka-go.
type KafkaNotifier struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaNotifier creates a producer that writes email messages to the given
// topic. brokers must be non-empty. Call Close when shutting down.
func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaNotifier{writer: writer, topic: topic}, nil
}

// Enqueue serializes the message as JSON and writes it to the topic, keyed by
// recipient so retries for one address stay ordered.
func (n *KafkaNotifier) Enqueue(ctx context.Context, msg *Message) error {
	if n == nil || n.writer == nil || msg == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = n.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(msg.To),
		Value: payload,
	})
	if err != nil {
		log.Printf("notification: kafka enqueue failed: %v", err)
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call multiple times.
func (n *KafkaNotifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}
