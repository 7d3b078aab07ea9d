// v1
// internal/actions/kafka.go
package actions

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaRecorder publishes action records to a Kafka topic, keyed by room id
// so per-room ordering is preserved across partitions.
type KafkaRecorder struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewKafkaRecorder wires a writer against the given brokers and topic.
func NewKafkaRecorder(brokers []string, topic string, log *slog.Logger) *KafkaRecorder {
	return &KafkaRecorder{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		log: log.With(slog.String("component", "action_kafka")),
	}
}

// Record publishes the record; publish errors are logged and dropped so a
// broker outage cannot stall the caller past the writer's own timeout.
func (k *KafkaRecorder) Record(ctx context.Context, rec Record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		k.log.Error("action encode failed", "error", err)
		return
	}
	msg := kafka.Message{Key: []byte(rec.RoomID), Value: raw}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.Error("action publish failed", "topic", k.writer.Topic, "error", err)
	}
}

// Close flushes buffered messages and releases the writer.
func (k *KafkaRecorder) Close() error {
	return k.writer.Close()
}
