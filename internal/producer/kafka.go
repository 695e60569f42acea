package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/EricCohen9/melingo/internal/config"
	"github.com/EricCohen9/melingo/internal/enricher"
)

// KafkaProducer mirrors enriched tracking events to a Kafka topic for
// downstream pipelines. Writes are async and best-effort.
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(cfg config.KafkaConfig) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: time.Millisecond * 100,
			Async:        true,
		},
	}
}

// ProduceEvent publishes an event keyed by session so a session's events
// stay ordered within a partition.
func (p *KafkaProducer) ProduceEvent(ctx context.Context, ev *enricher.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.SessionID),
		Value: data,
	})
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
