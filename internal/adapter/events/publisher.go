// Package events publishes settlement events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"loyalty-topup/config"
	"loyalty-topup/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements ports.EventPublisher on a Kafka topic.
// Messages are keyed by provider transaction id so one order's events stay ordered.
type KafkaPublisher struct {
	writer KafkaWriter
	log    zerolog.Logger
}

// NewKafkaWriter builds the production writer for cfg.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: timeout,
	}
}

func NewKafkaPublisher(writer KafkaWriter, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

// PublishSettlement writes one settlement event.
func (p *KafkaPublisher) PublishSettlement(ctx context.Context, ev domain.SettlementEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal settlement event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.ProviderTransactionID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("topup.settled")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish settlement event: %w", err)
	}
	p.log.Debug().Str("order_id", ev.OrderID).Msg("settlement event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishSettlement(context.Context, domain.SettlementEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
