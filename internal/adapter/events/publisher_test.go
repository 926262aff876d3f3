package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"loyalty-topup/config"
	"loyalty-topup/internal/core/domain"
	"loyalty-topup/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.EventPublisher = (*KafkaPublisher)(nil)
	_ ports.EventPublisher = NopPublisher{}
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_PublishSettlement(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, zerolog.Nop())

	ev := domain.SettlementEvent{
		OrderID:               "TOPUP-20260309-AB12C",
		ProviderTransactionID: "ptx-1",
		WalletOwnerID:         "owner-1",
		AmountMinor:           10000,
		Currency:              "THB",
		Points:                100,
		NewBalance:            100,
		CreditApplied:         true,
		SettledAt:             time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishSettlement(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ptx-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "topup.settled", string(msg.Headers[0].Value))

	var decoded domain.SettlementEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev, decoded)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := NewKafkaPublisher(&fakeWriter{err: errors.New("leader not available")}, zerolog.Nop())

	err := p.PublishSettlement(context.Background(), domain.SettlementEvent{ProviderTransactionID: "ptx-1"})
	assert.ErrorContains(t, err, "leader not available")
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter(config.KafkaConfig{Brokers: []string{"k1:9092", "k2:9092"}, Topic: "topups"})
	assert.Equal(t, "topups", w.Topic)
	assert.Equal(t, 5*time.Second, w.WriteTimeout)
	assert.Equal(t, "k1:9092,k2:9092", w.Addr.String())
	require.NoError(t, w.Close())
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	assert.NoError(t, p.PublishSettlement(context.Background(), domain.SettlementEvent{}))
	assert.NoError(t, p.Close())
}
