package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"greenhouse_control/internal/models"

	"github.com/segmentio/kafka-go"
)

var errNoKafkaTopic = errors.New("kafka topic must not be empty")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Kafka forwards alerts to a Kafka topic keyed by system state.
type Kafka struct {
	writer messageWriter
	closer func() error
}

// NewKafka builds a notifier backed by a kafka-go writer.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, errNoKafkaTopic
	}
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}
	return &Kafka{writer: w, closer: w.Close}, nil
}

func (k *Kafka) Notify(ctx context.Context, a models.Alert) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(a.State.String()),
		Value: b,
		Headers: []kafka.Header{
			{Key: "alert_id", Value: []byte(a.ID)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	if k.closer == nil {
		return nil
	}
	return k.closer()
}
