// Package events publishes and decodes lifecycle events on Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/example/roadside-matching/internal/models"
)

// messageWriter is the subset of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer messageWriter
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: w}
}

// Notify publishes ev keyed by request id, so all events of one request
// land on the same partition. Fanout delivers each event on its own
// goroutine, so publish order is not guaranteed; readers order by At.
func (k *KafkaProducer) Notify(ctx context.Context, ev models.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.RequestID), Value: b}); err != nil {
		return fmt.Errorf("publish %s event for %s: %w", ev.Type, ev.RequestID, err)
	}
	return nil
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// Decode parses a message value produced by Notify.
func Decode(value []byte) (models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return models.Event{}, err
	}
	if ev.RequestID == "" || ev.Type == "" {
		return models.Event{}, fmt.Errorf("event missing request_id or type")
	}
	return ev, nil
}
