// Package events publishes order and payment state changes for other
// services. Publishing is best effort; the database stays the source of
// truth.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type Type string

const (
	OrderCreated     Type = "order.created"
	OrderPaid        Type = "order.paid"
	OrderFailed      Type = "order.failed"
	OrderFlagged     Type = "order.flagged"
	TransferSettled  Type = "transfer.settled"
	CustomOrderAdded Type = "custom_order.created"
)

type Event struct {
	Type      Type      `json:"type"`
	Reference string    `json:"reference"`
	OrderID   string    `json:"order_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher writes events to topic, keyed by payment reference so
// every event of one checkout lands on the same partition.
func NewKafkaPublisher(brokers []string, topic string) Publisher {
	return &kafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}}
}

func (p *kafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Reference),
		Value: data,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

type nopPublisher struct{}

// Nop discards every event. Used when no brokers are configured.
func Nop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }
