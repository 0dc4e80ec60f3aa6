package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/amenity-reservations/internal/application/ports"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per event to "<prefix><event type>",
// keyed by tenant and aggregate so per-reservation order is kept.
type KafkaPublisher struct {
	w      messageWriter
	prefix string
}

func NewKafkaPublisher(brokers []string, prefix string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
		prefix: prefix,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...ports.Event) error {
	msgs, err := p.messages(events)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msgs...)
}

func (p *KafkaPublisher) messages(events []ports.Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		body, err := Encode(e)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.prefix + e.Type,
			Key:   []byte(e.TenantID + ":" + e.AggregateID),
			Value: body,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(e.Type)},
				{Key: "event-id", Value: []byte(e.ID)},
			},
		})
	}
	return msgs, nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
