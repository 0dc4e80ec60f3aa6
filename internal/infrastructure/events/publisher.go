// Package events delivers domain events to the configured broker after the
// writes that produced them have committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/amenity-reservations/internal/application/ports"
)

const (
	DriverLog   = "log"
	DriverKafka = "kafka"
	DriverAMQP  = "amqp"
)

// Envelope is the wire format shared by every driver.
type Envelope struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	TenantID    string    `json:"tenantId"`
	AggregateID string    `json:"aggregateId"`
	OccurredAt  time.Time `json:"occurredAt"`
	Data        any       `json:"data"`
}

func Encode(e ports.Event) ([]byte, error) {
	return json.Marshal(Envelope{
		ID:          e.ID,
		Type:        e.Type,
		TenantID:    e.TenantID,
		AggregateID: e.AggregateID,
		OccurredAt:  e.OccurredAt.UTC(),
		Data:        e.Data,
	})
}

type Config struct {
	Driver       string
	KafkaBrokers []string
	TopicPrefix  string
	AMQPURL      string
	Exchange     string
}

// Publisher is a ports.EventPublisher that also owns broker connections.
type Publisher interface {
	ports.EventPublisher
	Close() error
}

func New(cfg Config, log *slog.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverLog:
		return NewLogPublisher(log), nil
	case DriverKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("events: KAFKA_BROKERS is required for the kafka driver")
		}
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.TopicPrefix), nil
	case DriverAMQP:
		if cfg.AMQPURL == "" {
			return nil, fmt.Errorf("events: AMQP_URL is required for the amqp driver")
		}
		p, err := DialAMQP(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("events: unknown driver %q", cfg.Driver)
	}
}

type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, events ...ports.Event) error {
	for _, e := range events {
		body, err := Encode(e)
		if err != nil {
			return err
		}
		p.log.InfoContext(ctx, "event",
			slog.String("type", e.Type),
			slog.String("tenantId", e.TenantID),
			slog.String("aggregateId", e.AggregateID),
			slog.String("payload", string(body)))
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
