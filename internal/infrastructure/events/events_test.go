package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/amenity-reservations/internal/application/ports"
)

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func sampleEvent() ports.Event {
	return ports.Event{
		ID:          "ev-1",
		Type:        "reservation.created",
		TenantID:    "t1",
		AggregateID: "res-1",
		OccurredAt:  time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
		Data:        map[string]string{"status": "CONFIRMED"},
	}
}

func TestKafkaPublisherRoutesByType(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{w: w, prefix: "smartedify."}
	if err := p.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if m.Topic != "smartedify.reservation.created" || string(m.Key) != "t1:res-1" {
		t.Fatalf("topic=%s key=%s", m.Topic, m.Key)
	}
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.ID != "ev-1" || env.TenantID != "t1" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))
	if err := p.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !strings.Contains(buf.String(), `"type":"reservation.created"`) {
		t.Fatalf("log output missing event type: %s", buf.String())
	}
}

func TestNewValidatesDriver(t *testing.T) {
	if _, err := New(Config{Driver: "kafka"}, nil); err == nil {
		t.Fatalf("kafka without brokers must fail")
	}
	if _, err := New(Config{Driver: "amqp"}, nil); err == nil {
		t.Fatalf("amqp without url must fail")
	}
	if _, err := New(Config{Driver: "carrier-pigeon"}, nil); err == nil {
		t.Fatalf("unknown driver must fail")
	}
	p, err := New(Config{}, nil)
	if err != nil {
		t.Fatalf("default driver: %v", err)
	}
	if _, ok := p.(*LogPublisher); !ok {
		t.Fatalf("expected log publisher by default, got %T", p)
	}
}
