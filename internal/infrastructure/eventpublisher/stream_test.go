package eventpublisher

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/agencyledger/internal/domain"
)

func newStreamClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStreamPublisherAppendsEvent(t *testing.T) {
	client := newStreamClient(t)
	pub := NewStreamPublisher(client, "agency:events", 0)

	event := &domain.OutboxEvent{
		ID:            "evt-1",
		AggregateID:   "pay-1",
		AggregateType: domain.AggregateTypePayment,
		EventType:     domain.EventTypePaymentRecorded,
		Payload:       map[string]any{"amount": "250", "currency_id": "AED"},
		CreatedAt:     time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	msgs, err := client.XRange(context.Background(), "agency:events", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 stream entry, got %d", len(msgs))
	}
	values := msgs[0].Values
	if values["event_id"] != "evt-1" || values["event_type"] != domain.EventTypePaymentRecorded || values["aggregate_id"] != "pay-1" {
		t.Fatalf("unexpected entry: %v", values)
	}
	if values["payload"] != `{"amount":"250","currency_id":"AED"}` {
		t.Fatalf("unexpected payload: %v", values["payload"])
	}
}

func TestStreamPublisherReturnsRedisErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewStreamPublisher(client, "agency:events", 100).Publish(context.Background(), &domain.OutboxEvent{ID: "evt-1"})
	if err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func TestLogPublisherWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(zerolog.New(&buf))

	err := pub.Publish(context.Background(), &domain.OutboxEvent{
		ID:            "evt-2",
		AggregateID:   "res-1",
		AggregateType: domain.AggregateTypeResidence,
		EventType:     domain.EventTypeResidenceSettled,
		Payload:       map[string]any{"record_id": "res-1"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"event_id":"evt-2"`, `"event_type":"` + domain.EventTypeResidenceSettled + `"`, `"payload":{"record_id":"res-1"}`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}
