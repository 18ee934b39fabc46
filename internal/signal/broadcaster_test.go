package signal

import (
	"context"
	"encoding/json"
	"testing"
)

func TestBroadcastRequiresInitializedClient(t *testing.T) {
	t.Parallel()

	var b *RabbitMQBroadcaster
	if err := b.Broadcast(context.Background(), "DUCK"); err == nil {
		t.Fatal("Broadcast() error = nil on nil broadcaster, want error")
	}

	b = NewRabbitMQBroadcaster(nil)
	if err := b.Broadcast(context.Background(), "DUCK"); err == nil {
		t.Fatal("Broadcast() error = nil without client, want error")
	}
}

func TestBroadcastRejectsEmptySignal(t *testing.T) {
	t.Parallel()

	b := NewRabbitMQBroadcaster(&RabbitMQ{url: "amqp://unused"})
	if err := b.Broadcast(context.Background(), "  "); err == nil {
		t.Fatal("Broadcast() error = nil for empty signal, want error")
	}
}

func TestSignalMessageShape(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(signalMessage{Signal: "RESTORE", SentAt: "2026-01-02T03:04:05Z"})
	if err != nil {
		t.Fatalf("marshal error = %v", err)
	}

	var decoded map[string]string
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}
	if decoded["signal"] != "RESTORE" {
		t.Fatalf("signal = %q, want RESTORE", decoded["signal"])
	}
	if decoded["sentAt"] == "" {
		t.Fatal("sentAt missing from payload")
	}
}

func TestNewRabbitMQRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRabbitMQ("  "); err == nil {
		t.Fatal("NewRabbitMQ() error = nil for empty url, want error")
	}
}
