package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type signalMessage struct {
	Signal string `json:"signal"`
	SentAt string `json:"sentAt"`
}

// RabbitMQBroadcaster publishes audio signals to the fanout exchange.
// It satisfies audio.Broadcaster; the ducker swallows publish failures.
type RabbitMQBroadcaster struct {
	client *RabbitMQ
}

func NewRabbitMQBroadcaster(client *RabbitMQ) *RabbitMQBroadcaster {
	return &RabbitMQBroadcaster{client: client}
}

func (b *RabbitMQBroadcaster) Broadcast(ctx context.Context, signal string) error {
	if b == nil || b.client == nil {
		return fmt.Errorf("broadcaster is not initialized")
	}
	if strings.TrimSpace(signal) == "" {
		return fmt.Errorf("signal is required")
	}

	payload, err := json.Marshal(signalMessage{
		Signal: signal,
		SentAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal audio signal: %w", err)
	}

	ch, err := b.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType: "application/json",
		// Signals are transient by nature; no persistence, no mandatory flag.
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}

	if err := ch.PublishWithContext(ctx, ExchangeName, "", false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish audio signal: %w", err)
	}

	return nil
}

func (b *RabbitMQBroadcaster) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
