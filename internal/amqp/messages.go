package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"nbbang/internal/feed"
)

// routingKey is "<entity>.<action>" so consumers can bind to a subset
// such as "settlement.*".
func routingKey(m feed.Message) string {
	return m.Entity + "." + m.Action
}

func publishing(m feed.Message) (amqp091.Publishing, error) {
	body, err := m.ToJSON()
	if err != nil {
		return amqp091.Publishing{}, err
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Type:         m.Type,
		Timestamp:    time.Now(),
		Body:         body,
	}, nil
}

// handleDelivery decodes one delivery and acknowledges it. Malformed
// messages are dropped; handler failures are requeued.
func handleDelivery(ctx context.Context, d amqp091.Delivery, handler feed.Handler) {
	msg, err := feed.MessageFromJSON(d.Body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"type", msg.Type,
			"id", msg.ID,
			"redelivered", d.Redelivered)
		// One retry, then drop so a poison message cannot loop forever.
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	_ = d.Ack(false)
	slog.DebugContext(ctx, "Processed change message", "type", msg.Type, "id", msg.ID)
}
