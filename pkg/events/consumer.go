package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mahaj/supportdesk/pkg/model"
)

type Handler func(ctx context.Context, ev model.Event) error

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// Latest starts from the end of the topic; gateways only care about
	// events that happen while they are up.
	Latest bool
}

type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

func NewConsumer(cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	start := kafka.FirstOffset
	if cfg.Latest {
		start = kafka.LastOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: start,
		MinBytes:    1,    // wake-ups must not wait for a full batch
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
	})
	return &Consumer{reader: r, logger: logger}
}

// Consume reads events until ctx is cancelled. Handler errors are logged and
// the event is skipped; read errors back off for a second and retry.
func (c *Consumer) Consume(ctx context.Context, handle Handler) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("error reading event, retrying in 1s", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var ev model.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			c.logger.Warn("failed to unmarshal event", "error", err, "offset", m.Offset)
			continue
		}
		if err := handle(ctx, ev); err != nil {
			c.logger.Warn("event handler failed", "error", err, "type", ev.Type, "conversation_id", ev.ConversationID)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
