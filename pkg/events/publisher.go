// Package events carries conversation events over Kafka. The API publishes
// after durable changes; the gateway and the messaging worker consume.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mahaj/supportdesk/pkg/model"
)

type Publisher struct {
	producer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		producer: &kafka.Writer{
			Addr:  kafka.TCP(brokers...),
			Topic: topic,
			// Keyed by conversation so one conversation's events stay ordered.
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Notify publishes one event. It satisfies support.Notifier.
func (p *Publisher) Notify(ctx context.Context, ev model.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.ConversationID, 10)),
		Value: value,
		Time:  ev.At,
	})
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
