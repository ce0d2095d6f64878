package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/segmentio/kafka-go"
)

// Publisher emits order lifecycle events for downstream consumers
// (fulfilment, analytics). Publishing is best effort: the reconciler
// never fails a callback over a broker problem.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "orders-paid",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w}
}

func (p *Publisher) PublishOrderPaid(ctx context.Context, order *domain.Order, receiptID string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"order_id":   order.ID,
		"amount":     order.Amount,
		"currency":   order.Currency,
		"receipt_id": receiptID,
		"paid_at":    order.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal paid event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.ID.String()), // order_id for partition ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order.paid")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write paid event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
