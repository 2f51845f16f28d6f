package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// FollowUpPayload announces one upcoming call to the reminder worker.
type FollowUpPayload struct {
	LeadID      string    `json:"lead_id"`
	CompanyName string    `json:"company_name"`
	Sector      string    `json:"sector"`
	Status      string    `json:"status"`
	AssignedTo  string    `json:"assigned_to"`
	FollowUpAt  time.Time `json:"follow_up_at"`
	Recipient   string    `json:"recipient"`
}

// Publisher is the channel subset the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQProducer struct {
	Ch Publisher
}

func NewProducer(ch Publisher) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch}
}

func (p *RabbitMQProducer) PublishFollowUp(ctx context.Context, payload FollowUpPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode follow-up payload: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish follow-up: %w", err)
	}
	return nil
}
