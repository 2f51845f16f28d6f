package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xavierca1/route2rise-console/internal/infra/http/middleware"
)

// ReminderNotifier delivers one follow-up reminder.
type ReminderNotifier interface {
	SendFollowUpReminder(ctx context.Context, payload FollowUpPayload) error
}

// Acknowledger is the delivery subset the worker needs.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type Worker struct {
	Channel  *amqp.Channel
	Notifier ReminderNotifier
	logger   *zap.Logger
}

func NewWorker(ch *amqp.Channel, notifier ReminderNotifier, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		Channel:  ch,
		Notifier: notifier,
		logger:   logger,
	}
}

// ErrDeliveriesClosed means the broker closed the consumer's channel.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Start consumes queueName until ctx ends. A closed delivery channel is
// reported as ErrDeliveriesClosed.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	w.logger.Info("reminder worker waiting", zap.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrDeliveriesClosed
			}
			w.Handle(ctx, d.Body, &d)
		}
	}
}

// Handle processes one delivery. Malformed payloads and failed sends are
// rejected without requeue so they end up in the dead-letter queue.
func (w *Worker) Handle(ctx context.Context, body []byte, ack Acknowledger) {
	var payload FollowUpPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		w.logger.Error("malformed follow-up payload", zap.Error(err))
		middleware.RecordReminderSent("malformed")
		ack.Nack(false, false)
		return
	}

	if err := w.Notifier.SendFollowUpReminder(ctx, payload); err != nil {
		w.logger.Error("send follow-up reminder",
			zap.String("lead_id", payload.LeadID),
			zap.Error(err),
		)
		middleware.RecordReminderSent("failed")
		ack.Nack(false, false)
		return
	}

	w.logger.Info("follow-up reminder sent",
		zap.String("lead_id", payload.LeadID),
		zap.String("recipient", payload.Recipient),
	)
	middleware.RecordReminderSent("sent")
	ack.Ack(false)
}
