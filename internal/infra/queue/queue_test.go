package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendFollowUpReminder(ctx context.Context, payload FollowUpPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

type MockAcknowledger struct {
	mock.Mock
}

func (m *MockAcknowledger) Ack(multiple bool) error {
	return m.Called(multiple).Error(0)
}

func (m *MockAcknowledger) Nack(multiple, requeue bool) error {
	return m.Called(multiple, requeue).Error(0)
}

var samplePayload = FollowUpPayload{
	LeadID:      "lead-1",
	CompanyName: "Acme",
	Sector:      "SaaS",
	Status:      "Contacted",
	AssignedTo:  "Founder A",
	FollowUpAt:  time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC),
	Recipient:   "founder-a@example.com",
}

// TestPublishFollowUp - the message goes to the follow-up exchange as persistent JSON
func TestPublishFollowUp(t *testing.T) {
	ch := new(MockPublisher)
	ch.On("PublishWithContext", mock.Anything, ExchangeName, RoutingKey, false, false,
		mock.MatchedBy(func(msg amqp.Publishing) bool {
			var got FollowUpPayload
			if err := json.Unmarshal(msg.Body, &got); err != nil {
				return false
			}
			return msg.ContentType == "application/json" &&
				msg.DeliveryMode == amqp.Persistent &&
				got.LeadID == "lead-1" &&
				got.FollowUpAt.Equal(samplePayload.FollowUpAt)
		}),
	).Return(nil)

	require.NoError(t, NewProducer(ch).PublishFollowUp(context.Background(), samplePayload))
	ch.AssertExpectations(t)
}

func TestPublishFollowUpError(t *testing.T) {
	ch := new(MockPublisher)
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(amqp.ErrClosed)

	err := NewProducer(ch).PublishFollowUp(context.Background(), samplePayload)
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestWorkerHandle(t *testing.T) {
	body, err := json.Marshal(samplePayload)
	require.NoError(t, err)

	t.Run("sent reminders are acked", func(t *testing.T) {
		notifier := new(MockNotifier)
		notifier.On("SendFollowUpReminder", mock.Anything, mock.MatchedBy(func(p FollowUpPayload) bool {
			return p.LeadID == "lead-1" && p.Recipient == "founder-a@example.com"
		})).Return(nil)
		ack := new(MockAcknowledger)
		ack.On("Ack", false).Return(nil)

		NewWorker(nil, notifier, nil).Handle(context.Background(), body, ack)

		notifier.AssertExpectations(t)
		ack.AssertExpectations(t)
		ack.AssertNotCalled(t, "Nack", mock.Anything, mock.Anything)
	})

	t.Run("failed sends are dead-lettered", func(t *testing.T) {
		notifier := new(MockNotifier)
		notifier.On("SendFollowUpReminder", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
		ack := new(MockAcknowledger)
		ack.On("Nack", false, false).Return(nil)

		NewWorker(nil, notifier, nil).Handle(context.Background(), body, ack)

		ack.AssertExpectations(t)
		ack.AssertNotCalled(t, "Ack", mock.Anything)
	})

	t.Run("malformed payloads never reach the notifier", func(t *testing.T) {
		notifier := new(MockNotifier)
		ack := new(MockAcknowledger)
		ack.On("Nack", false, false).Return(nil)

		NewWorker(nil, notifier, nil).Handle(context.Background(), []byte("{oops"), ack)

		notifier.AssertNotCalled(t, "SendFollowUpReminder", mock.Anything, mock.Anything)
		ack.AssertExpectations(t)
	})
}
