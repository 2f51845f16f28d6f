package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/route2rise-console/internal/entity"
	"github.com/xavierca1/route2rise-console/internal/infra/http/middleware"
	"github.com/xavierca1/route2rise-console/internal/infra/queue"
)

type FollowUpPublisher interface {
	PublishFollowUp(ctx context.Context, payload queue.FollowUpPayload) error
}

// FollowUpScheduler turns dashboard snapshots into reminder messages.
// Each (lead, follow-up date) pair is published at most once, and only
// when it falls inside the lookahead window. Calls overdue by more than
// the lookahead are neither published nor remembered.
type FollowUpScheduler struct {
	publisher FollowUpPublisher
	recipient string
	lookahead time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time
}

func NewFollowUpScheduler(publisher FollowUpPublisher, recipient string, lookahead time.Duration, logger *zap.Logger) *FollowUpScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowUpScheduler{
		publisher: publisher,
		recipient: recipient,
		lookahead: lookahead,
		logger:    logger,
		now:       time.Now,
		sent:      make(map[string]time.Time),
	}
}

// Schedule publishes reminders for the upcoming calls in stats and
// returns how many were queued. A publish failure leaves the call
// eligible for the next snapshot.
func (s *FollowUpScheduler) Schedule(ctx context.Context, stats *entity.DashboardStats) (int, error) {
	if stats == nil {
		return 0, nil
	}

	now := s.now()
	horizon := now.Add(s.lookahead)
	cutoff := now.Add(-s.lookahead)
	s.prune(cutoff)
	queued := 0

	for _, lead := range stats.UpcomingCalls {
		if !lead.HasFollowUp() || lead.NextFollowUpDate.After(horizon) || lead.NextFollowUpDate.Before(cutoff) {
			continue
		}

		at := lead.NextFollowUpDate.Time
		key := lead.ID + "@" + at.UTC().Format(time.RFC3339)
		if !s.claim(key, at) {
			continue
		}

		payload := queue.FollowUpPayload{
			LeadID:      lead.ID,
			CompanyName: lead.CompanyName,
			Sector:      lead.Sector,
			Status:      lead.Status,
			AssignedTo:  lead.AssignedTo,
			FollowUpAt:  lead.NextFollowUpDate.Time,
			Recipient:   s.recipient,
		}
		if err := s.publisher.PublishFollowUp(ctx, payload); err != nil {
			s.release(key)
			return queued, err
		}

		middleware.RecordReminderPublished()
		s.logger.Info("follow-up reminder queued",
			zap.String("lead_id", lead.ID),
			zap.Time("follow_up_at", payload.FollowUpAt),
		)
		queued++
	}

	return queued, nil
}

// claim reserves key for one publisher. It reports false when the key
// was already published or is being published by a concurrent call.
func (s *FollowUpScheduler) claim(key string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sent[key]; ok {
		return false
	}
	s.sent[key] = at
	return true
}

func (s *FollowUpScheduler) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sent, key)
}

func (s *FollowUpScheduler) prune(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, at := range s.sent {
		if at.Before(cutoff) {
			delete(s.sent, key)
		}
	}
}
