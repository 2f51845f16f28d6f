package usecase

import (
	"context"
	"sort"

	"github.com/xavierca1/route2rise-console/internal/entity"
)

// StatsFetcher is the slice of LeadService the dashboard needs.
type StatsFetcher interface {
	DashboardStats(ctx context.Context, assignedTo string) (*entity.DashboardStats, error)
}

// ProcessStats prepares a raw stats payload for display: upcoming calls
// without a follow-up date are dropped and the rest ordered soonest
// first. Equal dates keep the order the backend sent. The input is not
// modified.
func ProcessStats(raw entity.DashboardStats) entity.DashboardStats {
	out := raw

	upcoming := make([]entity.Lead, 0, len(raw.UpcomingCalls))
	for _, lead := range raw.UpcomingCalls {
		if lead.HasFollowUp() {
			upcoming = append(upcoming, lead)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].NextFollowUpDate.Before(upcoming[j].NextFollowUpDate.Time)
	})
	out.UpcomingCalls = upcoming

	if out.RecentUpdates == nil {
		out.RecentUpdates = []entity.Lead{}
	}
	return out
}

// SortedCounts flattens a breakdown map into rows ordered by key.
func SortedCounts(m map[string]int) []entity.Count {
	rows := make([]entity.Count, 0, len(m))
	for k, v := range m {
		rows = append(rows, entity.Count{Key: k, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Key < rows[j].Key
	})
	return rows
}

// LoadDashboard fetches and processes stats once.
func LoadDashboard(ctx context.Context, fetcher StatsFetcher, assignedTo string) (*entity.DashboardStats, error) {
	raw, err := fetcher.DashboardStats(ctx, assignedTo)
	if err != nil {
		return nil, err
	}
	processed := ProcessStats(*raw)
	return &processed, nil
}
