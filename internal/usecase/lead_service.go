package usecase

import (
	"context"
	"net/http"
	"net/url"

	"github.com/xavierca1/route2rise-console/internal/entity"
	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm"
)

// LeadService maps each lead operation onto exactly one backend call.
// Results come back as the backend sent them and errors are not wrapped.
type LeadService struct {
	client *crm.Client
}

func NewLeadService(client *crm.Client) *LeadService {
	return &LeadService{client: client}
}

func (s *LeadService) Create(ctx context.Context, input entity.LeadInput) (*entity.Lead, error) {
	var lead entity.Lead
	if err := s.client.Do(ctx, "create_lead", http.MethodPost, "/leads", nil, input, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *LeadService) Get(ctx context.Context, id string) (*entity.Lead, error) {
	var lead entity.Lead
	if err := s.client.Do(ctx, "get_lead", http.MethodGet, leadPath(id), nil, nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *LeadService) List(ctx context.Context, query entity.LeadQuery) (*entity.LeadList, error) {
	var list entity.LeadList
	if err := s.client.Do(ctx, "list_leads", http.MethodGet, "/leads", query.Values(), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *LeadService) Update(ctx context.Context, id string, input entity.LeadInput) (*entity.Lead, error) {
	var lead entity.Lead
	if err := s.client.Do(ctx, "update_lead", http.MethodPut, leadPath(id), nil, input, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *LeadService) Delete(ctx context.Context, id string) (*entity.DeleteResult, error) {
	var result entity.DeleteResult
	if err := s.client.Do(ctx, "delete_lead", http.MethodDelete, leadPath(id), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddInteraction records an action on the lead's history. notes is optional.
func (s *LeadService) AddInteraction(ctx context.Context, id, action, notes string) (*entity.Lead, error) {
	query := url.Values{}
	query.Set("action", action)
	if notes != "" {
		query.Set("notes", notes)
	}

	var lead entity.Lead
	if err := s.client.Do(ctx, "add_interaction", http.MethodPost, leadPath(id)+"/interaction", query, nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// DashboardStats fetches the aggregate view, optionally for one assignee.
func (s *LeadService) DashboardStats(ctx context.Context, assignedTo string) (*entity.DashboardStats, error) {
	query := url.Values{}
	if assignedTo != "" {
		query.Set("assigned_to", assignedTo)
	}

	var stats entity.DashboardStats
	if err := s.client.Do(ctx, "dashboard_stats", http.MethodGet, "/leads/dashboard/stats", query, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func leadPath(id string) string {
	return "/leads/" + url.PathEscape(id)
}
