package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/route2rise-console/internal/entity"
	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm"
	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm/crmtest"
	"github.com/xavierca1/route2rise-console/internal/infra/storage"
	"github.com/xavierca1/route2rise-console/internal/usecase"
)

func newLeadService(t *testing.T) (*usecase.LeadService, *crmtest.Server) {
	t.Helper()
	srv := crmtest.NewServer()
	t.Cleanup(srv.Close)

	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), storage.AccessTokenKey,
		srv.IssueToken("a", "Founder A", time.Hour)))

	client := crm.NewClient(srv.URL, 2*time.Second, store, nil)
	return usecase.NewLeadService(client), srv
}

func lastRequest(srv *crmtest.Server) crmtest.Request {
	reqs := srv.Requests()
	return reqs[len(reqs)-1]
}

func TestLeadServiceLifecycle(t *testing.T) {
	leads, srv := newLeadService(t)
	ctx := context.Background()

	created, err := leads.Create(ctx, entity.LeadInput{
		CompanyName: "Acme",
		Sector:      "SaaS",
		Status:      "New",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Founder A", created.AssignedTo)
	assert.Equal(t, http.MethodPost, lastRequest(srv).Method)
	assert.Equal(t, "/leads", lastRequest(srv).Path)

	got, err := leads.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Equal(t, "/leads/"+created.ID, lastRequest(srv).Path)

	updated, err := leads.Update(ctx, created.ID, entity.LeadInput{Status: "Contacted"})
	require.NoError(t, err)
	assert.Equal(t, "Contacted", updated.Status)
	assert.Equal(t, "Acme", updated.CompanyName)
	assert.Equal(t, http.MethodPut, lastRequest(srv).Method)
	assert.JSONEq(t, `{"status":"Contacted"}`, string(lastRequest(srv).Body))

	withNote, err := leads.AddInteraction(ctx, created.ID, "Called", "left voicemail")
	require.NoError(t, err)
	require.Len(t, withNote.InteractionHistory, 1)
	assert.Equal(t, "Called", withNote.InteractionHistory[0].Action)
	require.NotNil(t, withNote.InteractionHistory[0].Notes)
	assert.Equal(t, "left voicemail", *withNote.InteractionHistory[0].Notes)

	req := lastRequest(srv)
	assert.Equal(t, "/leads/"+created.ID+"/interaction", req.Path)
	assert.Equal(t, "Called", req.Query.Get("action"))
	assert.Equal(t, "left voicemail", req.Query.Get("notes"))

	_, err = leads.AddInteraction(ctx, created.ID, "Emailed", "")
	require.NoError(t, err)
	assert.False(t, lastRequest(srv).Query.Has("notes"))

	result, err := leads.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lead deleted successfully", result.Message)
	assert.Equal(t, http.MethodDelete, lastRequest(srv).Method)

	_, err = leads.Get(ctx, created.ID)
	assert.True(t, crm.IsNotFound(err))
}

func TestLeadServiceListSendsOnlySetFilters(t *testing.T) {
	leads, srv := newLeadService(t)
	ctx := context.Background()

	srv.AddLead(entity.Lead{CompanyName: "Acme", Status: "New", Sector: "SaaS"})
	srv.AddLead(entity.Lead{CompanyName: "Globex", Status: "Lost", Sector: "SaaS"})

	list, err := leads.List(ctx, entity.LeadQuery{Status: "Lost"})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "Globex", list.Leads[0].CompanyName)

	q := lastRequest(srv).Query
	assert.Equal(t, "Lost", q.Get("status"))
	assert.False(t, q.Has("skip"))
	assert.False(t, q.Has("sector"))
}

func TestLeadServiceEscapesIDs(t *testing.T) {
	leads, srv := newLeadService(t)

	_, err := leads.Get(context.Background(), "a/b")
	assert.True(t, crm.IsNotFound(err))

	reqs := srv.Requests()
	assert.Equal(t, "/leads/a%2Fb", reqs[len(reqs)-1].Path)
}

func TestLeadServiceDashboardStats(t *testing.T) {
	leads, srv := newLeadService(t)
	ctx := context.Background()

	srv.AddLead(entity.Lead{CompanyName: "Acme", Status: "New", AssignedTo: "Founder A"})
	srv.AddLead(entity.Lead{CompanyName: "Initech", Status: "New", AssignedTo: "Founder B"})

	stats, err := leads.DashboardStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalLeads)
	assert.False(t, lastRequest(srv).Query.Has("assigned_to"))

	stats, err = leads.DashboardStats(ctx, "Founder B")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalLeads)
	assert.Equal(t, "Founder B", lastRequest(srv).Query.Get("assigned_to"))
}

func TestLeadServiceWithoutSession(t *testing.T) {
	srv := crmtest.NewServer()
	defer srv.Close()

	leads := usecase.NewLeadService(crm.NewClient(srv.URL, time.Second, storage.NewMemoryStore(), nil))
	_, err := leads.List(context.Background(), entity.LeadQuery{})
	require.Error(t, err)
	assert.Empty(t, lastRequest(srv).Authorization)
}
