package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xavierca1/route2rise-console/internal/entity"
	"github.com/xavierca1/route2rise-console/internal/infra/worker"
)

func TestRenderDashboard(t *testing.T) {
	t.Run("loading", func(t *testing.T) {
		var buf bytes.Buffer
		renderDashboard(&buf, worker.StateLoading, nil)
		assert.Equal(t, "Loading...\n", buf.String())
	})

	t.Run("error without snapshot", func(t *testing.T) {
		var buf bytes.Buffer
		renderDashboard(&buf, worker.StateError, nil)
		assert.Equal(t, "Error loading dashboard\n", buf.String())
	})

	t.Run("owners are listed", func(t *testing.T) {
		var buf bytes.Buffer
		renderDashboard(&buf, worker.StateReady, &entity.DashboardStats{
			TotalLeads:   3,
			LeadsByOwner: map[string]int{"Founder A": 2, "": 1},
		})
		out := buf.String()
		assert.Contains(t, out, "Total leads: 3")
		assert.Contains(t, out, "LEADS BY OWNER")
		assert.Regexp(t, `Founder A\s+2`, out)
		assert.Regexp(t, `-\s+1`, out)
	})

	t.Run("owners section omitted when absent", func(t *testing.T) {
		var buf bytes.Buffer
		renderDashboard(&buf, worker.StateReady, &entity.DashboardStats{TotalLeads: 0})
		assert.NotContains(t, buf.String(), "LEADS BY OWNER")
	})
}
