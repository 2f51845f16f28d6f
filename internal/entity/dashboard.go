package entity

// DashboardStats is the aggregate view served by /leads/dashboard/stats.
type DashboardStats struct {
	TotalLeads    int            `json:"total_leads"`
	LeadsByStatus map[string]int `json:"leads_by_status"`
	LeadsBySector map[string]int `json:"leads_by_sector"`
	LeadsByOwner  map[string]int `json:"leads_by_owner,omitempty"`
	UpcomingCalls []Lead         `json:"upcoming_calls"`
	RecentUpdates []Lead         `json:"recent_updates"`
}

// Count is one row of a status or sector breakdown.
type Count struct {
	Key   string
	Value int
}
