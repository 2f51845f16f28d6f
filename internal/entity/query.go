package entity

import (
	"net/url"
	"strconv"
)

// LeadQuery holds the list filters understood by GET /leads.
type LeadQuery struct {
	Skip       int
	Limit      int
	Status     string
	Sector     string
	AssignedTo string
	Search     string
}

// Values encodes the query, leaving out zero values so the backend
// applies its own defaults.
func (q LeadQuery) Values() url.Values {
	v := url.Values{}
	if q.Skip > 0 {
		v.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	setIf(v, "status", q.Status)
	setIf(v, "sector", q.Sector)
	setIf(v, "assigned_to", q.AssignedTo)
	setIf(v, "search", q.Search)
	return v
}

// LeadQueryFromValues is the inverse of Values; malformed numbers are ignored.
func LeadQueryFromValues(v url.Values) LeadQuery {
	q := LeadQuery{
		Status:     v.Get("status"),
		Sector:     v.Get("sector"),
		AssignedTo: v.Get("assigned_to"),
		Search:     v.Get("search"),
	}
	if n, err := strconv.Atoi(v.Get("skip")); err == nil && n > 0 {
		q.Skip = n
	}
	if n, err := strconv.Atoi(v.Get("limit")); err == nil && n > 0 {
		q.Limit = n
	}
	return q
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
