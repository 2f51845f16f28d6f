// Package crmtest runs an in-memory stand-in for the CRM REST API.
package crmtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/xavierca1/route2rise-console/internal/entity"
)

const signingKey = "crmtest-secret"

type User struct {
	Password string
	Founder  string
}

// Request is one call the fake received.
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	Body          []byte
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]User
	revoked  map[string]bool
	leads    map[string]*entity.Lead
	order    []string
	stats    *entity.DashboardStats
	failWith int
	requests []Request
}

// NewServer starts a fake with one account, "a" / "b".
func NewServer() *Server {
	s := &Server{
		users:   map[string]User{"a": {Password: "b", Founder: "Founder A"}},
		revoked: make(map[string]bool),
		leads:   make(map[string]*entity.Lead),
	}

	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Post("/auth/login", s.login)
	r.Get("/auth/verify", s.verify)
	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/leads/dashboard/stats", s.dashboard)
		r.Post("/leads", s.createLead)
		r.Get("/leads", s.listLeads)
		r.Get("/leads/{id}", s.getLead)
		r.Put("/leads/{id}", s.updateLead)
		r.Delete("/leads/{id}", s.deleteLead)
		r.Post("/leads/{id}/interaction", s.addInteraction)
	})

	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) AddUser(username, password, founder string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = User{Password: password, Founder: founder}
}

// Revoke makes the backend reject a token it issued earlier.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// SetStats fixes the dashboard payload; nil means "compute from leads".
func (s *Server) SetStats(stats *entity.DashboardStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

// FailDashboard makes the stats endpoint answer with status; 0 restores it.
func (s *Server) FailDashboard(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = status
}

func (s *Server) AddLead(lead entity.Lead) entity.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	s.leads[lead.ID] = &lead
	s.order = append(s.order, lead.ID)
	return lead
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests hit path.
func (s *Server) Count(path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) IssueToken(username, founder string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":     username,
		"founder": founder,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		panic(err)
	}
	return token
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.EscapedPath(),
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
			Body:          body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req entity.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	user, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || user.Password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	writeJSON(w, http.StatusOK, entity.LoginResponse{
		AccessToken: s.IssueToken(req.Username, user.Founder, 24*time.Hour),
		TokenType:   "bearer",
		Founder:     user.Founder,
	})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	claims, status := s.authenticate(r)
	if status != 0 {
		writeDetail(w, status, "Invalid or expired token")
		return
	}
	writeJSON(w, http.StatusOK, entity.Identity{
		Username:      claims["sub"].(string),
		Founder:       claims["founder"].(string),
		Authenticated: true,
	})
}

// authenticate returns the token's claims, or the status to reject with.
func (s *Server) authenticate(r *http.Request) (jwt.MapClaims, int) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, http.StatusForbidden
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	s.mu.Lock()
	revoked := s.revoked[raw]
	s.mu.Unlock()
	if revoked {
		return nil, http.StatusUnauthorized
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(signingKey), nil
	})
	if err != nil {
		return nil, http.StatusUnauthorized
	}
	return claims, 0
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, status := s.authenticate(r); status != 0 {
			writeDetail(w, status, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != 0 {
		writeDetail(w, s.failWith, "stats unavailable")
		return
	}
	if s.stats != nil {
		writeJSON(w, http.StatusOK, s.stats)
		return
	}

	assignedTo := r.URL.Query().Get("assigned_to")
	stats := entity.DashboardStats{
		LeadsByStatus: map[string]int{},
		LeadsBySector: map[string]int{},
		LeadsByOwner:  map[string]int{},
		UpcomingCalls: []entity.Lead{},
		RecentUpdates: []entity.Lead{},
	}
	for _, id := range s.order {
		lead := s.leads[id]
		if assignedTo != "" && lead.AssignedTo != assignedTo {
			continue
		}
		stats.TotalLeads++
		stats.LeadsByStatus[lead.Status]++
		stats.LeadsBySector[lead.Sector]++
		stats.LeadsByOwner[lead.AssignedTo]++
		if lead.HasFollowUp() {
			stats.UpcomingCalls = append(stats.UpcomingCalls, *lead)
		}
		stats.RecentUpdates = append(stats.RecentUpdates, *lead)
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) createLead(w http.ResponseWriter, r *http.Request) {
	var in entity.LeadInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	claims, _ := s.authenticate(r)
	founder, _ := claims["founder"].(string)

	now := entity.NewTimestamp(time.Now().UTC())
	lead := s.AddLead(entity.Lead{
		CompanyName:      in.CompanyName,
		Sector:           in.Sector,
		Status:           in.Status,
		Email:            in.Email,
		MobileNumber:     in.MobileNumber,
		Notes:            in.Notes,
		AssignedTo:       founder,
		CreatedBy:        founder,
		NextFollowUpDate: in.NextFollowUpDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	q := entity.LeadQueryFromValues(r.URL.Query())
	if q.Limit == 0 {
		q.Limit = 50
	}

	s.mu.Lock()
	var matched []entity.Lead
	for _, id := range s.order {
		lead := s.leads[id]
		if (q.Status != "" && lead.Status != q.Status) ||
			(q.Sector != "" && lead.Sector != q.Sector) ||
			(q.AssignedTo != "" && lead.AssignedTo != q.AssignedTo) ||
			(q.Search != "" && !strings.Contains(strings.ToLower(lead.CompanyName), strings.ToLower(q.Search))) {
			continue
		}
		matched = append(matched, *lead)
	}
	s.mu.Unlock()

	page := []entity.Lead{}
	for i := q.Skip; i < len(matched) && len(page) < q.Limit; i++ {
		page = append(page, matched[i])
	}
	writeJSON(w, http.StatusOK, entity.LeadList{Leads: page, Total: len(matched), Skip: q.Skip, Limit: q.Limit})
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	lead, ok := s.leads[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Lead not found")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) updateLead(w http.ResponseWriter, r *http.Request) {
	var in entity.LeadInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[chi.URLParam(r, "id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Lead not found")
		return
	}
	setIf(&lead.CompanyName, in.CompanyName)
	setIf(&lead.Sector, in.Sector)
	setIf(&lead.Status, in.Status)
	setIf(&lead.Email, in.Email)
	setIf(&lead.MobileNumber, in.MobileNumber)
	setIf(&lead.Notes, in.Notes)
	setIf(&lead.AssignedTo, in.AssignedTo)
	if in.NextFollowUpDate != nil {
		lead.NextFollowUpDate = in.NextFollowUpDate
	}
	lead.UpdatedAt = entity.NewTimestamp(time.Now().UTC())
	writeJSON(w, http.StatusOK, lead)
}

func (s *Server) deleteLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Lead not found")
		return
	}
	delete(s.leads, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	writeJSON(w, http.StatusOK, entity.DeleteResult{Message: "Lead deleted successfully"})
}

func (s *Server) addInteraction(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "action is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[chi.URLParam(r, "id")]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Lead not found")
		return
	}

	it := entity.Interaction{Timestamp: entity.NewTimestamp(time.Now().UTC()), Action: action}
	if notes := r.URL.Query().Get("notes"); notes != "" {
		it.Notes = &notes
	}
	lead.InteractionHistory = append(lead.InteractionHistory, it)
	lead.UpdatedAt = it.Timestamp
	writeJSON(w, http.StatusOK, lead)
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
