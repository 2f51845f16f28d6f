package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xavierca1/route2rise-console/internal/entity"
	"github.com/xavierca1/route2rise-console/internal/infra/http/middleware"
	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm"
	"github.com/xavierca1/route2rise-console/internal/shell"
	"github.com/xavierca1/route2rise-console/internal/usecase"
)

// Workspace is everything a single browser client acts through.
type Workspace struct {
	Sessions *usecase.SessionStore
	Leads    *usecase.LeadService
}

// WorkspaceFactory builds the workspace bound to one client's storage.
type WorkspaceFactory func(clientID string) Workspace

type ConsoleHandler struct {
	workspaces    WorkspaceFactory
	shells        *shell.Registry
	pages         *Pages
	logger        *zap.Logger
	bootstrapWait time.Duration
	pollInterval  time.Duration
	loginLimiter  *middleware.RateLimiter
}

func NewConsoleHandler(workspaces WorkspaceFactory, shells *shell.Registry, pages *Pages, logger *zap.Logger, pollInterval time.Duration) *ConsoleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleHandler{
		workspaces:    workspaces,
		shells:        shells,
		pages:         pages,
		logger:        logger,
		bootstrapWait: 3 * time.Second,
		pollInterval:  pollInterval,
	}
}

// LimitLogins throttles login attempts per client IP.
func (h *ConsoleHandler) LimitLogins(rl *middleware.RateLimiter) {
	h.loginLimiter = rl
}

// Routes mounts the console pages. Expects middleware.ClientID upstream.
func (h *ConsoleHandler) Routes(r chi.Router) {
	r.Get(shell.PathLogin, h.LoginPage)
	if h.loginLimiter != nil {
		r.With(middleware.RateLimit(h.loginLimiter)).Post(shell.PathLogin, h.Login)
	} else {
		r.Post(shell.PathLogin, h.Login)
	}
	r.Post("/logout", h.Logout)

	r.Post(shell.PathLeads, h.CreateLead)
	r.Post(shell.PathLeads+"/{id}", h.UpdateLead)
	r.Post(shell.PathLeads+"/{id}/delete", h.DeleteLead)
	r.Post(shell.PathLeads+"/{id}/interaction", h.AddInteraction)

	r.Get("/*", h.Navigate)
}

func (h *ConsoleHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.page(w, http.StatusOK, "login", pageData{Title: "Login"})
}

func (h *ConsoleHandler) Login(w http.ResponseWriter, r *http.Request) {
	clientID := middleware.ClientIDFrom(r.Context())
	ws := h.workspaces(clientID)

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if _, err := ws.Sessions.Login(r.Context(), username, password); err != nil {
		status := http.StatusBadGateway
		msg := "Login failed"
		var apiErr *crm.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
			if apiErr.Detail != "" {
				msg = apiErr.Detail
			}
		}
		h.logger.Info("login rejected", zap.String("username", username), zap.Error(err))
		h.page(w, status, "login", pageData{Title: "Login", Error: msg, Data: username})
		return
	}

	// next page load bootstraps a fresh shell against the new token
	h.shells.Forget(clientID)
	http.Redirect(w, r, shell.PathDashboard, http.StatusSeeOther)
}

func (h *ConsoleHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clientID := middleware.ClientIDFrom(r.Context())
	h.workspaces(clientID).Sessions.Logout(r.Context())
	h.shells.Forget(clientID)
	http.Redirect(w, r, shell.PathLogin, http.StatusSeeOther)
}

// Navigate serves every GET outside /login through the shell.
func (h *ConsoleHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	view, ws, sh, ok := h.authorize(w, r, r.URL.Path)
	if !ok {
		return
	}

	switch view {
	case shell.ViewDashboard:
		h.dashboard(w, r, ws, sh)
	case shell.ViewLeads:
		h.leads(w, r, ws, sh)
	case shell.ViewLead:
		h.lead(w, r, ws, sh, strings.TrimPrefix(strings.TrimSuffix(r.URL.Path, "/"), shell.PathLeads+"/"))
	case shell.ViewLogin:
		h.LoginPage(w, r)
	}
}

// authorize runs a path through the client's shell and the view guard.
// When it returns false the response has already been written.
func (h *ConsoleHandler) authorize(w http.ResponseWriter, r *http.Request, path string) (string, Workspace, *shell.Shell, bool) {
	clientID := middleware.ClientIDFrom(r.Context())
	ws := h.workspaces(clientID)

	sh, created := h.shells.Get(clientID, func() shell.Authenticator { return ws.Sessions })
	if created {
		h.logger.Debug("application load", zap.String("client_id", clientID))
	}
	sh.Start(context.WithoutCancel(r.Context()))

	waitCtx, cancel := context.WithTimeout(r.Context(), h.bootstrapWait)
	sh.Wait(waitCtx)
	cancel()

	decision := sh.Resolve(path)
	if decision.Kind == shell.Render && decision.View != shell.ViewLogin {
		decision = shell.NewGuard(ws.Sessions).Check(r.Context(), decision.View)
	}

	switch decision.Kind {
	case shell.Placeholder:
		h.page(w, http.StatusOK, "loading", pageData{Title: "Loading", Refresh: 1})
		return "", ws, sh, false
	case shell.Redirect:
		http.Redirect(w, r, decision.Target, http.StatusFound)
		return "", ws, sh, false
	}
	return decision.View, ws, sh, true
}

// dashboard renders one refresh. A failed refresh falls back to the last
// snapshot of this load; with none, the error view is shown.
func (h *ConsoleHandler) dashboard(w http.ResponseWriter, r *http.Request, ws Workspace, sh *shell.Shell) {
	assignedTo := r.URL.Query().Get("assigned_to")
	stats, err := usecase.LoadDashboard(r.Context(), ws.Leads, assignedTo)
	if err != nil {
		h.logger.Warn("dashboard refresh failed", zap.String("assigned_to", assignedTo), zap.Error(err))
		middleware.RecordDashboardPoll("failed")
		stats = sh.LastDashboard(assignedTo)
	} else {
		middleware.RecordDashboardPoll("ok")
		sh.KeepDashboard(assignedTo, stats)
	}

	data := h.chrome(r, sh, "Dashboard", shell.ViewDashboard)
	data.Refresh = int(h.pollInterval.Seconds())
	if stats != nil {
		data.Data = stats
	}
	h.page(w, http.StatusOK, "dashboard", data)
}

type leadsView struct {
	Query entity.LeadQuery
	List  *entity.LeadList
}

func (h *ConsoleHandler) leads(w http.ResponseWriter, r *http.Request, ws Workspace, sh *shell.Shell) {
	query := entity.LeadQueryFromValues(r.URL.Query())
	data := h.chrome(r, sh, "Leads", shell.ViewLeads)

	list, err := ws.Leads.List(r.Context(), query)
	if err != nil {
		h.logger.Warn("list leads", zap.Error(err))
		data.Error = usecase.Message(err)
	}
	data.Data = leadsView{Query: query, List: list}
	h.page(w, http.StatusOK, "leads", data)
}

func (h *ConsoleHandler) lead(w http.ResponseWriter, r *http.Request, ws Workspace, sh *shell.Shell, id string) {
	lead, err := ws.Leads.Get(r.Context(), id)
	if crm.IsNotFound(err) {
		h.logger.Info("lead not found", zap.String("lead_id", id))
		data := h.chrome(r, sh, "Lead not found", shell.ViewLeads)
		data.Error = usecase.Message(err)
		data.Data = shell.PathLeads
		h.page(w, http.StatusNotFound, "error", data)
		return
	}
	if err != nil {
		h.fail(w, r, sh, err, shell.PathLeads)
		return
	}
	data := h.chrome(r, sh, lead.CompanyName, shell.ViewLeads)
	data.Data = lead
	h.page(w, http.StatusOK, "lead", data)
}

func (h *ConsoleHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	_, ws, sh, ok := h.authorize(w, r, shell.PathLeads)
	if !ok {
		return
	}

	input, err := leadInputFromForm(r)
	if err != nil {
		h.fail(w, r, sh, err, shell.PathLeads)
		return
	}

	lead, err := ws.Leads.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, sh, err, shell.PathLeads)
		return
	}
	http.Redirect(w, r, shell.PathLeads+"/"+lead.ID, http.StatusSeeOther)
}

func (h *ConsoleHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	back := shell.PathLeads + "/" + id
	_, ws, sh, ok := h.authorize(w, r, back)
	if !ok {
		return
	}

	input, err := leadInputFromForm(r)
	if err != nil {
		h.fail(w, r, sh, err, back)
		return
	}

	if _, err := ws.Leads.Update(r.Context(), id, input); err != nil {
		h.fail(w, r, sh, err, back)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *ConsoleHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, ws, sh, ok := h.authorize(w, r, shell.PathLeads+"/"+id)
	if !ok {
		return
	}

	if _, err := ws.Leads.Delete(r.Context(), id); err != nil {
		h.fail(w, r, sh, err, shell.PathLeads+"/"+id)
		return
	}
	http.Redirect(w, r, shell.PathLeads, http.StatusSeeOther)
}

func (h *ConsoleHandler) AddInteraction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	back := shell.PathLeads + "/" + id
	_, ws, sh, ok := h.authorize(w, r, back)
	if !ok {
		return
	}

	action := strings.TrimSpace(r.FormValue("action"))
	if action == "" {
		h.fail(w, r, sh, errors.New("action is required"), back)
		return
	}

	if _, err := ws.Leads.AddInteraction(r.Context(), id, action, strings.TrimSpace(r.FormValue("notes"))); err != nil {
		h.fail(w, r, sh, err, back)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// fail renders the error page. Backend messages are passed through;
// the caller decides nothing else about the failure.
func (h *ConsoleHandler) fail(w http.ResponseWriter, r *http.Request, sh *shell.Shell, err error, back string) {
	status := http.StatusBadRequest
	msg := err.Error()

	var apiErr *crm.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.StatusCode
		msg = usecase.Message(err)
	case crm.IsTransport(err):
		status = http.StatusBadGateway
		msg = usecase.Message(err)
	}

	h.logger.Warn("console action failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.RequestIDFrom(r.Context())),
		zap.Error(err),
	)

	data := h.chrome(r, sh, "Error", "")
	data.Error = msg
	data.Data = back
	h.page(w, status, "error", data)
}

func (h *ConsoleHandler) chrome(r *http.Request, sh *shell.Shell, title, active string) pageData {
	data := pageData{Title: title, Nav: true, Active: active}
	if id := sh.Identity(); id != nil {
		data.Founder = id.Founder
	}
	return data
}

func (h *ConsoleHandler) page(w http.ResponseWriter, status int, page string, data pageData) {
	if err := h.pages.render(w, status, page, data); err != nil {
		h.logger.Error("render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func leadInputFromForm(r *http.Request) (entity.LeadInput, error) {
	if err := r.ParseForm(); err != nil {
		return entity.LeadInput{}, err
	}

	input := entity.LeadInput{
		CompanyName:  strings.TrimSpace(r.PostForm.Get("company_name")),
		Sector:       strings.TrimSpace(r.PostForm.Get("sector")),
		Status:       strings.TrimSpace(r.PostForm.Get("status")),
		Email:        strings.TrimSpace(r.PostForm.Get("email")),
		MobileNumber: strings.TrimSpace(r.PostForm.Get("mobile_number")),
		Notes:        strings.TrimSpace(r.PostForm.Get("notes")),
		AssignedTo:   strings.TrimSpace(r.PostForm.Get("assigned_to")),
	}

	if raw := strings.TrimSpace(r.PostForm.Get("next_follow_up_date")); raw != "" {
		ts, err := entity.ParseTimestamp(raw)
		if err != nil {
			return entity.LeadInput{}, err
		}
		input.NextFollowUpDate = &ts
	}
	return input, nil
}
