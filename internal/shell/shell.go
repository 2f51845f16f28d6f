package shell

import (
	"context"
	"sync"
	"time"

	"github.com/xavierca1/route2rise-console/internal/entity"
)

type State string

const (
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Authenticator is the session surface the shell and guards rely on.
type Authenticator interface {
	IsAuthenticated(ctx context.Context) bool
	Verify(ctx context.Context) *entity.Identity
}

// Shell decides, once per application load, whether the session is
// authenticated, and routes every path from that decision.
type Shell struct {
	auth Authenticator

	once     sync.Once
	ready    chan struct{}
	mu       sync.RWMutex
	state    State
	identity *entity.Identity
	lastSeen time.Time

	// last dashboard rendered for this load per assignee filter, shown
	// again if a refresh of the same view fails
	dashboards map[string]*entity.DashboardStats
}

func New(auth Authenticator) *Shell {
	return &Shell{
		auth:     auth,
		ready:    make(chan struct{}),
		state:    StateLoading,
		lastSeen: time.Now(),

		dashboards: make(map[string]*entity.DashboardStats),
	}
}

// Start runs the bootstrap in the background. Only the first call does
// anything.
func (s *Shell) Start(ctx context.Context) {
	s.once.Do(func() {
		go s.bootstrap(ctx)
	})
}

// Bootstrap runs the load-time check and waits for it. Only the first
// call (of Start or Bootstrap) triggers it.
func (s *Shell) Bootstrap(ctx context.Context) State {
	s.Start(ctx)
	<-s.ready
	return s.State()
}

// Wait blocks until the bootstrap finishes or ctx ends, and reports the
// state at that point.
func (s *Shell) Wait(ctx context.Context) State {
	select {
	case <-s.ready:
	case <-ctx.Done():
	}
	return s.State()
}

// bootstrap skips the network when nothing is stored locally; otherwise
// the backend has the final word.
func (s *Shell) bootstrap(ctx context.Context) {
	defer close(s.ready)

	if !s.auth.IsAuthenticated(ctx) {
		s.set(StateUnauthenticated, nil)
		return
	}

	if identity := s.auth.Verify(ctx); identity != nil {
		s.set(StateAuthenticated, identity)
		return
	}
	s.set(StateUnauthenticated, nil)
}

func (s *Shell) set(state State, identity *entity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.identity = identity
}

func (s *Shell) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Identity is the backend-confirmed identity, nil unless authenticated.
func (s *Shell) Identity() *entity.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Resolve routes path. The login path is served in every state,
// authenticated included.
func (s *Shell) Resolve(path string) Decision {
	if path == PathLogin {
		return render(ViewLogin)
	}

	switch s.State() {
	case StateLoading:
		return Decision{Kind: Placeholder}
	case StateUnauthenticated:
		return redirect(PathLogin)
	}

	if view, ok := matchView(path); ok {
		return render(view)
	}
	return redirect(PathDashboard)
}

// LastDashboard returns the last snapshot kept for this load and
// assignee filter ("" is the unfiltered dashboard).
func (s *Shell) LastDashboard(assignedTo string) *entity.DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dashboards[assignedTo]
}

func (s *Shell) KeepDashboard(assignedTo string, stats *entity.DashboardStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboards[assignedTo] = stats
}

func (s *Shell) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Shell) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastSeen)
}
