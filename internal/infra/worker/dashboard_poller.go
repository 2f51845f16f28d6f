package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/route2rise-console/internal/entity"
	"github.com/xavierca1/route2rise-console/internal/infra/http/middleware"
	"github.com/xavierca1/route2rise-console/internal/usecase"
)

const DefaultPollInterval = 30 * time.Second

var ErrAlreadyMounted = errors.New("dashboard poller already mounted")

type ViewState string

const (
	StateLoading ViewState = "loading"
	StateReady   ViewState = "ready"
	StateError   ViewState = "error"
)

// Update is what listeners receive after every finished refresh.
// Fresh is false when the refresh failed and Stats is the previous snapshot.
type Update struct {
	State ViewState
	Stats *entity.DashboardStats
	Err   error
	Fresh bool
}

type UpdateFunc func(ctx context.Context, u Update)

// DashboardPoller keeps a dashboard snapshot fresh for as long as it is
// mounted. At most one refresh is in flight: a tick that fires while one
// is still running is skipped. Unmount cancels the refresh in flight and
// results from an unmounted generation are dropped.
type DashboardPoller struct {
	fetcher    usecase.StatsFetcher
	assignedTo string
	interval   time.Duration
	logger     *zap.Logger
	listeners  []UpdateFunc

	mu         sync.Mutex
	state      ViewState
	snapshot   *entity.DashboardStats
	generation uint64
	busy       bool
	stop       context.CancelFunc
	inflight   sync.WaitGroup
	done       chan struct{}
}

type PollerOption func(*DashboardPoller)

func WithInterval(d time.Duration) PollerOption {
	return func(p *DashboardPoller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithAssignee(assignedTo string) PollerOption {
	return func(p *DashboardPoller) { p.assignedTo = assignedTo }
}

func WithListener(fn UpdateFunc) PollerOption {
	return func(p *DashboardPoller) { p.listeners = append(p.listeners, fn) }
}

func NewDashboardPoller(fetcher usecase.StatsFetcher, logger *zap.Logger, opts ...PollerOption) *DashboardPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &DashboardPoller{
		fetcher:  fetcher,
		interval: DefaultPollInterval,
		logger:   logger,
		state:    StateLoading,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mount fetches immediately and then on every interval until Unmount
// or ctx ends.
func (p *DashboardPoller) Mount(ctx context.Context) error {
	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return ErrAlreadyMounted
	}
	ctx, stop := context.WithCancel(ctx)
	p.stop = stop
	p.done = make(chan struct{})
	p.mu.Unlock()

	p.refresh(ctx)
	go p.loop(ctx)
	return nil
}

// Unmount stops the schedule, cancels any refresh in flight and waits
// for it to return. Safe to call more than once.
func (p *DashboardPoller) Unmount() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
	p.inflight.Wait()

	p.mu.Lock()
	p.stop = nil
	p.generation++
	p.mu.Unlock()
}

// Snapshot returns the current state and the last good stats, if any.
func (p *DashboardPoller) Snapshot() (ViewState, *entity.DashboardStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.snapshot
}

func (p *DashboardPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("dashboard poller stopped")
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

// refresh starts a fetch unless the previous one is still running.
func (p *DashboardPoller) refresh(ctx context.Context) {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		middleware.RecordDashboardPoll("skipped")
		p.logger.Debug("dashboard refresh still in flight, skipping tick")
		return
	}
	p.busy = true
	gen := p.generation
	p.mu.Unlock()

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()

		stats, err := usecase.LoadDashboard(ctx, p.fetcher, p.assignedTo)
		p.apply(ctx, gen, stats, err)
	}()
}

func (p *DashboardPoller) apply(ctx context.Context, gen uint64, stats *entity.DashboardStats, err error) {
	p.mu.Lock()
	p.busy = false
	if gen != p.generation || ctx.Err() != nil {
		p.mu.Unlock()
		middleware.RecordDashboardPoll("discarded")
		return
	}

	update := Update{Err: err}
	if err != nil {
		middleware.RecordDashboardPoll("failed")
		p.logger.Warn("dashboard refresh failed", zap.Error(err))
		if p.snapshot == nil {
			p.state = StateError
		}
	} else {
		middleware.RecordDashboardPoll("ok")
		p.snapshot = stats
		p.state = StateReady
		update.Fresh = true
	}
	update.State = p.state
	update.Stats = p.snapshot
	listeners := p.listeners
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, update)
	}
}
