package shell

import (
	"sync"
	"time"
)

// Registry keeps one Shell per browser client. A client's first request
// is its application load; Forget makes the next request a fresh load.
type Registry struct {
	mu     sync.Mutex
	shells map[string]*Shell
}

func NewRegistry() *Registry {
	return &Registry{shells: make(map[string]*Shell)}
}

// Get returns the client's shell, creating it with newAuth when absent.
// created reports whether this call made it.
func (r *Registry) Get(clientID string, newAuth func() Authenticator) (sh *Shell, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sh, ok := r.shells[clientID]; ok {
		sh.touch(time.Now())
		return sh, false
	}
	sh = New(newAuth())
	r.shells[clientID] = sh
	return sh, true
}

func (r *Registry) Forget(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shells, clientID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shells)
}

// Sweep drops shells idle for longer than maxIdle and returns how many.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, sh := range r.shells {
		if sh.idleSince(now) > maxIdle {
			delete(r.shells, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until stop is closed.
func (r *Registry) RunSweeper(interval, maxIdle time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}
