package workspace

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry owns the live workspaces, keyed by KeyFromCookie.
type Registry struct {
	mu        sync.Mutex
	items     map[string]*Workspace
	deps      Deps
	persister Persister
	idleTTL   time.Duration
	now       func() time.Time
	log       *zap.Logger
}

func NewRegistry(deps Deps, persister Persister, idleTTL time.Duration) *Registry {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if persister == nil {
		persister = NopPersister{}
	}
	return &Registry{
		items:     make(map[string]*Workspace),
		deps:      deps,
		persister: persister,
		idleTTL:   idleTTL,
		now:       time.Now,
		log:       log,
	}
}

// Acquire returns the workspace for key, creating it on first use. A new
// workspace is hydrated once from the persister; a load failure leaves it
// fresh.
func (r *Registry) Acquire(req *http.Request, key string) *Workspace {
	r.mu.Lock()
	ws, ok := r.items[key]
	if !ok {
		ws = New(key, r.deps)
		r.items[key] = ws
	}
	ws.Touch(r.now())
	r.mu.Unlock()

	ws.hydrate.Do(func() {
		snap, found, err := r.persister.Load(req, key)
		if err != nil {
			r.log.Debug("ignoring persisted workspace state", zap.Error(err))
			return
		}
		if found {
			ws.Restore(snap)
		}
	})
	return ws
}

// Save persists the workspace's current snapshot.
func (r *Registry) Save(w http.ResponseWriter, req *http.Request, ws *Workspace) error {
	return r.persister.Save(w, req, ws.Key, ws.Snapshot())
}

// Forget drops the workspace and its persisted state.
func (r *Registry) Forget(w http.ResponseWriter, req *http.Request, ws *Workspace) error {
	r.mu.Lock()
	if cur, ok := r.items[ws.Key]; ok && cur == ws {
		delete(r.items, ws.Key)
	}
	r.mu.Unlock()
	return r.persister.Forget(w, req, ws.Key)
}

// Sweep evicts workspaces idle for longer than the idle TTL. Their persisted
// state survives and is loaded again on the next request.
func (r *Registry) Sweep(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for key, ws := range r.items {
		if ws.LastSeen().Before(cutoff) {
			delete(r.items, key)
			evicted++
		}
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// RunSweeper sweeps every interval until ctx ends.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				r.log.Debug("evicted idle workspaces", zap.Int("count", n))
			}
			if p, ok := r.persister.(Purger); ok {
				if n, err := p.Purge(ctx); err != nil {
					r.log.Warn("purging persisted workspace state failed", zap.Error(err))
				} else if n > 0 {
					r.log.Debug("purged expired workspace state", zap.Int64("count", n))
				}
			}
		}
	}
}
