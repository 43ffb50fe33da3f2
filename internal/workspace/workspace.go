// Package workspace holds the per-browser state containers and keeps their
// persisted subset across reloads.
package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"invoicer/internal/notify"
	"invoicer/internal/session"
	"invoicer/internal/tenant"
	"invoicer/internal/uiphase"
)

// Deps are shared by every workspace. Profiler and Resolver read the
// browser credentials off the call context.
type Deps struct {
	Profiler    session.Profiler
	Resolver    tenant.Resolver
	Logger      *zap.Logger
	NoticeLimit int
}

// Workspace is the state of one browser session.
type Workspace struct {
	ID      uuid.UUID
	Key     string
	Session *session.Store
	Tenant  *tenant.Store
	Phase   *uiphase.Store
	Notices *notify.Queue

	hydrate  sync.Once
	lastSeen atomic.Int64
}

func New(key string, deps Deps) *Workspace {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.New()
	log = log.With(zap.String("workspace", id.String()))
	return &Workspace{
		ID:      id,
		Key:     key,
		Session: session.NewStore(deps.Profiler, log),
		Tenant:  tenant.NewStore(deps.Resolver, log),
		Phase:   uiphase.NewStore(),
		Notices: notify.NewQueue(deps.NoticeLimit),
	}
}

// Snapshot is the persisted subset of a workspace.
type Snapshot struct {
	User                   *session.Profile     `json:"user"`
	Authenticated          bool                 `json:"authenticated"`
	Checked                bool                 `json:"checked"`
	CurrentOrganization    *tenant.Organization `json:"currentOrganization"`
	HasCheckedOrganization bool                 `json:"hasCheckedOrganization"`
}

func (w *Workspace) Snapshot() Snapshot {
	s := w.Session.Snapshot()
	t := w.Tenant.Snapshot()
	return Snapshot{
		User:                   s.User,
		Authenticated:          s.Authenticated,
		Checked:                s.Checked,
		CurrentOrganization:    t.Current,
		HasCheckedOrganization: t.HasCheckedOrganization,
	}
}

func (w *Workspace) Restore(s Snapshot) {
	w.Session.Restore(s.Authenticated, s.Checked, s.User)
	w.Tenant.Restore(s.CurrentOrganization, s.HasCheckedOrganization)
}

// Touch records activity at now.
func (w *Workspace) Touch(now time.Time) {
	w.lastSeen.Store(now.UnixNano())
}

func (w *Workspace) LastSeen() time.Time {
	return time.Unix(0, w.lastSeen.Load())
}

// KeyFromCookie derives a workspace key from the auth cookie value. The raw
// value never leaves the process.
func KeyFromCookie(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

type contextKey struct{}

func WithWorkspace(ctx context.Context, w *Workspace) context.Context {
	return context.WithValue(ctx, contextKey{}, w)
}

// FromContext returns the workspace attached to ctx, if any.
func FromContext(ctx context.Context) (*Workspace, bool) {
	w, ok := ctx.Value(contextKey{}).(*Workspace)
	return w, ok && w != nil
}
