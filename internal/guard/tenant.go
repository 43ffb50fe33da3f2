package guard

import (
	"context"

	"go.uber.org/zap"

	"invoicer/internal/routing"
	"invoicer/internal/tenant"
)

// TenantGuard reconciles the URL's org segment with the tenant store. It
// re-checks before redirecting: a mismatch runs ResolveDefault, which is a
// cached no-op when a tenant is already selected, and only then corrects the
// URL. Failed resolutions count as "no tenant"; the error is logged only.
type TenantGuard struct {
	log *zap.Logger
	obs Observer
}

func NewTenantGuard(log *zap.Logger, obs Observer) *TenantGuard {
	if log == nil {
		log = zap.NewNop()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &TenantGuard{log: log, obs: obs}
}

// Run returns a terminal decision for an authenticated navigation to path.
func (g *TenantGuard) Run(ctx context.Context, store *tenant.Store, path string) routing.Decision {
	view := viewOf(store.Snapshot())
	d := routing.Decide(routing.AuthAuthenticated, view, path)
	if d.Action != routing.ActionResolve {
		return d
	}

	st, outcome := store.ResolveDefault(ctx)
	g.obs.ObserveResolution(string(outcome))
	if outcome == tenant.OutcomeFailed {
		g.log.Warn("tenant resolution failed", zap.String("path", path), zap.String("error", st.Error))
	}

	view = viewOf(st)
	view.Attempted = true
	return routing.Decide(routing.AuthAuthenticated, view, path)
}

func viewOf(st tenant.State) routing.TenantView {
	view := routing.TenantView{Known: true, Checked: st.HasCheckedOrganization}
	if st.Current != nil {
		view.CurrentID = st.Current.ID
	}
	return view
}
