package guard

import (
	"context"

	"go.uber.org/zap"

	"invoicer/internal/routing"
	"invoicer/internal/uiphase"
	"invoicer/internal/workspace"
)

const stageGuard = "guard"

// Shell is the page shell: auth guard, then tenant guard, with the splash
// phase following along.
type Shell struct {
	auth   *AuthGuard
	tenant *TenantGuard
	obs    Observer
	log    *zap.Logger
}

func NewShell(log *zap.Logger, obs Observer) *Shell {
	if log == nil {
		log = zap.NewNop()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Shell{
		auth:   NewAuthGuard(log, obs),
		tenant: NewTenantGuard(log, obs),
		obs:    obs,
		log:    log,
	}
}

// Enter runs both guards for a navigation to path and returns the terminal
// decision. The splash is hidden only when the page is allowed to render.
func (s *Shell) Enter(ctx context.Context, ws *workspace.Workspace, path string) routing.Decision {
	// The initialisation phase belongs to a fresh workspace; every entry
	// starts at authentication.
	ws.Phase.SetLoading(true)
	ws.Phase.SetPhase(uiphase.PhaseAuthentification)
	state := s.auth.Run(ctx, ws.Session)
	if state != AuthAuthenticated {
		d := routing.Decide(state.View(), routing.TenantView{Known: true}, path)
		s.obs.ObserveDecision(stageGuard, d)
		return d
	}

	ws.Phase.SetPhase(uiphase.PhaseOrganization)
	d := s.tenant.Run(ctx, ws.Tenant, path)
	s.obs.ObserveDecision(stageGuard, d)
	if d.Action == routing.ActionAllow {
		ws.Phase.SetPhase(uiphase.PhaseFinalisation)
		ws.Phase.Finish()
	}
	if d.Action == routing.ActionRedirect {
		s.log.Debug("guard redirect",
			zap.String("path", path),
			zap.String("location", d.Location),
			zap.String("reason", string(d.Reason)),
		)
	}
	return d
}

// RequireAuth runs only the auth guard, for actions that need a session but
// no tenant.
func (s *Shell) RequireAuth(ctx context.Context, ws *workspace.Workspace) bool {
	return s.auth.Run(ctx, ws.Session) == AuthAuthenticated
}
