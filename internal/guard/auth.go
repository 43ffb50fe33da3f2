// Package guard gates page rendering on the session and tenant stores. Both
// guards drive routing.Decide with full store state.
package guard

import (
	"context"

	"go.uber.org/zap"

	"invoicer/internal/routing"
	"invoicer/internal/session"
)

// AuthState is the auth guard's view of a navigation.
type AuthState int

const (
	AuthUnchecked AuthState = iota
	AuthChecking
	AuthAuthenticated
	AuthUnauthenticated
)

func (s AuthState) String() string {
	switch s {
	case AuthUnchecked:
		return "unchecked"
	case AuthChecking:
		return "checking"
	case AuthAuthenticated:
		return "authenticated"
	case AuthUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// View maps the guard state onto the decision input.
func (s AuthState) View() routing.AuthView {
	switch s {
	case AuthAuthenticated:
		return routing.AuthAuthenticated
	case AuthUnauthenticated:
		return routing.AuthUnauthenticated
	default:
		return routing.AuthUnknown
	}
}

// Observer receives guard outcomes. *metrics.Metrics implements it.
type Observer interface {
	ObserveDecision(stage string, d routing.Decision)
	ObserveResolution(outcome string)
	ObserveSessionCheck(authenticated bool)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(string, routing.Decision) {}
func (nopObserver) ObserveResolution(string)                 {}
func (nopObserver) ObserveSessionCheck(bool)                 {}

// AuthGuard runs the session check once per unchecked session and joins a
// check that is already in flight. It never retries a failed check within a
// page load.
type AuthGuard struct {
	log *zap.Logger
	obs Observer
}

func NewAuthGuard(log *zap.Logger, obs Observer) *AuthGuard {
	if log == nil {
		log = zap.NewNop()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &AuthGuard{log: log, obs: obs}
}

// Run settles the auth state for this navigation. A failed check stays
// recorded as checked and unauthenticated; it is only forgotten when the
// next page load enters the guard, which then checks once more.
func (g *AuthGuard) Run(ctx context.Context, store *session.Store) AuthState {
	if classify(store.Snapshot()) == AuthUnauthenticated {
		store.ForgetFailedCheck()
	}

	st := store.Snapshot()
	switch classify(st) {
	case AuthUnchecked:
		st = store.Check(ctx)
		g.obs.ObserveSessionCheck(st.Authenticated)
	case AuthChecking:
		st = store.Wait(ctx)
	}

	state := classify(st)
	if state != AuthAuthenticated {
		// Includes a check superseded by a concurrent logout.
		g.log.Debug("session is not authenticated")
		state = AuthUnauthenticated
	}
	return state
}

func classify(st session.State) AuthState {
	switch {
	case !st.Checked && st.Loading:
		return AuthChecking
	case !st.Checked:
		return AuthUnchecked
	case st.Authenticated:
		return AuthAuthenticated
	default:
		return AuthUnauthenticated
	}
}
