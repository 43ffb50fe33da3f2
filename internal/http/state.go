package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"invoicer/internal/routing"
	"invoicer/internal/session"
	"invoicer/internal/tenant"
	"invoicer/internal/uiphase"
	"invoicer/internal/workspace"
)

var errNoWorkspace = errors.New("unauthenticated")

// stateView feeds the client bundle's splash screen.
type stateView struct {
	uiphase.State
	Session       session.State `json:"session"`
	Tenant        tenant.State  `json:"tenant"`
	Notifications int           `json:"notifications"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace.FromContext(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errNoWorkspace)
		return
	}
	s.writeJSON(w, http.StatusOK, stateView{
		State:         ws.Phase.Snapshot(),
		Session:       ws.Session.Snapshot(),
		Tenant:        ws.Tenant.Snapshot(),
		Notifications: len(ws.Notices.List()),
	})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace.FromContext(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errNoWorkspace)
		return
	}
	s.writeJSON(w, http.StatusOK, ws.Notices.List())
}

func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace.FromContext(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errNoWorkspace)
		return
	}
	if !ws.Notices.Dismiss(chi.URLParam(r, "id")) {
		s.writeError(w, http.StatusNotFound, errors.New("notification not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogout always clears the local session, whatever the upstream says,
// and drops the persisted state.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	target := routing.LoginURL(s.cfg.AuthClientURL, s.cfg.PublicURL+routing.AppPrefix)
	ws, ok := workspace.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	ws.Session.Logout(r.Context())
	ws.Tenant.Clear()
	skipPersistence(r.Context())
	if err := s.registry.Forget(w, r, ws); err != nil {
		s.log.Warn("dropping persisted workspace state failed", zap.Error(err))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
