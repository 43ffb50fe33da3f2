package http

import (
	"errors"
	"net/http"

	"invoicer/internal/api"
	"invoicer/internal/invitation"
	"invoicer/internal/notify"
	"invoicer/internal/workspace"
)

// handleInvitation shows what an invitation link offers. Only the edge
// middleware runs in front of it.
func (s *Server) handleInvitation(w http.ResponseWriter, r *http.Request) {
	page := invitation.Parse(r.URL.Query())
	s.writePage(w, r, http.StatusOK, "invitation", page)
}

func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	page := invitation.Parse(r.URL.Query())
	if page.Status != invitation.StatusValid {
		s.writePage(w, r, http.StatusBadRequest, "invitation", page)
		return
	}
	ws, ok := workspace.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, s.loginURL(r), http.StatusSeeOther)
		return
	}

	if err := s.api.AcceptInvitation(r.Context(), page.Token); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.apiError(w, r, err)
			return
		}
		page.Status = invitation.StatusError
		page.Message = invitation.MsgAcceptFailed
		ws.Notices.Notify(notify.LevelError, "Error", "Failed to accept invitation")
		s.writePage(w, r, http.StatusBadGateway, "invitation", page)
		return
	}

	// Membership changed; resolve the default tenant again on the next
	// navigation.
	ws.Tenant.Clear()
	page.Status = invitation.StatusAccepted
	ws.Notices.Notify(notify.LevelSuccess, "Invitation Accepted", "You have successfully joined the organization!")
	s.writePage(w, r, http.StatusOK, "invitation", page)
}
