package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"invoicer/internal/api"
	"invoicer/internal/notify"
	"invoicer/internal/workspace"
)

// apiError turns an upstream failure into a response. Unauthorized resets
// the session so the next navigation checks again; transient failures also
// raise a notification.
func (s *Server) apiError(w http.ResponseWriter, r *http.Request, err error) {
	ws, _ := workspace.FromContext(r.Context())

	var validation *api.ValidationError
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		if ws != nil {
			ws.Session.Reset()
		}
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			http.Redirect(w, r, s.loginURL(r), http.StatusFound)
			return
		}
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "unauthorized",
			"login": s.loginURL(r),
		})
	case errors.As(err, &validation):
		s.writeJSON(w, http.StatusUnprocessableEntity, validationBody{
			Error:  validation.Message,
			Fields: validation.FieldErrors(),
		})
	case errors.Is(err, api.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	default:
		s.log.Warn("upstream request failed", zap.String("path", r.URL.Path), zap.Error(err))
		if ws != nil {
			ws.Notices.Notify(notify.LevelError, "Request failed", err.Error())
		}
		s.writeError(w, http.StatusBadGateway, err)
	}
}

type validationBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
}
