package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"invoicer/internal/api"
	"invoicer/internal/notify"
	"invoicer/internal/routing"
	"invoicer/internal/session"
	"invoicer/internal/tenant"
	"invoicer/internal/workspace"
)

const maxBodyBytes = 1 << 20

// pageView is the JSON view model every page renders from.
type pageView struct {
	Page         string               `json:"page"`
	User         *session.Profile     `json:"user,omitempty"`
	Organization *tenant.Organization `json:"organization,omitempty"`
	Data         any                  `json:"data,omitempty"`
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, code int, page string, data any) {
	view := pageView{Page: page, Data: data}
	if ws, ok := workspace.FromContext(r.Context()); ok {
		view.User = ws.Session.Snapshot().User
		view.Organization = ws.Tenant.Snapshot().Current
	}
	s.writeJSON(w, code, view)
}

func (s *Server) notice(r *http.Request, level notify.Level, title, message string) {
	if ws, ok := workspace.FromContext(r.Context()); ok {
		ws.Notices.Notify(level, title, message)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// handleAppRoot is never reached with a workspace: the shell always
// redirects /app.
func (s *Server) handleAppRoot(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}

var dashboardSections = []string{"/clients", "/items", "/taxes", "/invoices", "/settings", "/invitations"}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	links := make(map[string]string, len(dashboardSections))
	for _, section := range dashboardSections {
		links[strings.TrimPrefix(section, "/")] = routing.BuildURLWithOrg(section, orgID)
	}
	s.writePage(w, r, http.StatusOK, "dashboard", map[string]any{"links": links})
}

func listRecords[T, In any](s *Server, page string, col api.Collection[T, In]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := col.List(r.Context(), chi.URLParam(r, "orgID"))
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		if records == nil {
			records = []T{}
		}
		s.writePage(w, r, http.StatusOK, page, records)
	}
}

func getRecord[T, In any](s *Server, page string, col api.Collection[T, In]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := col.Get(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "id"))
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		s.writePage(w, r, http.StatusOK, page, record)
	}
}

// createRecord decodes the input, lets scope stamp the organization onto it
// and creates the record. Validation errors come back inline.
func createRecord[T, In any](s *Server, col api.Collection[T, In], scope func(orgID string, in *In)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := chi.URLParam(r, "orgID")
		var in In
		if err := decodeJSON(w, r, &in); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		if scope != nil {
			scope(orgID, &in)
		}

		record, err := col.Create(r.Context(), orgID, in)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		s.notice(r, notify.LevelSuccess, "Saved", "")
		s.writeJSON(w, http.StatusCreated, record)
	}
}

func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")
	doc, err := s.api.InvoicePDF(r.Context(), chi.URLParam(r, "orgID"), invoiceID)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	s.writeDocument(w, doc, "invoice-"+invoiceID+".pdf")
}

func (s *Server) handleSendInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.api.SendInvoice(r.Context(), chi.URLParam(r, "orgID"), chi.URLParam(r, "id")); err != nil {
		s.apiError(w, r, err)
		return
	}
	s.notice(r, notify.LevelSuccess, "Invoice sent", "")
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.api.GetMailingConfig(r.Context(), chi.URLParam(r, "orgID"))
	var mailing *api.MailingConfig
	switch {
	case err == nil:
		mailing = &cfg
	case errors.Is(err, api.ErrNotFound):
	default:
		s.apiError(w, r, err)
		return
	}
	s.writePage(w, r, http.StatusOK, "settings", map[string]any{"mailingConfig": mailing})
}

func (s *Server) handleSaveMailing(w http.ResponseWriter, r *http.Request) {
	var in api.MailingConfigInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg, err := s.api.SaveMailingConfig(r.Context(), chi.URLParam(r, "orgID"), in)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	s.notice(r, notify.LevelSuccess, "Mailing configuration saved", "")
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleTestMailingConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.api.TestMailingConnection(r.Context(), chi.URLParam(r, "orgID")); err != nil {
		s.apiError(w, r, err)
		return
	}
	s.notice(r, notify.LevelSuccess, "Connection successful", "")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSendTestEmail(w http.ResponseWriter, r *http.Request) {
	if err := s.api.SendTestEmail(r.Context(), chi.URLParam(r, "orgID")); err != nil {
		s.apiError(w, r, err)
		return
	}
	s.notice(r, notify.LevelSuccess, "Test email sent", "")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) writeDocument(w http.ResponseWriter, doc api.Document, filename string) {
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.Header().Set("Content-Disposition", buildContentDisposition(filename))
	w.Header().Set("Cache-Control", "no-store")

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

func buildContentDisposition(filename string) string {
	safeName := sanitizeFilename(filename)
	base := mime.FormatMediaType("attachment", map[string]string{"filename": safeName})
	escaped := url.PathEscape(filename)
	if escaped == "" {
		escaped = url.PathEscape(safeName)
	}
	return fmt.Sprintf("%s; filename*=UTF-8''%s", base, escaped)
}

func sanitizeFilename(name string) string {
	trimmed := strings.TrimSpace(name)
	sanitized := strings.Map(func(r rune) rune {
		if r == '\\' || r == '"' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, trimmed)
	if sanitized == "" {
		return "download"
	}
	return sanitized
}
