package http

import (
	"mime"
	"net/http"
	"strings"

	"invoicer/internal/api"
	"invoicer/internal/notify"
	"invoicer/internal/routing"
	"invoicer/internal/workspace"
)

const (
	defaultLanguage = "fr"
	defaultCurrency = "XOF"
)

func (s *Server) handleQuickSetupForm(w http.ResponseWriter, r *http.Request) {
	s.writePage(w, r, http.StatusOK, "quicksetup", map[string]any{
		"defaults": api.CreateOrganizationInput{Language: defaultLanguage, Currency: defaultCurrency},
	})
}

// handleQuickSetupCreate creates the caller's organization, selects it and
// sends the browser into its workspace.
func (s *Server) handleQuickSetupCreate(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace.FromContext(r.Context())
	if !ok || !s.shell.RequireAuth(r.Context(), ws) {
		http.Redirect(w, r, s.loginURL(r), http.StatusSeeOther)
		return
	}

	in, err := decodeOrganizationInput(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if fields := validateOrganizationInput(in); len(fields) > 0 {
		s.writeJSON(w, http.StatusUnprocessableEntity, validationBody{Error: "Validation Error", Fields: fields})
		return
	}

	org, err := s.api.CreateTenant(r.Context(), in)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	ws.Tenant.SetCurrent(org)
	ws.Notices.Notify(notify.LevelSuccess, "Organization created", org.Name)
	http.Redirect(w, r, routing.WorkspaceURL(org.ID, ""), http.StatusSeeOther)
}

// decodeOrganizationInput accepts a JSON body or a posted form.
func decodeOrganizationInput(w http.ResponseWriter, r *http.Request) (api.CreateOrganizationInput, error) {
	var in api.CreateOrganizationInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decodeJSON(w, r, &in); err != nil {
			return in, err
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return in, err
		}
		in = api.CreateOrganizationInput{
			Name:     r.PostForm.Get("name"),
			Domain:   r.PostForm.Get("domain"),
			Address:  r.PostForm.Get("address"),
			Language: r.PostForm.Get("language"),
			Currency: r.PostForm.Get("currency"),
		}
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Language == "" {
		in.Language = defaultLanguage
	}
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}
	return in, nil
}

func validateOrganizationInput(in api.CreateOrganizationInput) map[string][]string {
	fields := map[string][]string{}
	if in.Name == "" {
		fields["name"] = append(fields["name"], "name should not be empty")
	}
	if in.Language != "fr" && in.Language != "en" {
		fields["language"] = append(fields["language"], "language must be one of the following values: fr, en")
	}
	return fields
}
