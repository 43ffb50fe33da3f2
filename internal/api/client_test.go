package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/auth"
	"invoicer/internal/tenant"
)

type recordedRequest struct {
	Method string
	Path   string
	Cookie string
	Body   string
}

type fakeUpstream struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  http.HandlerFunc
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var cookie string
	if c, err := r.Cookie("connect.sid"); err == nil {
		cookie = c.Value
	}
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Cookie: cookie, Body: string(body)})
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeUpstream) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *fakeUpstream) {
	t.Helper()
	up := &fakeUpstream{handler: h}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)
	c := NewClient(Options{
		InvoiceURL: srv.URL + "/",
		AuthURL:    srv.URL + "/auth",
		Timeout:    2 * time.Second,
	})
	return c, up
}

func withCookie(value string) context.Context {
	return auth.WithCredentials(context.Background(), auth.Credentials{
		Cookie: &http.Cookie{Name: "connect.sid", Value: value},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_GetSessionProfileForwardsCookie(t *testing.T) {
	c, up := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1", "email": "a@b.c"}})
	})

	profile, err := c.GetSessionProfile(withCookie("s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, "a@b.c", profile.Email)

	req := up.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/auth/me", req.Path)
	assert.Equal(t, "s3cret", req.Cookie)
}

func TestClient_GetSessionProfileFlatBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "u2", "email": "x@y.z"})
	})

	profile, err := c.GetSessionProfile(withCookie("s"))
	require.NoError(t, err)
	assert.Equal(t, "u2", profile.ID)
}

func TestClient_UnauthorizedMapsToSentinel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
	})

	_, err := c.GetSessionProfile(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, IsTransient(err))
}

func TestClient_GetDefaultTenant(t *testing.T) {
	t.Run("unwraps data envelope", func(t *testing.T) {
		c, up := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": "org1", "name": "Acme"}})
		})
		org, err := c.GetDefaultTenant(withCookie("s"))
		require.NoError(t, err)
		assert.Equal(t, "org1", org.ID)
		assert.Equal(t, "Acme", org.Name)
		assert.Equal(t, "/organization/default", up.last(t).Path)
	})

	t.Run("falls back to organizationId", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"organizationId": "org9"})
		})
		org, err := c.GetDefaultTenant(withCookie("s"))
		require.NoError(t, err)
		assert.Equal(t, "org9", org.ID)
	})

	t.Run("404 is not found", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "no organization"})
		})
		_, err := c.GetDefaultTenant(withCookie("s"))
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("empty body is not found", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{})
		})
		_, err := c.GetDefaultTenant(withCookie("s"))
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("5xx is transient", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadGateway, map[string]any{"message": "upstream down"})
		})
		_, err := c.GetDefaultTenant(withCookie("s"))
		require.Error(t, err)
		var te *TransientError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, http.StatusBadGateway, te.Status)
		assert.Contains(t, te.Error(), "upstream down")
	})
}

func TestClient_CreateTenant(t *testing.T) {
	c, up := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"org":      map[string]any{"id": "org7", "name": "New Co"},
			"userRole": "Owner",
		})
	})

	org, err := c.CreateTenant(withCookie("s"), CreateOrganizationInput{Name: "New Co", Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "org7", org.ID)
	assert.Equal(t, tenant.RoleOwner, org.CallerRole)

	req := up.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/organizations", req.Path)
	assert.JSONEq(t, `{"name":"New Co","currency":"EUR"}`, req.Body)
}

func TestClient_ValidationErrors(t *testing.T) {
	t.Run("nested details", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": "Validation failed",
				"details": map[string]any{"message": []string{"name should not be empty", "rate must be a number"}},
			})
		})
		_, err := c.Taxes().Create(withCookie("s"), "org1", TaxInput{OrganizationID: "org1"})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "Validation failed", ve.Message)
		assert.Equal(t, map[string][]string{
			"name": {"name should not be empty"},
			"rate": {"rate must be a number"},
		}, ve.FieldErrors())
	})

	t.Run("top-level list", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": []string{"displayName should not be empty"}})
		})
		_, err := c.Customers().Create(withCookie("s"), "org1", CustomerInput{OrganizationID: "org1"})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.FieldErrors(), "displayName")
	})

	detailed := map[string]any{
		"message": "Request failed",
		"details": map[string]any{"message": []string{"organization does not exist"}},
	}

	t.Run("404 with details is not found", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, detailed)
		})
		_, err := c.GetDefaultTenant(withCookie("s"))
		assert.True(t, errors.Is(err, ErrNotFound))
		var ve *ValidationError
		assert.False(t, errors.As(err, &ve))
	})

	t.Run("5xx with details is transient", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, detailed)
		})
		_, err := c.Taxes().Create(withCookie("s"), "org1", TaxInput{OrganizationID: "org1"})
		assert.True(t, IsTransient(err))
	})
}

func TestCollection_Paths(t *testing.T) {
	c, up := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && len(r.URL.Path) > 0 && r.URL.Path[len(r.URL.Path)-1] == 's' {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "rec1"})
	})
	ctx := withCookie("s")

	_, err := c.Customers().List(ctx, "org1")
	require.NoError(t, err)
	assert.Equal(t, "/org1/clients", up.last(t).Path)

	_, err = c.Items().Get(ctx, "org1", "it 1")
	require.NoError(t, err)
	assert.Equal(t, "/org1/items/it%201", up.last(t).Path)

	_, err = c.Taxes().List(ctx, "org1")
	require.NoError(t, err)
	assert.Equal(t, "/settings/org1/taxes", up.last(t).Path)

	inv, err := c.Invoices().Create(ctx, "org1", InvoiceInput{InvoiceNumber: "INV-1"})
	require.NoError(t, err)
	assert.Equal(t, "rec1", inv.ID)
	assert.Equal(t, "/org1/invoices", up.last(t).Path)

	_, err = c.Invitations().Create(ctx, "org1", InvitationInput{Email: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, "/organizations/org1/invitations", up.last(t).Path)
}

func TestClient_InvoiceDocuments(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake")
	c, up := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	})
	ctx := withCookie("s")

	doc, err := c.InvoicePDF(ctx, "org1", "inv1")
	require.NoError(t, err)
	assert.Equal(t, pdf, doc.Data)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "/org1/invoices/inv1/pdf", up.last(t).Path)

	require.NoError(t, c.SendInvoice(ctx, "org1", "inv1"))
	assert.Equal(t, "/org1/inv1/send", up.last(t).Path)
}

func TestClient_MailingAndInvitations(t *testing.T) {
	c, up := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "m1", "configType": "SMTP"})
	})
	ctx := withCookie("s")

	cfg, err := c.SaveMailingConfig(ctx, "org1", MailingConfigInput{Provider: MailProviderSMTP, FromAddress: "billing@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, MailProviderSMTP, cfg.ConfigType)
	assert.Equal(t, "/settings/org1/mailing-config", up.last(t).Path)

	require.NoError(t, c.TestMailingConnection(ctx, "org1"))
	assert.Equal(t, "/settings/org1/mailing/test-connection", up.last(t).Path)

	require.NoError(t, c.SendTestEmail(ctx, "org1"))
	assert.Equal(t, http.MethodPost, up.last(t).Method)

	require.NoError(t, c.AcceptInvitation(ctx, "tok/1"))
	assert.Equal(t, "/organizations/invitations/accept/tok%2F1", up.last(t).Path)
}

func TestClient_ObserverSeesEveryCall(t *testing.T) {
	var ops []string
	var statuses []int
	up := &fakeUpstream{handler: func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{})
	}}
	srv := httptest.NewServer(up)
	defer srv.Close()

	c := NewClient(Options{
		InvoiceURL: srv.URL,
		AuthURL:    srv.URL,
		Observer: func(op string, status int, _ time.Duration, err error) {
			ops = append(ops, op)
			statuses = append(statuses, status)
			assert.Error(t, err)
		},
	})

	_, err := c.ListOrganizations(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"list_organizations"}, ops)
	assert.Equal(t, []int{http.StatusInternalServerError}, statuses)
}
