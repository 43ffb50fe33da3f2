package api

import (
	"context"
	"fmt"
	"net/http"

	"invoicer/internal/tenant"
)

// CreateOrganizationInput is the quick-setup form.
type CreateOrganizationInput struct {
	Name     string `json:"name"`
	Domain   string `json:"domain,omitempty"`
	Address  string `json:"address,omitempty"`
	Language string `json:"language,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// GetDefaultTenant returns the caller's default organization. It fails with
// ErrNotFound when the caller belongs to none.
func (c *Client) GetDefaultTenant(ctx context.Context) (tenant.Organization, error) {
	var body struct {
		tenant.Organization
		OrganizationID string `json:"organizationId"`
	}
	if err := c.doJSON(ctx, "get_default_organization", http.MethodGet, c.invoice("organization", "default"), nil, &body); err != nil {
		return tenant.Organization{}, err
	}
	org := body.Organization
	if org.ID == "" {
		org.ID = body.OrganizationID
	}
	if org.ID == "" {
		return tenant.Organization{}, fmt.Errorf("get_default_organization: %w", ErrNotFound)
	}
	return org, nil
}

// CreateTenant creates an organization owned by the caller.
func (c *Client) CreateTenant(ctx context.Context, in CreateOrganizationInput) (tenant.Organization, error) {
	var body struct {
		Org *struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"org"`
		UserRole tenant.Role `json:"userRole"`
		tenant.Organization
	}
	if err := c.doJSON(ctx, "create_organization", http.MethodPost, c.invoice("organizations"), in, &body); err != nil {
		return tenant.Organization{}, err
	}
	org := body.Organization
	org.CallerRole = body.UserRole
	if body.Org != nil {
		org = tenant.Organization{ID: body.Org.ID, Name: body.Org.Name, CallerRole: body.UserRole}
	}
	if org.ID == "" {
		return tenant.Organization{}, &TransientError{Op: "create_organization", Err: fmt.Errorf("response without organization id")}
	}
	return org, nil
}

// ListOrganizations returns every organization the caller belongs to.
func (c *Client) ListOrganizations(ctx context.Context) ([]tenant.Organization, error) {
	var out []tenant.Organization
	err := c.doJSON(ctx, "list_organizations", http.MethodGet, c.invoice("organizations"), nil, &out)
	return out, err
}

// GetOrganization returns one organization by id.
func (c *Client) GetOrganization(ctx context.Context, id string) (tenant.Organization, error) {
	var out tenant.Organization
	err := c.doJSON(ctx, "get_organization", http.MethodGet, c.invoice("organizations", id), nil, &out)
	return out, err
}
