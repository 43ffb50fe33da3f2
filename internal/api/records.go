package api

import (
	"context"
	"net/http"
	"time"
)

// Timestamps are set by the upstream on every record.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CustomerInput struct {
	DisplayName    string `json:"displayName"`
	Gender         string `json:"gender,omitempty"`
	Type           string `json:"type,omitempty"`
	Status         string `json:"status,omitempty"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	CompanyName    string `json:"companyName,omitempty"`
	Currency       string `json:"currency,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	BusinessNumber string `json:"businessNumber,omitempty"`
	OrganizationID string `json:"organizationId"`
	OwnerID        string `json:"ownerId,omitempty"`
}

// Customer is a client record of an organization.
type Customer struct {
	ID string `json:"id"`
	CustomerInput
	Timestamps
}

type ItemInput struct {
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	Price          float64 `json:"price"`
	Type           string  `json:"type,omitempty"`
	Unit           string  `json:"unit,omitempty"`
	OrganizationID string  `json:"organizationId"`
	TaxID          string  `json:"taxId,omitempty"`
}

type Item struct {
	ID string `json:"id"`
	ItemInput
	Timestamps
}

type TaxInput struct {
	Name           string  `json:"name"`
	OrganizationID string  `json:"organizationId"`
	Rate           float64 `json:"rate"`
}

type Tax struct {
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
	TaxInput
	Timestamps
}

type InvoiceLine struct {
	ItemID    string  `json:"itemId"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	TaxID     string  `json:"taxId,omitempty"`
}

type InvoiceInput struct {
	InvoiceNumber string        `json:"invoiceNumber"`
	ClientID      string        `json:"clientId"`
	InvoiceDate   string        `json:"invoiceDate"`
	DueDate       string        `json:"dueDate"`
	TotalAmount   float64       `json:"totalAmount"`
	Status        string        `json:"status,omitempty"`
	Items         []InvoiceLine `json:"items"`
	Discount      float64       `json:"discount,omitempty"`
	DiscountType  string        `json:"discountType,omitempty"`
}

type Invoice struct {
	ID string `json:"id"`
	InvoiceInput
	Timestamps
}

type InvitationInput struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

type Invitation struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	Token          string `json:"token"`
	InvitationInput
	Timestamps
}

// Collection is the create/list/get surface of one tenant-scoped record type.
type Collection[T, In any] struct {
	c    *Client
	name string
	// path returns the collection's path segments for an organization.
	path func(orgID string) []string
}

func (col Collection[T, In]) Create(ctx context.Context, orgID string, in In) (T, error) {
	var out T
	err := col.c.doJSON(ctx, "create_"+col.name, http.MethodPost, col.c.invoice(col.path(orgID)...), in, &out)
	return out, err
}

func (col Collection[T, In]) List(ctx context.Context, orgID string) ([]T, error) {
	var out []T
	err := col.c.doJSON(ctx, "list_"+col.name, http.MethodGet, col.c.invoice(col.path(orgID)...), nil, &out)
	return out, err
}

func (col Collection[T, In]) Get(ctx context.Context, orgID, id string) (T, error) {
	var out T
	segments := append(col.path(orgID), id)
	err := col.c.doJSON(ctx, "get_"+col.name, http.MethodGet, col.c.invoice(segments...), nil, &out)
	return out, err
}

// Customers lives under /{org}/clients.
func (c *Client) Customers() Collection[Customer, CustomerInput] {
	return Collection[Customer, CustomerInput]{c: c, name: "client", path: func(org string) []string {
		return []string{org, "clients"}
	}}
}

// Items lives under /{org}/items.
func (c *Client) Items() Collection[Item, ItemInput] {
	return Collection[Item, ItemInput]{c: c, name: "item", path: func(org string) []string {
		return []string{org, "items"}
	}}
}

// Taxes lives under /settings/{org}/taxes.
func (c *Client) Taxes() Collection[Tax, TaxInput] {
	return Collection[Tax, TaxInput]{c: c, name: "tax", path: func(org string) []string {
		return []string{"settings", org, "taxes"}
	}}
}

// Invoices lives under /{org}/invoices.
func (c *Client) Invoices() Collection[Invoice, InvoiceInput] {
	return Collection[Invoice, InvoiceInput]{c: c, name: "invoice", path: func(org string) []string {
		return []string{org, "invoices"}
	}}
}

// Invitations lives under /organizations/{org}/invitations.
func (c *Client) Invitations() Collection[Invitation, InvitationInput] {
	return Collection[Invitation, InvitationInput]{c: c, name: "invitation", path: func(org string) []string {
		return []string{"organizations", org, "invitations"}
	}}
}
