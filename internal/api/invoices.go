package api

import (
	"context"
	"net/http"
)

// Document is a binary download from the invoicing API.
type Document struct {
	Data        []byte
	ContentType string
}

// InvoicePDF downloads the rendered PDF of an invoice.
func (c *Client) InvoicePDF(ctx context.Context, orgID, invoiceID string) (Document, error) {
	raw, contentType, err := c.do(ctx, "get_invoice_pdf", http.MethodGet, c.invoice(orgID, "invoices", invoiceID, "pdf"), nil)
	if err != nil {
		return Document{}, err
	}
	if contentType == "" {
		contentType = "application/pdf"
	}
	return Document{Data: raw, ContentType: contentType}, nil
}

// SendInvoice asks the upstream to e-mail an invoice to its client.
func (c *Client) SendInvoice(ctx context.Context, orgID, invoiceID string) error {
	return c.doJSON(ctx, "send_invoice", http.MethodPost, c.invoice(orgID, invoiceID, "send"), nil, nil)
}
