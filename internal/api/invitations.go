package api

import (
	"context"
	"net/http"
)

// AcceptInvitation redeems an invitation token for the forwarded session.
func (c *Client) AcceptInvitation(ctx context.Context, token string) error {
	return c.doJSON(ctx, "accept_invitation", http.MethodGet, c.invoice("organizations", "invitations", "accept", token), nil, nil)
}
