package api

import (
	"context"
	"errors"
	"net/http"

	"invoicer/internal/session"
)

var errMalformedProfile = errors.New("malformed profile")

// GetSessionProfile returns the profile of the forwarded session.
func (c *Client) GetSessionProfile(ctx context.Context) (session.Profile, error) {
	var body struct {
		User *session.Profile `json:"user"`
		session.Profile
	}
	if err := c.doJSON(ctx, "get_profile", http.MethodGet, c.auth("me"), nil, &body); err != nil {
		return session.Profile{}, err
	}
	profile := body.Profile
	if body.User != nil {
		profile = *body.User
	}
	if profile.ID == "" && profile.Email == "" {
		return session.Profile{}, &TransientError{Op: "get_profile", Err: errMalformedProfile}
	}
	return profile, nil
}

// EndSession logs the forwarded session out upstream.
func (c *Client) EndSession(ctx context.Context) error {
	return c.doJSON(ctx, "logout", http.MethodPost, c.auth("logout"), nil, nil)
}
