package auth

import (
	"context"
	"net/http"
)

// contextKey prevents collisions with other context values.
type contextKey string

const credentialsKey contextKey = "invoicer:credentials"

// Credentials is the browser's auth cookie, forwarded to upstream APIs on
// the caller's behalf.
type Credentials struct {
	Cookie *http.Cookie
}

// WithCredentials stores the credentials on the request context.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	if c.Cookie == nil {
		return ctx
	}
	return context.WithValue(ctx, credentialsKey, c)
}

// CredentialsFromContext retrieves the forwarded credentials, when available.
func CredentialsFromContext(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey).(Credentials)
	return c, ok
}

// AuthCookie returns the named cookie when it is present and non-empty.
func AuthCookie(r *http.Request, name string) (*http.Cookie, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || cookie == nil || cookie.Value == "" {
		return nil, false
	}
	return cookie, true
}
