package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"invoicer/internal/auth"
)

// Persister keeps workspace snapshots across reloads and process restarts.
type Persister interface {
	Load(r *http.Request, key string) (Snapshot, bool, error)
	// Save must run before the response header is written.
	Save(w http.ResponseWriter, r *http.Request, key string, snap Snapshot) error
	Forget(w http.ResponseWriter, r *http.Request, key string) error
}

// Purger is implemented by persisters that hold expiring rows.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// NopPersister keeps nothing.
type NopPersister struct{}

func (NopPersister) Load(*http.Request, string) (Snapshot, bool, error) { return Snapshot{}, false, nil }

func (NopPersister) Save(http.ResponseWriter, *http.Request, string, Snapshot) error { return nil }

func (NopPersister) Forget(http.ResponseWriter, *http.Request, string) error { return nil }

// CookiePersister stores the snapshot in a signed cookie bound to the
// workspace key.
type CookiePersister struct {
	codec  *auth.StateCodec
	name   string
	secure bool
	now    func() time.Time
}

func NewCookiePersister(codec *auth.StateCodec, name string, secure bool) *CookiePersister {
	return &CookiePersister{codec: codec, name: name, secure: secure, now: time.Now}
}

func (p *CookiePersister) Load(r *http.Request, key string) (Snapshot, bool, error) {
	cookie, ok := auth.AuthCookie(r, p.name)
	if !ok {
		return Snapshot{}, false, nil
	}
	raw, err := p.codec.Parse(cookie.Value, key)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("parse state cookie: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode state cookie: %w", err)
	}
	return snap, true, nil
}

func (p *CookiePersister) Save(w http.ResponseWriter, _ *http.Request, key string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	token, claims, err := p.codec.Sign(p.now(), key, raw)
	if err != nil {
		return fmt.Errorf("sign state: %w", err)
	}
	p.setCookie(w, token, claims.ExpiresAt.Time, 0)
	return nil
}

func (p *CookiePersister) Forget(w http.ResponseWriter, _ *http.Request, _ string) error {
	p.setCookie(w, "", time.Unix(0, 0), -1)
	return nil
}

// setCookie uses SameSite=None with Secure and Partitioned when serving over
// HTTPS, Lax otherwise.
func (p *CookiePersister) setCookie(w http.ResponseWriter, value string, expires time.Time, maxAge int) {
	sameSite := http.SameSiteLaxMode
	if p.secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:        p.name,
		Value:       value,
		Path:        "/",
		HttpOnly:    true,
		Secure:      p.secure,
		SameSite:    sameSite,
		Partitioned: p.secure,
		Expires:     expires,
		MaxAge:      maxAge,
	})
}

// StateRepository is the storage behind PostgresPersister.
type StateRepository interface {
	LoadWorkspaceState(ctx context.Context, key string) ([]byte, bool, error)
	SaveWorkspaceState(ctx context.Context, key string, state []byte, expiresAt time.Time) error
	DeleteWorkspaceState(ctx context.Context, key string) error
	PurgeExpiredWorkspaceState(ctx context.Context) (int64, error)
}

// PostgresPersister stores snapshots server side; the browser only carries
// its auth cookie.
type PostgresPersister struct {
	repo StateRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewPostgresPersister(repo StateRepository, ttl time.Duration) *PostgresPersister {
	return &PostgresPersister{repo: repo, ttl: ttl, now: time.Now}
}

func (p *PostgresPersister) Load(r *http.Request, key string) (Snapshot, bool, error) {
	raw, found, err := p.repo.LoadWorkspaceState(r.Context(), key)
	if err != nil || !found {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode workspace state: %w", err)
	}
	return snap, true, nil
}

func (p *PostgresPersister) Save(_ http.ResponseWriter, r *http.Request, key string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return p.repo.SaveWorkspaceState(r.Context(), key, raw, p.now().Add(p.ttl))
}

func (p *PostgresPersister) Forget(_ http.ResponseWriter, r *http.Request, key string) error {
	return p.repo.DeleteWorkspaceState(r.Context(), key)
}

func (p *PostgresPersister) Purge(ctx context.Context) (int64, error) {
	return p.repo.PurgeExpiredWorkspaceState(ctx)
}
