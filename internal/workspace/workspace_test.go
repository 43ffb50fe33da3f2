package workspace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/auth"
	"invoicer/internal/session"
	"invoicer/internal/tenant"
)

const stateCookie = "invoicer_state"

func sampleSnapshot() Snapshot {
	return Snapshot{
		User:                   &session.Profile{ID: "u1", Email: "a@b.c"},
		Authenticated:          true,
		Checked:                true,
		CurrentOrganization:    &tenant.Organization{ID: "org1", Name: "Acme", CallerRole: tenant.RoleOwner},
		HasCheckedOrganization: true,
	}
}

func TestKeyFromCookie(t *testing.T) {
	a := KeyFromCookie("s:abc")
	assert.Len(t, a, 64)
	assert.Equal(t, a, KeyFromCookie("s:abc"))
	assert.NotEqual(t, a, KeyFromCookie("s:abd"))
	assert.NotContains(t, a, "abc")
}

func TestWorkspace_SnapshotRestore(t *testing.T) {
	ws := New("k", Deps{})
	assert.Equal(t, Snapshot{}, ws.Snapshot())

	ws.Restore(sampleSnapshot())
	assert.Equal(t, sampleSnapshot(), ws.Snapshot())

	st := ws.Session.Snapshot()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
}

func TestContextHelpers(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ws := New("k", Deps{})
	got, ok := FromContext(WithWorkspace(context.Background(), ws))
	require.True(t, ok)
	assert.Same(t, ws, got)
}

func TestRegistry_AcquireReusesWorkspace(t *testing.T) {
	reg := NewRegistry(Deps{}, nil, time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/app", nil)

	a := reg.Acquire(req, "k1")
	b := reg.Acquire(req, "k1")
	c := reg.Acquire(req, "k2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_CookieRoundTrip(t *testing.T) {
	codec := auth.NewStateCodec("secret", time.Hour)
	persister := NewCookiePersister(codec, stateCookie, false)

	first := NewRegistry(Deps{}, persister, time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	ws := first.Acquire(req, "k1")
	ws.Restore(sampleSnapshot())

	rec := httptest.NewRecorder()
	require.NoError(t, first.Save(rec, req, ws))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, stateCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	t.Run("restored for the same key", func(t *testing.T) {
		second := NewRegistry(Deps{}, persister, time.Minute)
		next := httptest.NewRequest(http.MethodGet, "/app", nil)
		next.AddCookie(cookies[0])

		restored := second.Acquire(next, "k1")
		assert.Equal(t, sampleSnapshot(), restored.Snapshot())
	})

	t.Run("ignored for another key", func(t *testing.T) {
		second := NewRegistry(Deps{}, persister, time.Minute)
		next := httptest.NewRequest(http.MethodGet, "/app", nil)
		next.AddCookie(cookies[0])

		fresh := second.Acquire(next, "k2")
		assert.Equal(t, Snapshot{}, fresh.Snapshot())
	})
}

func TestCookiePersister_SecureAttributes(t *testing.T) {
	persister := NewCookiePersister(auth.NewStateCodec("secret", time.Hour), stateCookie, true)
	rec := httptest.NewRecorder()
	require.NoError(t, persister.Save(rec, nil, "k", Snapshot{}))

	header := rec.Header().Get("Set-Cookie")
	assert.Contains(t, header, "Secure")
	assert.Contains(t, header, "SameSite=None")
	assert.Contains(t, header, "Partitioned")
}

func TestRegistry_Forget(t *testing.T) {
	persister := NewCookiePersister(auth.NewStateCodec("secret", time.Hour), stateCookie, false)
	reg := NewRegistry(Deps{}, persister, time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	ws := reg.Acquire(req, "k1")

	rec := httptest.NewRecorder()
	require.NoError(t, reg.Forget(rec, req, ws))
	assert.Equal(t, 0, reg.Len())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
	assert.NotSame(t, ws, reg.Acquire(req, "k1"))
}

func TestRegistry_Sweep(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(Deps{}, nil, 10*time.Minute)
	reg.now = func() time.Time { return base }
	req := httptest.NewRequest(http.MethodGet, "/app", nil)

	reg.Acquire(req, "old")
	reg.now = func() time.Time { return base.Add(8 * time.Minute) }
	reg.Acquire(req, "recent")

	assert.Equal(t, 0, reg.Sweep(base.Add(9*time.Minute)))
	assert.Equal(t, 1, reg.Sweep(base.Add(11*time.Minute)))
	assert.Equal(t, 1, reg.Len())
}

type memoryRepo struct {
	rows   map[string][]byte
	expiry map[string]time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[string][]byte{}, expiry: map[string]time.Time{}}
}

func (m *memoryRepo) LoadWorkspaceState(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := m.rows[key]
	return raw, ok, nil
}

func (m *memoryRepo) SaveWorkspaceState(_ context.Context, key string, state []byte, expiresAt time.Time) error {
	m.rows[key] = state
	m.expiry[key] = expiresAt
	return nil
}

func (m *memoryRepo) DeleteWorkspaceState(_ context.Context, key string) error {
	delete(m.rows, key)
	delete(m.expiry, key)
	return nil
}

func (m *memoryRepo) PurgeExpiredWorkspaceState(context.Context) (int64, error) {
	return 0, nil
}

func TestPostgresPersister(t *testing.T) {
	repo := newMemoryRepo()
	persister := NewPostgresPersister(repo, time.Hour)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	persister.now = func() time.Time { return now }

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, persister.Save(rec, req, "k1", sampleSnapshot()))
	assert.Empty(t, rec.Header().Get("Set-Cookie"))
	assert.Equal(t, now.Add(time.Hour), repo.expiry["k1"])

	snap, found, err := persister.Load(req, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sampleSnapshot(), snap)

	require.NoError(t, persister.Forget(rec, req, "k1"))
	_, found, err = persister.Load(req, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}
