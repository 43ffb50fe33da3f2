package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/routing"
	"invoicer/internal/session"
	"invoicer/internal/tenant"
	"invoicer/internal/uiphase"
	"invoicer/internal/workspace"
)

var errNoOrganization = errors.New("not found")

type fakeProfiler struct {
	mu    sync.Mutex
	err   error
	delay time.Duration
	calls int
}

func (f *fakeProfiler) GetSessionProfile(context.Context) (session.Profile, error) {
	f.mu.Lock()
	f.calls++
	err, delay := f.err, f.delay
	f.mu.Unlock()
	time.Sleep(delay)
	if err != nil {
		return session.Profile{}, err
	}
	return session.Profile{ID: "u1", Email: "a@b.c"}, nil
}

func (f *fakeProfiler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProfiler) EndSession(context.Context) error { return nil }

type fakeResolver struct {
	mu    sync.Mutex
	org   *tenant.Organization
	err   error
	calls int
}

func (f *fakeResolver) GetDefaultTenant(context.Context) (tenant.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return tenant.Organization{}, f.err
	}
	if f.org == nil {
		return tenant.Organization{}, errNoOrganization
	}
	return *f.org, nil
}

type recordingObserver struct {
	mu          sync.Mutex
	decisions   []routing.Decision
	resolutions []string
	checks      []bool
}

func (r *recordingObserver) ObserveDecision(_ string, d routing.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
}

func (r *recordingObserver) ObserveResolution(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolutions = append(r.resolutions, outcome)
}

func (r *recordingObserver) ObserveSessionCheck(authenticated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, authenticated)
}

type fixture struct {
	ws       *workspace.Workspace
	profiler *fakeProfiler
	resolver *fakeResolver
	obs      *recordingObserver
	shell    *Shell
}

func newFixture(org *tenant.Organization) *fixture {
	f := &fixture{
		profiler: &fakeProfiler{},
		resolver: &fakeResolver{org: org},
		obs:      &recordingObserver{},
	}
	f.ws = workspace.New("key", workspace.Deps{Profiler: f.profiler, Resolver: f.resolver})
	f.shell = NewShell(nil, f.obs)
	return f
}

func org1() *tenant.Organization {
	return &tenant.Organization{ID: "org1", Name: "Acme"}
}

func TestShell_NoTenantRedirectsToQuickSetup(t *testing.T) {
	f := newFixture(nil)

	d := f.shell.Enter(context.Background(), f.ws, "/app")

	assert.Equal(t, routing.ActionRedirect, d.Action)
	assert.Equal(t, "/quicksetup", d.Location)
	assert.Equal(t, routing.ReasonNoTenant, d.Reason)
	assert.True(t, f.ws.Tenant.Snapshot().HasCheckedOrganization)
	assert.Equal(t, []string{string(tenant.OutcomeFailed)}, f.obs.resolutions)
}

func TestShell_TenantMismatchPreservesSubPath(t *testing.T) {
	f := newFixture(org1())

	d := f.shell.Enter(context.Background(), f.ws, "/app/org2/clients")

	assert.Equal(t, routing.ActionRedirect, d.Action)
	assert.Equal(t, "/app/org1/clients", d.Location)
	assert.Equal(t, routing.ReasonTenantMismatch, d.Reason)
}

func TestShell_MatchingTenantRenders(t *testing.T) {
	f := newFixture(org1())

	first := f.shell.Enter(context.Background(), f.ws, "/app")
	require.Equal(t, "/app/org1", first.Location)

	d := f.shell.Enter(context.Background(), f.ws, "/app/org1/clients")
	assert.Equal(t, routing.ActionAllow, d.Action)
	assert.Equal(t, "org1", d.OrgID)
	assert.Equal(t, 1, f.resolver.calls)
	assert.Equal(t, 1, f.profiler.calls)
	assert.Equal(t, uiphase.State{}, f.ws.Phase.Snapshot())
}

func TestShell_MismatchWithResolvedTenantDoesNotRefetch(t *testing.T) {
	f := newFixture(org1())
	f.ws.Tenant.SetCurrent(*org1())

	d := f.shell.Enter(context.Background(), f.ws, "/app/org2/invoices/42?x=1")

	assert.Equal(t, "/app/org1/invoices/42?x=1", d.Location)
	assert.Equal(t, 0, f.resolver.calls)
	assert.Equal(t, []string{string(tenant.OutcomeCached)}, f.obs.resolutions)
}

func TestShell_ResolutionErrorIsAbsorbed(t *testing.T) {
	f := newFixture(nil)
	f.resolver.err = errors.New("connection refused")

	d := f.shell.Enter(context.Background(), f.ws, "/app/org2/clients")

	assert.Equal(t, routing.ActionRedirect, d.Action)
	assert.Equal(t, "/quicksetup", d.Location)
	st := f.ws.Tenant.Snapshot()
	assert.True(t, st.HasCheckedOrganization)
	assert.Contains(t, st.Error, "connection refused")
}

func TestShell_QuickSetup(t *testing.T) {
	t.Run("renders without a tenant", func(t *testing.T) {
		f := newFixture(nil)
		d := f.shell.Enter(context.Background(), f.ws, "/quicksetup")
		assert.Equal(t, routing.ActionAllow, d.Action)
		assert.Equal(t, 1, f.resolver.calls)
	})

	t.Run("redirects when a tenant exists", func(t *testing.T) {
		f := newFixture(org1())
		d := f.shell.Enter(context.Background(), f.ws, "/quicksetup")
		assert.Equal(t, routing.ActionRedirect, d.Action)
		assert.Equal(t, "/app/org1", d.Location)
		assert.Equal(t, routing.ReasonTenantExists, d.Reason)
	})
}

func TestShell_MalformedAppPath(t *testing.T) {
	f := newFixture(org1())
	d := f.shell.Enter(context.Background(), f.ws, "/app//clients")
	assert.Equal(t, routing.ActionRedirect, d.Action)
	assert.Equal(t, "/app", d.Location)
	assert.Equal(t, 0, f.resolver.calls)
}

func TestShell_Unauthenticated(t *testing.T) {
	f := newFixture(org1())
	f.profiler.err = errors.New("unauthorized")

	d := f.shell.Enter(context.Background(), f.ws, "/app/org1/invoices")

	assert.Equal(t, routing.ActionLogin, d.Action)
	assert.Equal(t, 0, f.resolver.calls)
	assert.Equal(t, []bool{false}, f.obs.checks)
	assert.True(t, f.ws.Phase.Snapshot().Loading)

	// The failed check stays on record, including in the persisted subset.
	snap := f.ws.Snapshot()
	assert.True(t, snap.Checked)
	assert.False(t, snap.Authenticated)

	// The next page load checks again.
	f.profiler.mu.Lock()
	f.profiler.err = nil
	f.profiler.mu.Unlock()
	d = f.shell.Enter(context.Background(), f.ws, "/app/org1/invoices")
	assert.Equal(t, routing.ActionAllow, d.Action)
	assert.Equal(t, 2, f.profiler.callCount())
}

func TestShell_OverlappingNavigationsShareOneCheck(t *testing.T) {
	f := newFixture(org1())
	f.profiler.delay = 50 * time.Millisecond

	const navigations = 5
	decisions := make(chan routing.Decision, navigations)
	var wg sync.WaitGroup
	for i := 0; i < navigations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decisions <- f.shell.Enter(context.Background(), f.ws, "/app/org1/clients")
		}()
	}
	wg.Wait()
	close(decisions)

	for d := range decisions {
		assert.Equal(t, routing.ActionAllow, d.Action)
	}
	assert.Equal(t, 1, f.profiler.callCount())
	assert.True(t, f.ws.Session.Snapshot().Authenticated)
}

func TestShell_FreshWorkspaceStartsInInitialisation(t *testing.T) {
	f := newFixture(org1())
	assert.Equal(t, uiphase.State{Loading: true, Phase: uiphase.PhaseInitialisation}, f.ws.Phase.Snapshot())

	f.profiler.err = errors.New("unauthorized")
	f.shell.Enter(context.Background(), f.ws, "/app/org1")
	assert.Equal(t, uiphase.State{Loading: true, Phase: uiphase.PhaseAuthentification}, f.ws.Phase.Snapshot())
}

func TestAuthGuard_SkipsCheckWhenChecked(t *testing.T) {
	f := newFixture(nil)
	f.ws.Session.Restore(true, true, &session.Profile{ID: "u1"})

	state := NewAuthGuard(nil, nil).Run(context.Background(), f.ws.Session)

	assert.Equal(t, AuthAuthenticated, state)
	assert.Equal(t, 0, f.profiler.calls)
}

func TestAuthState_View(t *testing.T) {
	assert.Equal(t, routing.AuthUnknown, AuthUnchecked.View())
	assert.Equal(t, routing.AuthUnknown, AuthChecking.View())
	assert.Equal(t, routing.AuthAuthenticated, AuthAuthenticated.View())
	assert.Equal(t, routing.AuthUnauthenticated, AuthUnauthenticated.View())
	assert.Equal(t, "checking", AuthChecking.String())
}
