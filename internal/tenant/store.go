// Package tenant holds the per-workspace organization store and its
// default-tenant resolution.
package tenant

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Role is the caller's role inside an organization.
type Role string

const (
	RoleOwner  Role = "Owner"
	RoleAdmin  Role = "Admin"
	RoleUser   Role = "User"
	RoleViewer Role = "Viewer"
)

// Member links a user to an organization.
type Member struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId"`
	Role           Role   `json:"role"`
}

// Organization is a tenant. Its ID appears verbatim in /app/{id}/... URLs.
type Organization struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Members    []Member `json:"users"`
	CallerRole Role     `json:"userRole"`
}

// Resolver finds the caller's default organization. It fails with a
// not-found error when the caller belongs to none.
type Resolver interface {
	GetDefaultTenant(ctx context.Context) (Organization, error)
}

// State is a point-in-time copy of the store.
//
// HasCheckedOrganization means a resolution was attempted, not that a tenant exists.
type State struct {
	Current                *Organization `json:"currentOrganization"`
	HasCheckedOrganization bool          `json:"hasCheckedOrganization"`
	IsLoading              bool          `json:"isLoading"`
	Error                  string        `json:"error,omitempty"`
}

// Outcome tells how a ResolveDefault call ended.
type Outcome string

const (
	OutcomeCached   Outcome = "cached"
	OutcomeResolved Outcome = "resolved"
	OutcomeFailed   Outcome = "failed"
	// OutcomeStale means a newer resolution or a manual selection superseded
	// this call and its response was discarded.
	OutcomeStale Outcome = "stale"
)

// Store owns the tenant state of one workspace.
//
// Every resolution takes a token from a monotonic counter; its response is
// applied only while that token is still the latest. SetCurrent and Clear
// advance the counter too, so an in-flight response can never overwrite them.
type Store struct {
	mu       sync.Mutex
	state    State
	seq      uint64
	pending  chan struct{}
	resolver Resolver
	log      *zap.Logger
}

func NewStore(resolver Resolver, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{resolver: resolver, log: log}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// ResolveDefault resolves the default organization unless one is already
// current and checked. Success or failure, HasCheckedOrganization is true
// afterwards. A superseded call waits for the latest one to settle and
// reports OutcomeStale.
func (s *Store) ResolveDefault(ctx context.Context) (State, Outcome) {
	s.mu.Lock()
	if s.state.Current != nil && s.state.HasCheckedOrganization {
		st := s.copyLocked()
		s.mu.Unlock()
		return st, OutcomeCached
	}
	s.seq++
	token := s.seq
	done := make(chan struct{})
	s.pending = done
	s.state.IsLoading = true
	s.state.Error = ""
	s.mu.Unlock()

	org, err := s.resolver.GetDefaultTenant(ctx)

	s.mu.Lock()
	close(done)
	if token != s.seq {
		s.mu.Unlock()
		s.log.Debug("dropping stale tenant resolution", zap.Uint64("token", token))
		return s.waitSettled(ctx), OutcomeStale
	}
	defer s.mu.Unlock()
	s.pending = nil
	s.state.IsLoading = false
	s.state.HasCheckedOrganization = true
	if err != nil {
		s.log.Info("default tenant resolution failed", zap.Error(err))
		s.state.Current = nil
		s.state.Error = err.Error()
		return s.copyLocked(), OutcomeFailed
	}
	s.state.Current = &org
	s.state.Error = ""
	return s.copyLocked(), OutcomeResolved
}

// waitSettled blocks until no resolution is in flight, or ctx ends.
func (s *Store) waitSettled(ctx context.Context) State {
	for {
		s.mu.Lock()
		if !s.state.IsLoading || s.pending == nil {
			st := s.copyLocked()
			s.mu.Unlock()
			return st
		}
		ch := s.pending
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return s.Snapshot()
		}
	}
}

// SetCurrent selects org unconditionally.
func (s *Store) SetCurrent(org Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked()
	s.state.Current = &org
	s.state.HasCheckedOrganization = true
	s.state.Error = ""
}

// Clear drops the selection; the next navigation resolves again.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked()
	s.state.Current = nil
	s.state.HasCheckedOrganization = false
	s.state.Error = ""
}

// Restore loads persisted fields. IsLoading and Error are never persisted.
func (s *Store) Restore(current *Organization, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current != nil {
		org := *current
		s.state.Current = &org
	} else {
		s.state.Current = nil
	}
	s.state.HasCheckedOrganization = checked
}

func (s *Store) supersedeLocked() {
	s.seq++
	s.pending = nil
	s.state.IsLoading = false
}

func (s *Store) copyLocked() State {
	st := s.state
	if st.Current != nil {
		org := *st.Current
		org.Members = append([]Member(nil), st.Current.Members...)
		st.Current = &org
	}
	return st
}
