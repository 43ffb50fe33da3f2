// Package session holds the per-workspace authentication store.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Profile is the cached user profile returned by the session endpoint.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Profiler is the remote side of the session: profile lookup and logout.
type Profiler interface {
	// GetSessionProfile fails with an unauthorized error when there is no valid session.
	GetSessionProfile(ctx context.Context) (Profile, error)
	EndSession(ctx context.Context) error
}

// State is a point-in-time copy of the store.
//
// Authenticated is not authoritative until Checked is true.
type State struct {
	Authenticated bool     `json:"authenticated"`
	Checked       bool     `json:"checked"`
	User          *Profile `json:"user"`
	Loading       bool     `json:"loading"`
	Error         string   `json:"error,omitempty"`
}

// Store owns the session state of one workspace. Only its methods mutate it.
type Store struct {
	mu       sync.RWMutex
	state    State
	seq      uint64
	pending  chan struct{}
	profiler Profiler
	log      *zap.Logger
}

func NewStore(profiler Profiler, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{profiler: profiler, log: log}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Check asks the remote side for the session profile. Failures of any kind
// leave the store checked and unauthenticated; nothing is returned to the
// caller but the resulting state. While a check is in flight, callers join it
// instead of issuing another. A response that arrives after a Logout or Reset
// is dropped, and the caller gets the state once the newest check has settled.
func (s *Store) Check(ctx context.Context) State {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return s.waitSettled(ctx)
	}
	s.seq++
	token := s.seq
	done := make(chan struct{})
	s.pending = done
	s.state.Loading = true
	s.mu.Unlock()

	profile, err := s.profiler.GetSessionProfile(ctx)

	s.mu.Lock()
	close(done)
	if token != s.seq {
		s.mu.Unlock()
		s.log.Debug("dropping stale session check", zap.Uint64("token", token))
		return s.waitSettled(ctx)
	}
	defer s.mu.Unlock()
	s.pending = nil
	s.state.Loading = false
	s.state.Checked = true
	if err != nil {
		s.log.Info("session check failed", zap.Error(err))
		s.state.Authenticated = false
		s.state.User = nil
		s.state.Error = err.Error()
		return s.copyLocked()
	}
	s.state.Authenticated = true
	s.state.User = &profile
	s.state.Error = ""
	return s.copyLocked()
}

// Logout ends the remote session on a best-effort basis and always clears the
// local one.
func (s *Store) Logout(ctx context.Context) {
	if err := s.profiler.EndSession(ctx); err != nil {
		s.log.Warn("remote logout failed", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.pending = nil
	s.state.Authenticated = false
	s.state.User = nil
	s.state.Loading = false
	s.state.Error = ""
}

// Reset forgets the check result so the next guard pass checks again. The
// transport calls it when an upstream request comes back unauthorized.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.pending = nil
	s.state = State{}
}

// Wait returns the state once no check is in flight, or when ctx ends.
func (s *Store) Wait(ctx context.Context) State {
	return s.waitSettled(ctx)
}

// ForgetFailedCheck returns a settled, failed check to unchecked so a new
// page load can check again. It reports whether it did.
func (s *Store) ForgetFailedCheck() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil || !s.state.Checked || s.state.Authenticated {
		return false
	}
	s.seq++
	s.state = State{}
	return true
}

// waitSettled blocks until no check is in flight, or ctx ends.
func (s *Store) waitSettled(ctx context.Context) State {
	for {
		s.mu.Lock()
		ch := s.pending
		if ch == nil {
			st := s.copyLocked()
			s.mu.Unlock()
			return st
		}
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return s.Snapshot()
		}
	}
}

// Restore loads persisted fields. Loading and Error are never persisted.
func (s *Store) Restore(authenticated, checked bool, user *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Authenticated = authenticated && checked
	s.state.Checked = checked
	if user != nil {
		u := *user
		s.state.User = &u
	} else {
		s.state.User = nil
	}
}

func (s *Store) copyLocked() State {
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}
