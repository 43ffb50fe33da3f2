// Package uiphase tracks the cosmetic splash-screen phase of a workspace.
package uiphase

import (
	"encoding/json"
	"sync"
)

// Phase names the splash-screen copy. PhaseNone hides the splash.
type Phase string

const (
	PhaseNone             Phase = ""
	PhaseInitialisation   Phase = "INITIALISATION"
	PhaseAuthentification Phase = "AUTHENTIFICATION"
	PhaseOrganization     Phase = "ORGANIZATION"
	PhaseFinalisation     Phase = "FINALISATION"
)

// MarshalJSON renders PhaseNone as null.
func (p Phase) MarshalJSON() ([]byte, error) {
	if p == PhaseNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(p))
}

type State struct {
	Loading bool  `json:"isAppLoading"`
	Phase   Phase `json:"loadingPhase"`
}

type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore starts loading, in the initialisation phase.
func NewStore() *Store {
	return &Store{state: State{Loading: true, Phase: PhaseInitialisation}}
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.state.Loading = loading
	s.mu.Unlock()
}

func (s *Store) SetPhase(p Phase) {
	s.mu.Lock()
	s.state.Phase = p
	s.mu.Unlock()
}

// Finish hides the splash.
func (s *Store) Finish() {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}
