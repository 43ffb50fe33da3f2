package uiphase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Lifecycle(t *testing.T) {
	s := NewStore()
	assert.Equal(t, State{Loading: true, Phase: PhaseInitialisation}, s.Snapshot())

	s.SetPhase(PhaseOrganization)
	assert.Equal(t, PhaseOrganization, s.Snapshot().Phase)

	s.Finish()
	assert.Equal(t, State{}, s.Snapshot())
}

func TestState_JSONHidesSplashWithNull(t *testing.T) {
	b, err := json.Marshal(State{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"isAppLoading":false,"loadingPhase":null}`, string(b))

	b, err = json.Marshal(State{Loading: true, Phase: PhaseFinalisation})
	require.NoError(t, err)
	assert.JSONEq(t, `{"isAppLoading":true,"loadingPhase":"FINALISATION"}`, string(b))
}
