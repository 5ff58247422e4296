package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesit-e/pesitengine/internal/wire"
)

func TestDemander_ConnectReleaseHappyPath(t *testing.T) {
	m := NewDemander()
	require.Equal(t, CN01, m.State())

	steps := []Event{
		Sent(wire.CONNECT),
		Received(wire.ACONNECT),
		Sent(wire.RELEASE),
		Received(wire.RELCONF),
	}
	for _, ev := range steps {
		_, err := m.Transition(ev)
		require.NoError(t, err)
	}
	assert.Equal(t, CN01, m.State())
}

func TestDemander_FullWriteTransferPath(t *testing.T) {
	m := NewDemander()
	path := []Event{
		Sent(wire.CONNECT), Received(wire.ACONNECT),
		Sent(wire.CREATE), Received(wire.ACK_CREATE),
		Sent(wire.OPEN), Received(wire.ACK_OPEN),
		Sent(wire.WRITE), Received(wire.ACK_WRITE),
		Sent(wire.DTF),
		Sent(wire.SYN), Received(wire.ACK_SYN),
		Sent(wire.DTF_END),
		Sent(wire.TRANS_END), Received(wire.ACK_TRANS_END),
	}
	for _, ev := range path {
		_, err := m.Transition(ev)
		require.NoError(t, err)
	}
	assert.Equal(t, OF02, m.State())
}

func TestDemander_StateViolation(t *testing.T) {
	m := NewDemander()
	_, err := m.Transition(Sent(wire.WRITE))
	require.Error(t, err)
	var tErr *TransitionError
	require.ErrorAs(t, err, &tErr)
	// State unchanged on violation.
	assert.Equal(t, CN01, m.State())
}

func TestMachine_ErrorReachableFromEveryState_AndResets(t *testing.T) {
	for _, st := range []State{CN01, CN02A, SF03, OF02, TDE02A, TDL02A} {
		m := &Machine{role: Demander, state: st, idle: CN01, table: demanderTable()}
		_, err := m.Transition(Received(wire.RCONNECT))
		require.NoError(t, err)
		assert.Equal(t, ERROR, m.State())

		_, err = m.Transition(Reset)
		require.NoError(t, err)
		assert.Equal(t, CN01, m.State())
	}
}

func TestMachine_AbortFromAnyState(t *testing.T) {
	m := &Machine{role: Demander, state: OF02, idle: CN01, table: demanderTable()}
	_, err := m.Transition(Received(wire.ABORT))
	require.NoError(t, err)
	assert.Equal(t, ERROR, m.State())
}

func TestServer_StateViolation_ProducesFatalAbortCode(t *testing.T) {
	m := NewServer()
	require.Equal(t, CN01B, m.State())
	_, err := m.Transition(Received(wire.WRITE))
	require.Error(t, err)

	var tErr *TransitionError
	require.ErrorAs(t, err, &tErr)
	diag := tErr.AsDiagnostics()
	assert.Equal(t, "3.399", diag.Code)
}

func TestServer_FullReadTransferPath(t *testing.T) {
	m := NewServer()
	path := []Event{
		Received(wire.CONNECT), Sent(wire.ACONNECT),
		Received(wire.SELECT), Sent(wire.ACK_SELECT),
		Received(wire.OPEN), Sent(wire.ACK_OPEN),
		Received(wire.READ), Sent(wire.ACK_READ),
		Sent(wire.DTF),
		Sent(wire.SYN), Received(wire.ACK_SYN),
		Sent(wire.DTF_END),
		Sent(wire.TRANS_END), Received(wire.ACK_TRANS_END),
	}
	for _, ev := range path {
		_, err := m.Transition(ev)
		require.NoError(t, err)
	}
	assert.Equal(t, OF02B, m.State())
}

func TestServer_ResyncSubstates(t *testing.T) {
	m := &Machine{role: Server, state: TDE02B, idle: CN01B, table: serverTable()}
	_, err := m.Transition(Received(wire.RESYN))
	require.NoError(t, err)
	assert.Equal(t, TDE04B, m.State())

	_, err = m.Transition(Sent(wire.ACK_RESYN))
	require.NoError(t, err)
	assert.Equal(t, TDE02B, m.State())
}

func TestReset_OnlyValidFromError(t *testing.T) {
	m := NewDemander()
	_, err := m.Transition(Reset)
	require.Error(t, err)
}

func TestNoAmbiguousTargets(t *testing.T) {
	// Every (state, event) key in both tables maps to exactly one
	// state by construction (Go maps cannot hold duplicate keys), but
	// this test guards against a future edit introducing two `add`
	// calls for the same (from, event) pair by re-deriving the tables
	// and checking size matches the number of add-call sites is not
	// feasible generically; instead we assert that one known key
	// resolves deterministically across repeated calls.
	m1 := NewDemander()
	m2 := NewDemander()
	ev := Sent(wire.CONNECT)
	s1, err1 := m1.Transition(ev)
	s2, err2 := m2.Transition(ev)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, s1, s2)
}
