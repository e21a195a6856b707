package states

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/conquest/internal/game/events"
)

type collectingPublisher struct {
	events []events.Event
}

func (c *collectingPublisher) Publish(e events.Event) {
	c.events = append(c.events, e)
}

func newTestMachine() (*StateMachine, *collectingPublisher) {
	pub := &collectingPublisher{}
	ctx := NewMatchContext("match-1", 5, 2, zerolog.Nop())
	return NewStateMachine(ctx, pub), pub
}

func TestStateMachine_FullLifecycle_RecordsHistory(t *testing.T) {
	sm, pub := newTestMachine()
	assert.Equal(t, PhaseSetup, sm.CurrentPhase())

	require.NoError(t, sm.TransitionTo(PhaseRunning, "start"))
	assert.False(t, sm.Context().StartTime.IsZero())

	require.NoError(t, sm.TransitionTo(PhasePaused, "pause"))
	assert.False(t, sm.Context().PauseTime.IsZero())

	require.NoError(t, sm.TransitionTo(PhaseRunning, "resume"))
	assert.True(t, sm.Context().PauseTime.IsZero())

	sm.Context().Tick = 42
	require.NoError(t, sm.TransitionTo(PhaseEnded, "conquest"))
	assert.Equal(t, "conquest", sm.Context().Reason)

	history := sm.History()
	require.Len(t, history, 4)
	assert.Equal(t, PhaseSetup, history[0].From)
	assert.Equal(t, PhaseEnded, history[3].To)
	assert.Equal(t, "conquest", history[3].Reason)

	require.Len(t, pub.events, 4)
	last, ok := pub.events[3].(*events.StateTransitionEvent)
	require.True(t, ok)
	assert.Equal(t, "Running", last.FromState)
	assert.Equal(t, "Ended", last.ToState)
	assert.Equal(t, int64(42), last.TickNumber())
	assert.Equal(t, "match-1", last.MatchID())
}

func TestStateMachine_TransitionTo_RejectsInvalid(t *testing.T) {
	sm, pub := newTestMachine()

	err := sm.TransitionTo(PhasePaused, "too early")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "invalid transition from Setup to Paused")
	assert.Equal(t, PhaseSetup, sm.CurrentPhase())
	assert.Empty(t, pub.events)

	require.NoError(t, sm.TransitionTo(PhaseAborted, "shutdown"))
	assert.True(t, sm.CurrentPhase().IsTerminal())
	assert.Error(t, sm.TransitionTo(PhaseRunning, "revive"))
	assert.False(t, sm.CanTransitionTo(PhaseRunning))
}

func TestStateMachine_TransitionTo_ValidationFailure(t *testing.T) {
	pub := &collectingPublisher{}
	ctx := NewMatchContext("empty", 0, 2, zerolog.Nop())
	sm := NewStateMachine(ctx, pub)

	err := sm.TransitionTo(PhaseRunning, "start")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one territory")
	assert.Equal(t, PhaseSetup, sm.CurrentPhase())
}

func TestStateMachine_TransitionTo_EndedNeedsReason(t *testing.T) {
	sm, _ := newTestMachine()
	require.NoError(t, sm.TransitionTo(PhaseRunning, "start"))

	assert.Error(t, sm.TransitionTo(PhaseEnded, ""))
	assert.Equal(t, PhaseRunning, sm.CurrentPhase())
}

type failingEnterState struct{}

func (failingEnterState) Phase() MatchPhase { return PhasePaused }
func (failingEnterState) Enter(*MatchContext) error { return errors.New("enter failed") }
func (failingEnterState) Exit(*MatchContext) error { return nil }
func (failingEnterState) Validate(*MatchContext) error { return nil }

func TestStateMachine_TransitionTo_RollsBackOnEnterFailure(t *testing.T) {
	sm, pub := newTestMachine()
	require.NoError(t, sm.TransitionTo(PhaseRunning, "start"))
	sm.RegisterState(failingEnterState{})

	err := sm.TransitionTo(PhasePaused, "pause")
	require.Error(t, err)
	assert.Equal(t, PhaseRunning, sm.CurrentPhase())
	assert.Len(t, sm.History(), 1)
	assert.Len(t, pub.events, 1)
}

func TestStateMachine_NilPublisher(t *testing.T) {
	sm := NewStateMachine(NewMatchContext("m", 1, 1, zerolog.Nop()), nil)
	assert.NoError(t, sm.TransitionTo(PhaseRunning, "start"))
}

func TestMatchContext_WallElapsed(t *testing.T) {
	ctx := NewMatchContext("m", 1, 1, zerolog.Nop())
	assert.Zero(t, ctx.WallElapsed())

	sm := NewStateMachine(ctx, nil)
	require.NoError(t, sm.TransitionTo(PhaseRunning, "start"))
	assert.GreaterOrEqual(t, ctx.WallElapsed().Nanoseconds(), int64(0))
}
