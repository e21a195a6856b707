package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/conquest/internal/game/ai"
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
	"github.com/mitchelldurbincs/conquest/internal/game/states"
	"github.com/mitchelldurbincs/conquest/internal/testutil"
)

// aggressive always attacks and thinks every 2 simulated seconds
var aggressive = ai.Difficulty{
	Name:                    "aggressive",
	ThinkIntervalMultiplier: 1,
	AttackProbability:       1,
	DefenseWeight:           1,
	GenerationMultiplier:    1,
}

// testSettings uses 4 ticks per second so every dt is an exact binary fraction
func testSettings() Settings {
	s := DefaultSettings()
	s.TickRate = 4
	s.BaseGenerationRate = 0
	return s
}

func newTestConfig(territories []core.Territory, automated bool) MatchConfig {
	return MatchConfig{
		MatchID:     "test-match",
		Territories: territories,
		Factions: []FactionSetup{
			{ID: testutil.Player},
			{ID: testutil.Opponent, Automated: automated, Difficulty: aggressive},
		},
		Settings:         testSettings(),
		StrategistParams: ai.DefaultParams(),
		Rng:              testutil.NewTestRNG(42),
		Logger:           testutil.NopLogger(),
	}
}

func newStartedEngine(t *testing.T, cfg MatchConfig) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, e.Start())
	return e
}

// recorder captures every flushed event in order
type recorder struct {
	events []events.Event
}

func record(e *Engine) *recorder {
	r := &recorder{}
	e.Bus().SubscribeFunc(events.TypeAll, func(ev events.Event) {
		r.events = append(r.events, ev)
	})
	return r
}

func (r *recorder) types() []string {
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type()
	}
	return out
}

func (r *recorder) count(eventType string) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type() == eventType {
			n++
		}
	}
	return n
}

func (r *recorder) reset() { r.events = nil }

func tickN(t *testing.T, e *Engine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, e.Tick(context.Background()))
	}
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(context.Background(), newTestConfig(testutil.CreateDuelSetup(), false))
	require.NoError(t, err)

	assert.Equal(t, "test-match", e.MatchID())
	assert.Equal(t, states.PhaseSetup, e.Phase())
	assert.Equal(t, int64(0), e.CurrentTick())
	assert.Len(t, e.Territories(), 3)
	assert.Empty(t, e.Troops())
	_, ok := e.Result()
	assert.False(t, ok)
}

func TestNewEngine_EmptyMatchID_GeneratesID(t *testing.T) {
	cfg := newTestConfig(testutil.CreateDuelSetup(), false)
	cfg.MatchID = ""

	e, err := NewEngine(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, e.MatchID())
}

func TestNewEngine_InvalidSetup(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MatchConfig)
	}{
		{"no territories", func(c *MatchConfig) { c.Territories = nil }},
		{"no factions", func(c *MatchConfig) { c.Factions = nil }},
		{"neutral faction", func(c *MatchConfig) {
			c.Factions = append(c.Factions, FactionSetup{ID: core.NeutralID})
		}},
		{"duplicate faction", func(c *MatchConfig) {
			c.Factions = append(c.Factions, FactionSetup{ID: testutil.Player})
		}},
		{"undeclared owner", func(c *MatchConfig) {
			c.Territories = append(c.Territories, testutil.NewTerritory(9, 7, 5, 900, 0))
		}},
		{"undeclared primary", func(c *MatchConfig) { c.Settings.PrimaryFaction = 5 }},
		{"zero tick rate", func(c *MatchConfig) { c.Settings.TickRate = 0 }},
		{"bad arrival factor", func(c *MatchConfig) { c.Settings.ArrivalFactor = 1.5 }},
		{"bad difficulty", func(c *MatchConfig) {
			c.Factions[1].Difficulty = ai.Difficulty{Name: "broken", AttackProbability: 2, ThinkIntervalMultiplier: 1}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(testutil.CreateDuelSetup(), true)
			tt.mutate(&cfg)

			_, err := NewEngine(context.Background(), cfg)
			assert.ErrorIs(t, err, core.ErrInvalidSetup)
		})
	}
}

func TestNewEngine_DuplicateTerritory_Fails(t *testing.T) {
	cfg := newTestConfig([]core.Territory{
		testutil.NewTerritory(0, testutil.Player, 10, 0, 0),
		testutil.NewTerritory(0, testutil.Opponent, 10, 100, 0),
	}, false)

	_, err := NewEngine(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(ctx, newTestConfig(testutil.CreateDuelSetup(), false))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Start_PublishesTransitionAndStarted(t *testing.T) {
	e, err := NewEngine(context.Background(), newTestConfig(testutil.CreateDuelSetup(), false))
	require.NoError(t, err)
	rec := record(e)

	require.NoError(t, e.Start())

	assert.Equal(t, states.PhaseRunning, e.Phase())
	assert.Equal(t, []string{events.TypeStateTransition, events.TypeMatchStarted}, rec.types())
	started := rec.events[1].(*events.MatchStartedEvent)
	assert.Equal(t, 3, started.Territories)
	assert.Equal(t, []core.FactionID{testutil.Player, testutil.Opponent}, started.Factions)

	assert.Error(t, e.Start(), "starting twice should fail")
}

func TestEngine_Tick_BeforeStart_IsNoOp(t *testing.T) {
	e, err := NewEngine(context.Background(), newTestConfig(testutil.CreateDuelSetup(), false))
	require.NoError(t, err)

	require.NoError(t, e.Tick(context.Background()))
	assert.Equal(t, int64(0), e.CurrentTick())
}

func TestEngine_Tick_AdvancesClock(t *testing.T) {
	e := newStartedEngine(t, newTestConfig(testutil.CreateDuelSetup(), false))
	rec := record(e)

	tickN(t, e, 4)

	assert.Equal(t, int64(4), e.CurrentTick())
	assert.Equal(t, 1.0, e.Elapsed())
	assert.Equal(t, 4, rec.count(events.TypeTickCompleted))

	last := rec.events[len(rec.events)-1].(*events.TickCompletedEvent)
	assert.Equal(t, int64(4), last.TickNumber())
	require.Len(t, last.Stats, 2)
	assert.Equal(t, events.FactionStat{Faction: testutil.Player, Territories: 1, Garrison: 10}, last.Stats[0])
}

func TestEngine_Tick_CancelledContext_DoesNotAdvance(t *testing.T) {
	e := newStartedEngine(t, newTestConfig(testutil.CreateDuelSetup(), false))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Tick(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), e.CurrentTick())
}

func TestEngine_Generation_AppliesWholeUnits(t *testing.T) {
	cfg := newTestConfig(testutil.CreateDuelSetup(), false)
	cfg.Settings.BaseGenerationRate = 1
	cfg.Settings.GenerationEvents = true
	e := newStartedEngine(t, cfg)
	rec := record(e)

	tickN(t, e, 3)
	p, _ := e.Territory(0)
	assert.Equal(t, 10, p.Garrison, "fractional growth is carried")
	assert.Equal(t, 0, rec.count(events.TypeTerritoryGenerated))

	tickN(t, e, 1)
	p, _ = e.Territory(0)
	assert.Equal(t, 11, p.Garrison)
	n, _ := e.Territory(1)
	assert.Equal(t, 5, n.Garrison, "neutral territories never grow")
	assert.Equal(t, 2, rec.count(events.TypeTerritoryGenerated))
}

func TestEngine_Generation_AutomatedMultiplier(t *testing.T) {
	cfg := newTestConfig(testutil.CreateDuelSetup(), true)
	cfg.Settings.BaseGenerationRate = 1
	cfg.Factions[1].Difficulty = ai.Hard

	e, err := NewEngine(context.Background(), cfg)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, e.generation.Rate(testutil.Player), 1e-9)
	assert.InDelta(t, 1.2, e.generation.Rate(testutil.Opponent), 1e-9)
}

func TestEngine_Dispatch_LaunchesTroop(t *testing.T) {
	e := newStartedEngine(t, newTestConfig(testutil.CreateDuelSetup(), false))
	rec := record(e)

	troop, err := e.Dispatch(core.DispatchAll(testutil.Player, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, 9, troop.Count)
	src, _ := e.Territory(0)
	assert.Equal(t, 1, src.Garrison)
	assert.Len(t, e.Troops(), 1)
	require.Equal(t, []string{events.TypeUnitsDispatched}, rec.types(), "player dispatches publish between ticks")
	assert.Equal(t, int64(0), rec.events[0].TickNumber())

	tickN(t, e, 1)
	require.Equal(t, []string{events.TypeUnitsDispatched, events.TypeTickCompleted}, rec.types())
	dispatched := rec.events[0].(*events.UnitsDispatchedEvent)
	assert.Equal(t, 1, dispatched.SourceGarrison)
	assert.InDelta(t, 120.0/200.0, dispatched.Rate, 1e-9)
}

func TestEngine_Dispatch_Rejections(t *testing.T) {
	tests := []struct {
		name string
		cmd  core.DispatchCommand
		want error
	}{
		{"not owned", core.DispatchAll(testutil.Player, 2, 1), core.ErrNotOwned},
		{"same territory", core.DispatchAll(testutil.Player, 0, 0), core.ErrSameTerritory},
		{"unknown target", core.DispatchAll(testutil.Player, 0, 42), core.ErrUnknownTerritory},
		{"too many", core.DispatchCommand{Faction: testutil.Player, Source: 0, Target: 1, Count: 10}, core.ErrInsufficientGarrison},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newStartedEngine(t, newTestConfig(testutil.CreateDuelSetup(), false))
			rec := record(e)

			_, err := e.Dispatch(tt.cmd)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, e.Troops())

			tickN(t, e, 1)
			assert.Equal(t, 1, rec.count(events.TypeDispatchRejected))
		})
	}
}

func TestEngine_Dispatch_BeforeStart_NotRunning(t *testing.T) {
	e, err := NewEngine(context.Background(), newTestConfig(testutil.CreateDuelSetup(), false))
	require.NoError(t, err)

	_, err = e.Dispatch(core.DispatchAll(testutil.Player, 0, 1))
	assert.ErrorIs(t, err, core.ErrMatchNotRunning)
}

func TestEngine_Arrival_CapturesNeutral(t *testing.T) {
	e := newStartedEngine(t, newTestConfig(testutil.CreateDuelSetup(), false))
	rec := record(e)
	_, err := e.Dispatch(core.DispatchAll(testutil.Player, 0, 1))
	require.NoError(t, err)

	// 30 units per tick over 200: 20 remaining after tick 6, arrives on tick 7
	tickN(t, e, 6)
	assert.Len(t, e.Troops(), 1)
	assert.Equal(t, 0, rec.count(events.TypeUnitsArrived))

	tickN(t, e, 1)
	assert.Empty(t, e.Troops())
	require.Equal(t, 1, rec.count(events.TypeUnitsArrived))

	var arrived *events.UnitsArrivedEvent
	for _, ev := range rec.events {
		if a, ok := ev.(*events.UnitsArrivedEvent); ok {
			arrived = a
		}
	}
	assert.Equal(t, int64(7), arrived.TickNumber())
	assert.Equal(t, core.OutcomeCaptured, arrived.Outcome)
	assert.Equal(t, core.NeutralID, arrived.PreviousOwner)
	assert.Equal(t, 4, arrived.Garrison)

	captured, _ := e.Territory(1)
	assert.Equal(t, testutil.Player, captured.Owner)
	assert.Equal(t, 4, captured.Garrison)
	assert.Equal(t, states.PhaseRunning, e.Phase())
}

func TestEngine_Conquest_EndsMatchOnce(t *testing.T) {
	cfg := newTestConfig([]core.Territory{
		testutil.NewTerritory(0, testutil.Player, 10, 0, 0),
		testutil.NewTerritory(1, testutil.Opponent, 3, 110, 0),
	}, false)
	e := newStartedEngine(t, cfg)
	rec := record(e)

	_, err := e.Dispatch(core.DispatchAll(testutil.Player, 0, 1))
	require.NoError(t, err)
	tickN(t, e, 4)

	assert.Equal(t, states.PhaseEnded, e.Phase())
	result, ok := e.Result()
	require.True(t, ok)
	assert.True(t, result.Won)
	assert.Equal(t, ReasonConquest, result.Reason)
	assert.Equal(t, 2, result.TerritoriesOwned)
	assert.Equal(t, 2, result.TotalTerritories)
	assert.Equal(t, 1.0, result.ElapsedSeconds)

	// further ticks and commands change nothing
	tickN(t, e, 5)
	assert.Equal(t, int64(4), e.CurrentTick())
	_, err = e.Dispatch(core.DispatchAll(testutil.Player, 1, 0))
	assert.ErrorIs(t, err, core.ErrMatchOver)
	assert.ErrorIs(t, e.Surrender(), core.ErrMatchOver)
	assert.ErrorIs(t, e.Abort("late"), core.ErrMatchOver)

	assert.Equal(t, 1, rec.count(events.TypeMatchEnded))
	types := rec.types()
	assert.Equal(t, events.TypeTickCompleted, types[len(types)-1])
}

func TestEngine_Elimination_Loses(t *testing.T) {
	cfg := newTestConfig([]core.Territory{
		testutil.NewTerritory(0, testutil.Player, 3, 0, 0),
		testutil.NewTerritory(1, testutil.Opponent, 10, 110, 0),
	}, false)
	e := newStartedEngine(t, cfg)
	rec := record(e)

	_, err := e.Dispatch(core.DispatchAll(testutil.Opponent, 1, 0))
	require.NoError(t, err)
	tickN(t, e, 4)

	result, ok := e.Result()
	require.True(t, ok)
	assert.False(t, result.Won)
	assert.Equal(t, ReasonEliminated, result.Reason)
	assert.Equal(t, 0, result.TerritoriesOwned)

	require.Equal(t, 1, rec.count(events.TypeMatchEnded))
	for _, ev := range rec.events {
		if ended, ok := ev.(*events.MatchEndedEvent); ok {
			assert.False(t, ended.Won)
			assert.Equal(t, int64(4), ended.TickNumber())
		}
	}
}

func TestEngine_Surrender(t *testing.T) {
	e := newStartedEngine(t, newTestConfig(testutil.CreateDuelSetup(), false))
	rec := record(e)

	require.NoError(t, e.Surrender())

	assert.Equal(t, states.PhaseEnded, e.Phase())
	result, ok := e.Result()
	require.True(t, ok)
	assert.False(t, result.Won)
	assert.Equal(t, ReasonSurrender, result.Reason)
	assert.Equal(t, 1, result.TerritoriesOwned)
	assert.Equal(t, 1, rec.count(events.TypeMatchEnded))
}

func TestEngine_Abort_NoResult(t *testing.T) {
	e := newStartedEngine(t, newTestConfig(testutil.CreateDuelSetup(), false))
	_, err := e.Dispatch(core.DispatchAll(testutil.Player, 0, 1))
	require.NoError(t, err)
	rec := record(e)

	require.NoError(t, e.Abort("shutdown"))

	assert.Equal(t, states.PhaseAborted, e.Phase())
	assert.Empty(t, e.Troops())
	_, ok := e.Result()
	assert.False(t, ok)
	assert.Equal(t, 0, rec.count(events.TypeMatchEnded))
	assert.Equal(t, 1, rec.count(events.TypeMatchAborted))
}

func TestEngine_PauseResume(t *testing.T) {
	e := newStartedEngine(t, newTestConfig(testutil.CreateDuelSetup(), false))
	tickN(t, e, 2)

	require.NoError(t, e.Pause())
	tickN(t, e, 3)
	assert.Equal(t, int64(2), e.CurrentTick(), "paused clock does not advance")

	_, err := e.Dispatch(core.DispatchAll(testutil.Player, 0, 1))
	assert.ErrorIs(t, err, core.ErrMatchNotRunning)

	require.NoError(t, e.Resume())
	tickN(t, e, 1)
	assert.Equal(t, int64(3), e.CurrentTick())
	assert.Error(t, e.Resume(), "resume requires a paused match")
}

func TestEngine_Strategist_DispatchesForAutomatedFaction(t *testing.T) {
	e := newStartedEngine(t, newTestConfig(testutil.CreateDuelSetup(), true))
	rec := record(e)

	// 2 second think interval at 4 ticks per second
	tickN(t, e, 7)
	assert.Equal(t, 0, rec.count(events.TypeUnitsDispatched))

	tickN(t, e, 1)
	require.Equal(t, 1, rec.count(events.TypeUnitsDispatched))
	troops := e.Troops()
	require.Len(t, troops, 1)
	assert.Equal(t, testutil.Opponent, troops[0].Owner)
	assert.Equal(t, core.TerritoryID(2), troops[0].Source)

	phase, ok := e.StrategistPhase(testutil.Opponent)
	require.True(t, ok)
	assert.Equal(t, ai.PhaseIdle, phase)
	_, ok = e.StrategistPhase(testutil.Player)
	assert.False(t, ok, "human seats have no strategist")
}

func TestEngine_GarrisonNeverNegative(t *testing.T) {
	cfg := newTestConfig(testutil.CreateRingSetup(6), true)
	cfg.Settings.BaseGenerationRate = 1
	e := newStartedEngine(t, cfg)

	for i := 0; i < 400 && !e.Phase().IsTerminal(); i++ {
		if i%10 == 0 {
			for _, tr := range e.Territories() {
				if tr.Owner == testutil.Player && tr.Garrison > 1 {
					_, _ = e.Dispatch(core.DispatchCommand{Faction: testutil.Player, Source: tr.ID, Target: tr.ID + 1, Fraction: 0.5})
				}
			}
		}
		require.NoError(t, e.Tick(context.Background()))
		for _, tr := range e.Territories() {
			require.GreaterOrEqual(t, tr.Garrison, 0)
		}
	}
}

func TestEngine_LegalDispatchesAndProgress(t *testing.T) {
	e := newStartedEngine(t, newTestConfig(testutil.CreateDuelSetup(), false))

	pairs := e.LegalDispatches(testutil.Player)
	require.Len(t, pairs, 2)
	assert.Equal(t, core.TerritoryID(1), pairs[0].Target.ID)
	assert.Equal(t, core.TerritoryID(2), pairs[1].Target.ID)
	assert.InDelta(t, 1.0/3.0, e.Progress(), 1e-9)

	_, err := e.Dispatch(core.DispatchAll(testutil.Player, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, e.LegalDispatches(testutil.Player), "a garrison of one has nothing to spare")
}
