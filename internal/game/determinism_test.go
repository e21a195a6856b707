package game

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/conquest/internal/game/ai"
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
	"github.com/mitchelldurbincs/conquest/internal/game/mapgen"
	"github.com/mitchelldurbincs/conquest/internal/testutil"
)

// trace is the seed-dependent output of a match, without wall clock fields
type trace struct {
	Dispatched []core.Troop
	Arrivals   []core.Arrival
	// ArrivalTicks[i] is the tick that resolved Arrivals[i]
	ArrivalTicks []int64
	Final        []core.Territory
	Tick         int64
}

func runSeeded(t *testing.T, seed int64, ticks int) trace {
	t.Helper()

	factions := []core.FactionID{0, 1, 2}
	territories, err := mapgen.NewGenerator(mapgen.DefaultMapConfig(14), testutil.NewTestRNG(seed)).Generate(factions)
	require.NoError(t, err)

	cfg := MatchConfig{
		MatchID:     "determinism",
		Territories: territories,
		Factions: []FactionSetup{
			{ID: 0},
			{ID: 1, Automated: true, Difficulty: ai.Normal},
			{ID: 2, Automated: true, Difficulty: ai.Hard},
		},
		Settings:         testSettings(),
		StrategistParams: ai.DefaultParams(),
		Rng:              testutil.NewTestRNG(seed),
		Logger:           testutil.NopLogger(),
	}
	cfg.Settings.BaseGenerationRate = 1

	e := newStartedEngine(t, cfg)
	var tr trace
	e.Bus().SubscribeFunc(events.TypeUnitsDispatched, func(ev events.Event) {
		d := ev.(*events.UnitsDispatchedEvent)
		tr.Dispatched = append(tr.Dispatched, core.Troop{ID: d.TroopID, Owner: d.Owner, Source: d.Source, Target: d.Target, Count: d.Count})
	})
	e.Bus().SubscribeFunc(events.TypeUnitsArrived, func(ev events.Event) {
		tr.Arrivals = append(tr.Arrivals, ev.(*events.UnitsArrivedEvent).Arrival)
		tr.ArrivalTicks = append(tr.ArrivalTicks, ev.TickNumber())
	})

	for i := 0; i < ticks && !e.Phase().IsTerminal(); i++ {
		require.NoError(t, e.Tick(context.Background()))
	}
	tr.Final = e.Territories()
	tr.Tick = e.CurrentTick()
	return tr
}

func TestEngine_SameSeed_SameMatch(t *testing.T) {
	a := runSeeded(t, 7, 600)
	b := runSeeded(t, 7, 600)

	require.NotEmpty(t, a.Dispatched, "strategists should have acted")

	// compare the wire encoding so unexported bookkeeping is ignored
	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(ja), string(jb))
}

func TestEngine_ArrivalsResolveInGroupOrder(t *testing.T) {
	tr := runSeeded(t, 11, 600)

	for i := 1; i < len(tr.Arrivals); i++ {
		if tr.ArrivalTicks[i] != tr.ArrivalTicks[i-1] {
			continue
		}
		assert.Less(t, tr.Arrivals[i-1].GroupID, tr.Arrivals[i].GroupID,
			"arrivals in tick %d out of order", tr.ArrivalTicks[i])
	}
}
