package ai

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/testutil"
)

const bot = testutil.Opponent

func TestScoreCandidates_LoneNeutralTarget_IsTopAndCapturable(t *testing.T) {
	ledger := testutil.NewTestLedger(t,
		testutil.NewTerritory(0, bot, 20, 0, 0),
		testutil.NewTerritory(1, core.NeutralID, 5, 200, 0),
	)
	p := DefaultParams()

	candidates := ScoreCandidates(p, Normal, bot, ledger)
	require.Len(t, candidates, 1)

	top := candidates[0]
	assert.Equal(t, core.TerritoryID(1), top.Target.ID)
	// capture 100 + surplus 28 + attrition 30 + neutral 50 + proximity 24 + radius 10
	assert.InDelta(t, 242.0, top.Score, 1e-9)

	count := DispatchCount(p, top.Source, top.Target)
	assert.Greater(t, count, 5)
	assert.Less(t, count, top.Source.Garrison)
}

func TestScoreCandidates_ThreatPenaltyAppliesToOverextendedSource(t *testing.T) {
	ledger := testutil.NewTestLedger(t,
		testutil.NewTerritory(0, bot, 20, 0, 0),
		testutil.NewTerritory(1, testutil.Player, 3, 100, 0),
		testutil.NewTerritory(2, core.NeutralID, 5, 0, 300),
	)

	candidates := ScoreCandidates(DefaultParams(), Normal, bot, ledger)
	require.Len(t, candidates, 2)

	// attacking the only hostile neighbour removes the threat
	assert.Equal(t, core.TerritoryID(1), candidates[0].Target.ID)
	assert.InDelta(t, 204.0, candidates[0].Score, 1e-9)

	// expanding elsewhere leaves one unit facing three
	assert.Equal(t, core.TerritoryID(2), candidates[1].Target.ID)
	assert.InDelta(t, 184.0, candidates[1].Score, 1e-9)
}

func TestScoreCandidates_DefenseWeightScalesThreat(t *testing.T) {
	ledger := testutil.NewTestLedger(t,
		testutil.NewTerritory(0, bot, 20, 0, 0),
		testutil.NewTerritory(1, testutil.Player, 2, 100, 0),
		testutil.NewTerritory(2, core.NeutralID, 5, 0, 300),
	)
	timid := Normal
	timid.DefenseWeight = 0.4 // 2 * 0.4 does not exceed the unit left behind

	normal := ScoreCandidates(DefaultParams(), Normal, bot, ledger)
	relaxed := ScoreCandidates(DefaultParams(), timid, bot, ledger)

	find := func(cs []Candidate, id core.TerritoryID) float64 {
		for _, c := range cs {
			if c.Target.ID == id {
				return c.Score
			}
		}
		t.Fatalf("target %d not scored", id)
		return 0
	}
	assert.InDelta(t, 50.0, find(relaxed, 2)-find(normal, 2), 1e-9)
}

func TestScoreCandidates_GatewayBonusCountsNeutralNeighbours(t *testing.T) {
	ledger := testutil.NewTestLedger(t,
		testutil.NewTerritory(0, bot, 20, 0, 0),
		testutil.NewTerritory(1, core.NeutralID, 5, 300, 0),
		testutil.NewTerritory(2, core.NeutralID, 5, 300, 150),
		testutil.NewTerritory(3, core.NeutralID, 5, 300, -150),
	)

	candidates := ScoreCandidates(DefaultParams(), Normal, bot, ledger)
	require.Len(t, candidates, 3)

	// target 1 sits between two neutrals, each outer one only sees target 1
	assert.Equal(t, core.TerritoryID(1), candidates[0].Target.ID)
	assert.Equal(t, core.TerritoryID(2), candidates[1].Target.ID)

	// one extra gateway plus the proximity edge of the nearer target
	d1 := 300.0
	d2 := math.Hypot(300, 150)
	want := 10 + 40*(d2-d1)/500
	assert.InDelta(t, want, candidates[0].Score-candidates[1].Score, 1e-9)
}

func TestScoreCandidates_SkipsWeakSourcesAndOwnTargets(t *testing.T) {
	ledger := testutil.NewTestLedger(t,
		testutil.NewTerritory(0, bot, 2, 0, 0),
		testutil.NewTerritory(1, bot, 9, 100, 0),
		testutil.NewTerritory(2, core.NeutralID, 5, 200, 0),
	)

	candidates := ScoreCandidates(DefaultParams(), Normal, bot, ledger)
	require.Len(t, candidates, 1)
	assert.Equal(t, core.TerritoryID(1), candidates[0].Source.ID)
	assert.Equal(t, core.TerritoryID(2), candidates[0].Target.ID)
}

func TestScoreCandidates_TiesKeepSourceTargetOrder(t *testing.T) {
	ledger := testutil.NewTestLedger(t,
		testutil.NewTerritory(0, bot, 10, 0, 0),
		testutil.NewTerritory(1, core.NeutralID, 5, 1000, 0),
		testutil.NewTerritory(2, core.NeutralID, 5, -1000, 0),
	)

	candidates := ScoreCandidates(DefaultParams(), Normal, bot, ledger)
	require.Len(t, candidates, 2)
	assert.Equal(t, candidates[0].Score, candidates[1].Score)
	assert.Equal(t, core.TerritoryID(1), candidates[0].Target.ID)
	assert.Equal(t, core.TerritoryID(2), candidates[1].Target.ID)
}

func TestDispatchCount(t *testing.T) {
	p := DefaultParams()
	src := testutil.NewTerritory(0, bot, 20, 0, 0)

	tests := []struct {
		name     string
		garrison int
		want     int
	}{
		{"comfortable margin keeps reserve", 5, 15},
		{"slight margin sends everything", 15, 19},
		{"infeasible capture still harasses", 30, 19},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := testutil.NewTerritory(1, core.NeutralID, tt.garrison, 100, 0)
			assert.Equal(t, tt.want, DispatchCount(p, src, dst))
		})
	}

	empty := testutil.NewTerritory(2, bot, 1, 0, 0)
	assert.Equal(t, 0, DispatchCount(p, empty, src))
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.TopN = 0
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.SendFraction = 1.2
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.ProximityRange = 0
	assert.Error(t, p.Validate())
}

func TestDifficultyByName(t *testing.T) {
	for _, name := range []string{"easy", "Normal", " hard ", ""} {
		d, err := DifficultyByName(name)
		require.NoError(t, err, name)
		assert.NoError(t, d.Validate())
	}

	_, err := DifficultyByName("nightmare")
	assert.Error(t, err)

	assert.Less(t, Hard.ThinkIntervalMultiplier, Easy.ThinkIntervalMultiplier)
	assert.Greater(t, Hard.AttackProbability, Easy.AttackProbability)
}
