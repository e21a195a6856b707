package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/conquest/internal/game"
	"github.com/mitchelldurbincs/conquest/internal/game/ai"
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/mapgen"
	"github.com/mitchelldurbincs/conquest/internal/game/rules"
	"github.com/mitchelldurbincs/conquest/internal/testutil"
)

func legal(t *testing.T, territories []core.Territory) []rules.DispatchPair {
	return rules.LegalDispatches(testutil.NewTestLedger(t, territories...), testutil.Player)
}

func TestScriptPlan_NearestWeakerTarget_SendsAllFromStrongest(t *testing.T) {
	territories := []core.Territory{
		testutil.NewTerritory(0, testutil.Player, 4, 0, 0),
		testutil.NewTerritory(1, testutil.Player, 12, 100, 0),
		testutil.NewTerritory(2, core.NeutralID, 5, 300, 0),
		testutil.NewTerritory(3, core.NeutralID, 20, 150, 0),
		testutil.NewTerritory(4, testutil.Opponent, 8, 500, 0),
	}

	cmd, ok := newScript(testutil.Player, 20).plan(legal(t, territories))
	require.True(t, ok)
	assert.Equal(t, core.DispatchAll(testutil.Player, 1, 2), cmd)
}

func TestScriptPlan_NothingTakeable_NoCommand(t *testing.T) {
	territories := []core.Territory{
		testutil.NewTerritory(0, testutil.Player, 3, 0, 0),
		testutil.NewTerritory(1, testutil.Opponent, 10, 200, 0),
	}

	_, ok := newScript(testutil.Player, 20).plan(legal(t, territories))
	assert.False(t, ok)
}

func TestScriptPlan_NoDispatchableTerritory_NoCommand(t *testing.T) {
	territories := []core.Territory{
		testutil.NewTerritory(0, testutil.Player, 1, 0, 0),
		testutil.NewTerritory(1, core.NeutralID, 0, 200, 0),
	}

	_, ok := newScript(testutil.Player, 20).plan(legal(t, territories))
	assert.False(t, ok)
}

func TestBuildMatch_SeatsOpponents(t *testing.T) {
	settings := game.DefaultSettings()
	cfg, err := buildMatch(settings, ai.DefaultParams(), mapgen.DefaultMapConfig(10), ai.Normal, 3, 42, false, zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, cfg.Factions, 4)
	assert.Equal(t, settings.PrimaryFaction, cfg.Factions[0].ID)
	assert.False(t, cfg.Factions[0].Automated)
	seen := map[core.FactionID]bool{}
	for _, f := range cfg.Factions {
		assert.False(t, seen[f.ID], "faction %d seated twice", f.ID)
		seen[f.ID] = true
	}
	for _, f := range cfg.Factions[1:] {
		assert.True(t, f.Automated)
	}
	assert.Equal(t, "sim-42", cfg.MatchID)
}

func TestBuildMatch_SameSeed_SameMap(t *testing.T) {
	a, err := buildMatch(game.DefaultSettings(), ai.DefaultParams(), mapgen.DefaultMapConfig(10), ai.Easy, 1, 7, true, zerolog.Nop())
	require.NoError(t, err)
	b, err := buildMatch(game.DefaultSettings(), ai.DefaultParams(), mapgen.DefaultMapConfig(10), ai.Easy, 1, 7, true, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, a.Territories, b.Territories)
}
