package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

// DefaultRadius is the radius used by NewTerritory
const DefaultRadius = 20.0

// Faction ids used throughout the test fixtures
const (
	Player   core.FactionID = 0
	Opponent core.FactionID = 1
)

// NewTerritory creates a territory at (x, y) with the default radius
func NewTerritory(id int, owner core.FactionID, garrison int, x, y float64) core.Territory {
	return core.Territory{
		ID:       core.TerritoryID(id),
		Position: core.NewVec2(x, y),
		Radius:   DefaultRadius,
		Owner:    owner,
		Garrison: garrison,
	}
}

// NewTestLedger builds a ledger and fails the test if the setup is invalid
func NewTestLedger(t testing.TB, territories ...core.Territory) *core.Ledger {
	t.Helper()
	ledger, err := core.NewLedger(territories)
	require.NoError(t, err)
	return ledger
}

// CreateDuelSetup creates three territories on a line.
// Player at (0,0) with 10, neutral at (200,0) with 5, opponent at (400,0) with 10.
func CreateDuelSetup() []core.Territory {
	return []core.Territory{
		NewTerritory(0, Player, 10, 0, 0),
		NewTerritory(1, core.NeutralID, 5, 200, 0),
		NewTerritory(2, Opponent, 10, 400, 0),
	}
}

// CreateRingSetup creates n territories spaced 150 units apart on a row,
// the first owned by the player, the last by the opponent and the rest neutral.
func CreateRingSetup(n int) []core.Territory {
	out := make([]core.Territory, n)
	for i := 0; i < n; i++ {
		owner := core.NeutralID
		garrison := 5
		switch i {
		case 0:
			owner, garrison = Player, 10
		case n - 1:
			owner, garrison = Opponent, 10
		}
		out[i] = NewTerritory(i, owner, garrison, float64(i)*150, 0)
	}
	return out
}
