package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/testutil"
)

func newTravelFixture(t *testing.T) (*TravelResolver, *core.Ledger) {
	t.Helper()
	ledger := testutil.NewTestLedger(t, testutil.CreateDuelSetup()...)
	return NewTravelResolver(100, 0.5, testutil.NopLogger()), ledger
}

func launch(t *testing.T, tr *TravelResolver, ledger *core.Ledger, owner core.FactionID, src, dst core.TerritoryID, count int) core.Troop {
	t.Helper()
	s, ok := ledger.Get(src)
	require.True(t, ok)
	d, ok := ledger.Get(dst)
	require.True(t, ok)
	return tr.Launch(owner, s, d, count)
}

func TestTravelResolver_Launch_AssignsIncreasingIDs(t *testing.T) {
	tr, ledger := newTravelFixture(t)

	a := launch(t, tr, ledger, testutil.Player, 0, 1, 4)
	b := launch(t, tr, ledger, testutil.Player, 0, 2, 3)

	assert.Equal(t, uint64(1), a.ID)
	assert.Equal(t, uint64(2), b.ID)
	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, 7, tr.UnitsInFlight(testutil.Player))
	assert.Equal(t, 0, tr.UnitsInFlight(testutil.Opponent))
	assert.Equal(t, core.NewVec2(0, 0), a.From)
	assert.Equal(t, core.NewVec2(200, 0), a.To)
}

func TestTravelResolver_Advance_MovesProportionallyToSpeed(t *testing.T) {
	tr, ledger := newTravelFixture(t)
	launch(t, tr, ledger, testutil.Player, 0, 1, 4)

	for i := 0; i < 3; i++ {
		arrived := tr.Advance(0.5, ledger)
		assert.Empty(t, arrived, "step %d", i)
	}

	live := tr.Live()
	require.Len(t, live, 1)
	assert.InDelta(t, 0.75, live[0].Progress, 1e-9)
	assert.InDelta(t, 150.0, live[0].Position().X, 1e-9)

	arrived := tr.Advance(0.5, ledger)
	require.Len(t, arrived, 1)
	assert.True(t, arrived[0].Arrived)
	assert.InDelta(t, 1.0, arrived[0].Progress, 1e-9)
	assert.Equal(t, 0, tr.Len())
}

func TestTravelResolver_Advance_ArrivesInsideThreshold(t *testing.T) {
	tests := []struct {
		name    string
		dt      float64
		arrives bool
	}{
		{"outside threshold", 1.8, false}, // remaining 20
		{"inside threshold", 1.92, true},  // remaining 8 < 20*0.5
		{"overshoot clamps", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, ledger := newTravelFixture(t)
			launch(t, tr, ledger, testutil.Player, 0, 1, 4)

			arrived := tr.Advance(tt.dt, ledger)
			if tt.arrives {
				require.Len(t, arrived, 1)
				assert.LessOrEqual(t, arrived[0].Progress, 1.0)
				assert.Equal(t, 0, tr.Len())
			} else {
				assert.Empty(t, arrived)
				assert.Equal(t, 1, tr.Len())
			}
		})
	}
}

func TestTravelResolver_Advance_ZeroLengthArrivesImmediately(t *testing.T) {
	ledger := testutil.NewTestLedger(t,
		testutil.NewTerritory(0, testutil.Player, 10, 50, 50),
		testutil.NewTerritory(1, core.NeutralID, 2, 50, 50),
	)
	tr := NewTravelResolver(100, 0.5, testutil.NopLogger())
	launch(t, tr, ledger, testutil.Player, 0, 1, 3)

	arrived := tr.Advance(0.01, ledger)
	require.Len(t, arrived, 1)
	assert.Equal(t, 0.0, tr.Rate(arrived[0]))
}

func TestTravelResolver_Advance_ReturnsArrivalsInIDOrder(t *testing.T) {
	tr, ledger := newTravelFixture(t)
	// the opponent group is launched first but from farther away
	launch(t, tr, ledger, testutil.Opponent, 2, 1, 3)
	launch(t, tr, ledger, testutil.Player, 0, 1, 4)
	launch(t, tr, ledger, testutil.Player, 0, 2, 2)

	arrived := tr.Advance(10, ledger)
	require.Len(t, arrived, 3)
	for i, troop := range arrived {
		assert.Equal(t, uint64(i+1), troop.ID)
	}
}

func TestTravelResolver_Advance_DropsUnknownDestination(t *testing.T) {
	tr, ledger := newTravelFixture(t)
	src, _ := ledger.Get(0)
	ghost := testutil.NewTerritory(99, core.NeutralID, 1, 100, 0)
	tr.Launch(testutil.Player, src, ghost, 3)

	arrived := tr.Advance(10, ledger)
	assert.Empty(t, arrived)
	assert.Equal(t, 0, tr.Len())
}

func TestTravelResolver_Rate(t *testing.T) {
	tr, ledger := newTravelFixture(t)
	troop := launch(t, tr, ledger, testutil.Player, 0, 1, 4)

	assert.InDelta(t, 0.5, tr.Rate(troop), 1e-9)

	tr.Clear()
	assert.Equal(t, 0, tr.Len())
}
