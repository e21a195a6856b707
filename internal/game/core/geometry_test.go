package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVec2_DistanceTo(t *testing.T) {
	assert.InDelta(t, 5.0, NewVec2(0, 0).DistanceTo(NewVec2(3, 4)), 1e-9)
	assert.InDelta(t, 0.0, NewVec2(2, 2).DistanceTo(NewVec2(2, 2)), 1e-9)
}

func TestVec2_Lerp(t *testing.T) {
	a, b := NewVec2(0, 0), NewVec2(10, 20)

	assert.Equal(t, a, a.Lerp(b, 0))
	assert.Equal(t, b, a.Lerp(b, 1))
	assert.Equal(t, NewVec2(5, 10), a.Lerp(b, 0.5))
}

func TestTroop_Geometry(t *testing.T) {
	tr := Troop{From: NewVec2(0, 0), To: NewVec2(100, 0), Progress: 0.25}

	assert.InDelta(t, 100.0, tr.Length(), 1e-9)
	assert.Equal(t, NewVec2(25, 0), tr.Position())
	assert.InDelta(t, 75.0, tr.RemainingDistance(), 1e-9)
}

func TestOutcome_TextRoundTrip(t *testing.T) {
	for _, o := range []Outcome{OutcomeReinforced, OutcomeDefended, OutcomeCaptured} {
		data, err := json.Marshal(o)
		require.NoError(t, err)

		var got Outcome
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, o, got)
	}

	var o Outcome
	assert.Error(t, o.UnmarshalText([]byte("exploded")))
	assert.Equal(t, "unknown(9)", Outcome(9).String())
}

func TestTerritory_Dispatchable(t *testing.T) {
	assert.Equal(t, 0, (&Territory{Garrison: 0}).Dispatchable())
	assert.Equal(t, 0, (&Territory{Garrison: 1}).Dispatchable())
	assert.Equal(t, 19, (&Territory{Garrison: 20}).Dispatchable())
}
