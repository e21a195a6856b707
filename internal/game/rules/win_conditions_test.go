package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/testutil"
)

func TestWinConditionChecker_Check(t *testing.T) {
	third := core.FactionID(2)
	roster := []core.FactionID{testutil.Player, testutil.Opponent, third}

	tests := []struct {
		name   string
		owners []core.FactionID
		want   Verdict
	}{
		{"everyone alive", []core.FactionID{testutil.Player, testutil.Opponent, third}, InProgress},
		{"one rival left", []core.FactionID{testutil.Player, core.NeutralID, third}, InProgress},
		{"all rivals gone", []core.FactionID{testutil.Player, core.NeutralID, testutil.Player}, Won},
		{"primary gone", []core.FactionID{testutil.Opponent, core.NeutralID, third}, Lost},
		{"only neutral left", []core.FactionID{core.NeutralID, core.NeutralID, core.NeutralID}, Lost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			territories := make([]core.Territory, len(tt.owners))
			for i, owner := range tt.owners {
				territories[i] = testutil.NewTerritory(i, owner, 3, float64(i)*100, 0)
			}
			ledger := testutil.NewTestLedger(t, territories...)
			wc := NewWinConditionChecker(testutil.NopLogger(), testutil.Player, roster)

			assert.Equal(t, tt.want, wc.Check(ledger))
		})
	}
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "in_progress", InProgress.String())
	assert.Equal(t, "won", Won.String())
	assert.Equal(t, "lost", Lost.String())
	assert.Equal(t, "unknown", Verdict(9).String())
}
