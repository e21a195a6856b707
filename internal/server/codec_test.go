package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/netsync"
)

func TestCodec_Message_SurvivesStruct(t *testing.T) {
	msg := netsync.Message{
		Seq:     1_000_000,
		Kind:    netsync.KindDispatch,
		MatchID: "m",
		Tick:    42,
		Dispatch: &netsync.TroopState{
			ID:       7,
			Owner:    1,
			Count:    12,
			From:     core.NewVec2(0, 0),
			To:       core.NewVec2(150.5, -20),
			Progress: 0.25,
			Rate:     0.6,
		},
	}

	s, err := toStruct(msg)
	require.NoError(t, err)

	var got netsync.Message
	require.NoError(t, fromStruct(s, &got))
	assert.Equal(t, msg, got)
}

func TestCodec_NilStruct_DecodesZero(t *testing.T) {
	var req MatchRequest
	require.NoError(t, fromStruct(nil, &req))
	assert.Empty(t, req.MatchID)
}

func TestCodec_WrongShape_Errors(t *testing.T) {
	s, err := toStruct(map[string]any{"match_id": 5})
	require.NoError(t, err)

	var req MatchRequest
	assert.Error(t, fromStruct(s, &req))
}
