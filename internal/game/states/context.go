package states

import (
	"time"

	"github.com/rs/zerolog"
)

// MatchContext provides match information to states for making decisions
type MatchContext struct {
	MatchID string
	Logger  zerolog.Logger

	// Territories and Factions are fixed at setup
	Territories int
	Factions    int

	// Tick is kept current by the engine so transitions can be stamped
	Tick int64

	StartTime          time.Time
	PauseTime          time.Time
	TotalPauseDuration time.Duration

	// Reason the match finished, set before entering a terminal phase
	Reason string
}

// NewMatchContext creates a new match context
func NewMatchContext(matchID string, territories, factions int, logger zerolog.Logger) *MatchContext {
	return &MatchContext{
		MatchID:     matchID,
		Territories: territories,
		Factions:    factions,
		Logger:      logger.With().Str("match_id", matchID).Logger(),
	}
}

// WallElapsed returns the wall time since the match started, excluding pauses
func (mc *MatchContext) WallElapsed() time.Duration {
	if mc.StartTime.IsZero() {
		return 0
	}
	paused := mc.TotalPauseDuration
	if !mc.PauseTime.IsZero() {
		paused += time.Since(mc.PauseTime)
	}
	return time.Since(mc.StartTime) - paused
}
