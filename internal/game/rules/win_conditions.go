package rules

import (
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

// Verdict is the result of a termination check
type Verdict int

const (
	// InProgress means neither side has been eliminated
	InProgress Verdict = iota
	// Won means every non-primary faction lost its last territory
	Won
	// Lost means the primary faction lost its last territory
	Lost
)

func (v Verdict) String() string {
	switch v {
	case InProgress:
		return "in_progress"
	case Won:
		return "won"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// WinConditionChecker handles match over detection from the primary
// faction's point of view.
type WinConditionChecker struct {
	logger   zerolog.Logger
	primary  core.FactionID
	factions []core.FactionID
}

// NewWinConditionChecker creates a checker for the given primary faction and
// the full faction roster.
func NewWinConditionChecker(logger zerolog.Logger, primary core.FactionID, factions []core.FactionID) *WinConditionChecker {
	roster := make([]core.FactionID, len(factions))
	copy(roster, factions)
	return &WinConditionChecker{
		logger:   logger.With().Str("component", "WinConditionChecker").Logger(),
		primary:  primary,
		factions: roster,
	}
}

// Check evaluates the termination conditions. Losing takes precedence, so a
// primary faction that owns nothing has lost even when every rival is also gone.
func (wc *WinConditionChecker) Check(ledger *core.Ledger) Verdict {
	if ledger.CountOwned(wc.primary) == 0 {
		wc.logger.Info().Int("primary", int(wc.primary)).Msg("Primary faction eliminated")
		return Lost
	}

	rivalsAlive := 0
	for _, f := range wc.factions {
		if f == wc.primary || f.IsNeutral() {
			continue
		}
		if ledger.CountOwned(f) > 0 {
			rivalsAlive++
		}
	}
	if rivalsAlive == 0 {
		wc.logger.Info().Int("primary", int(wc.primary)).Msg("All rival factions eliminated")
		return Won
	}

	wc.logger.Debug().Int("rivals_alive", rivalsAlive).Msg("Match continues")
	return InProgress
}
