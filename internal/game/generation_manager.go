package game

import (
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
)

// GenerationManager applies per-faction unit generation to owned territories
type GenerationManager struct {
	ledger     *core.Ledger
	emitEvents bool
	logger     zerolog.Logger
}

// NewGenerationManager creates a generation manager. When emitEvents is set
// each step returns one TerritoryGenerated event per territory that grew.
func NewGenerationManager(ledger *core.Ledger, emitEvents bool, logger zerolog.Logger) *GenerationManager {
	return &GenerationManager{
		ledger:     ledger,
		emitEvents: emitEvents,
		logger:     logger.With().Str("component", "GenerationManager").Logger(),
	}
}

// SetRate sets the units per simulated second for every territory of f
func (gm *GenerationManager) SetRate(f core.FactionID, rate float64) {
	gm.ledger.SetGenerationRate(f, rate)
	gm.logger.Debug().
		Int("faction", int(f)).
		Float64("rate", rate).
		Msg("Generation rate set")
}

// Rate returns the generation rate of f
func (gm *GenerationManager) Rate(f core.FactionID) float64 {
	return gm.ledger.GenerationRate(f)
}

// ProcessGeneration applies dt seconds of growth
func (gm *GenerationManager) ProcessGeneration(matchID string, tick int64, dt float64) []events.Event {
	produced := gm.ledger.Generate(dt)
	if len(produced) == 0 {
		return nil
	}

	total := 0
	for _, g := range produced {
		total += g.Added
	}
	gm.logger.Debug().
		Int64("tick", tick).
		Int("territories", len(produced)).
		Int("units", total).
		Msg("Generation applied")

	if !gm.emitEvents {
		return nil
	}
	out := make([]events.Event, 0, len(produced))
	for _, g := range produced {
		out = append(out, events.NewTerritoryGeneratedEvent(matchID, tick, g))
	}
	return out
}
