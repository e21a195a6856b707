package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/ai"
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
)

// Settings are the per match tunables of the simulation
type Settings struct {
	// TickRate is the number of ticks per simulated second
	TickRate float64 `mapstructure:"tick_rate"`
	// TravelSpeed is in distance units per simulated second
	TravelSpeed float64 `mapstructure:"travel_speed"`
	// ArrivalFactor scales the destination radius into the arrival threshold
	ArrivalFactor float64 `mapstructure:"arrival_factor"`
	// BaseGenerationRate is units per simulated second per owned territory
	BaseGenerationRate float64 `mapstructure:"base_generation_rate"`
	// BaseThinkInterval is the strategist interval in simulated seconds
	// before difficulty scaling
	BaseThinkInterval float64 `mapstructure:"base_think_interval"`
	// GenerationEvents publishes a TerritoryGenerated event per growth
	GenerationEvents bool `mapstructure:"generation_events"`

	PrimaryFaction core.FactionID `mapstructure:"primary_faction"`
}

// DefaultSettings returns the stock settings
func DefaultSettings() Settings {
	return Settings{
		TickRate:           20,
		TravelSpeed:        120,
		ArrivalFactor:      0.5,
		BaseGenerationRate: 1,
		BaseThinkInterval:  2,
		PrimaryFaction:     0,
	}
}

// Dt is the simulated seconds covered by one tick
func (s Settings) Dt() float64 { return 1 / s.TickRate }

// TickInterval is the wall clock interval between ticks
func (s Settings) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / s.TickRate)
}

// Validate checks the settings
func (s Settings) Validate() error {
	if s.TickRate <= 0 {
		return fmt.Errorf("%w: tick rate must be positive, got %v", core.ErrInvalidSetup, s.TickRate)
	}
	if s.TravelSpeed <= 0 {
		return fmt.Errorf("%w: travel speed must be positive, got %v", core.ErrInvalidSetup, s.TravelSpeed)
	}
	if s.ArrivalFactor <= 0 || s.ArrivalFactor > 1 {
		return fmt.Errorf("%w: arrival factor must be in (0,1], got %v", core.ErrInvalidSetup, s.ArrivalFactor)
	}
	if s.BaseGenerationRate < 0 {
		return fmt.Errorf("%w: generation rate must not be negative", core.ErrInvalidSetup)
	}
	if s.BaseThinkInterval <= 0 {
		return fmt.Errorf("%w: think interval must be positive", core.ErrInvalidSetup)
	}
	if s.PrimaryFaction.IsNeutral() {
		return fmt.Errorf("%w: primary faction cannot be neutral", core.ErrInvalidSetup)
	}
	return nil
}

// FactionSetup declares one seat of a match
type FactionSetup struct {
	ID         core.FactionID
	Automated  bool
	Difficulty ai.Difficulty
}

// MatchConfig is everything needed to build an Engine. Nothing in the
// simulation reads global state.
type MatchConfig struct {
	MatchID          string
	Territories      []core.Territory
	Factions         []FactionSetup
	Settings         Settings
	StrategistParams ai.Params
	Rng              *rand.Rand
	Logger           zerolog.Logger
	// Bus receives the flushed events of every tick. A new bus is created when nil.
	Bus *events.EventBus
}
