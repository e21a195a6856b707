package game

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/ai"
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
	"github.com/mitchelldurbincs/conquest/internal/game/processor"
	"github.com/mitchelldurbincs/conquest/internal/game/rules"
	"github.com/mitchelldurbincs/conquest/internal/game/states"
)

// EngineInitializer handles the validation and wiring of a new engine
type EngineInitializer struct {
	config MatchConfig
	logger zerolog.Logger
}

// NewEngineInitializer creates a new engine initializer
func NewEngineInitializer(cfg MatchConfig) *EngineInitializer {
	return &EngineInitializer{
		config: cfg,
		logger: cfg.Logger.With().Str("component", "MatchEngine").Logger(),
	}
}

// Initialize validates the setup and creates an engine in the Setup phase
func (ei *EngineInitializer) Initialize(ctx context.Context) (*Engine, error) {
	select {
	case <-ctx.Done():
		ei.logger.Error().Err(ctx.Err()).Msg("Engine creation cancelled")
		return nil, ctx.Err()
	default:
	}

	ei.setupDefaults()

	if err := ei.validate(); err != nil {
		ei.logger.Error().Err(err).Msg("Invalid match setup")
		return nil, err
	}

	ledger, err := core.NewLedger(ei.config.Territories)
	if err != nil {
		return nil, err
	}

	engine := ei.createEngine(ledger)
	ei.applyGenerationRates(engine)
	ei.registerAutomatedFactions(engine)

	ei.logger.Info().
		Int("territories", ledger.Len()).
		Int("factions", len(ei.config.Factions)).
		Float64("tick_rate", ei.config.Settings.TickRate).
		Msg("Engine created successfully")

	return engine, nil
}

func (ei *EngineInitializer) setupDefaults() {
	if ei.config.Rng == nil {
		ei.logger.Debug().Msg("No RNG provided, creating new seeded RNG")
		ei.config.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if ei.config.MatchID == "" {
		ei.config.MatchID = uuid.NewString()
	}
	ei.logger = ei.logger.With().Str("match_id", ei.config.MatchID).Logger()
}

func (ei *EngineInitializer) validate() error {
	cfg := ei.config
	if err := cfg.Settings.Validate(); err != nil {
		return err
	}
	if err := cfg.StrategistParams.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidSetup, err)
	}
	if len(cfg.Territories) == 0 {
		return fmt.Errorf("%w: no territories", core.ErrInvalidSetup)
	}
	if len(cfg.Factions) == 0 {
		return fmt.Errorf("%w: no factions", core.ErrInvalidSetup)
	}

	declared := make(map[core.FactionID]bool, len(cfg.Factions))
	for _, f := range cfg.Factions {
		if f.ID.IsNeutral() {
			return fmt.Errorf("%w: faction id %d is reserved for neutral", core.ErrInvalidSetup, f.ID)
		}
		if declared[f.ID] {
			return fmt.Errorf("%w: duplicate faction %d", core.ErrInvalidSetup, f.ID)
		}
		if f.Automated {
			if err := f.Difficulty.Validate(); err != nil {
				return fmt.Errorf("%w: faction %d: %v", core.ErrInvalidSetup, f.ID, err)
			}
		}
		declared[f.ID] = true
	}
	if !declared[cfg.Settings.PrimaryFaction] {
		return fmt.Errorf("%w: primary faction %d is not declared", core.ErrInvalidSetup, cfg.Settings.PrimaryFaction)
	}

	for _, t := range cfg.Territories {
		if !t.IsNeutral() && !declared[t.Owner] {
			return fmt.Errorf("%w: territory %d owned by undeclared faction %d", core.ErrInvalidSetup, t.ID, t.Owner)
		}
	}
	return nil
}

func (ei *EngineInitializer) createEngine(ledger *core.Ledger) *Engine {
	cfg := ei.config

	bus := cfg.Bus
	if bus == nil {
		bus = events.NewEventBus(ei.logger)
	}

	roster := make([]core.FactionID, len(cfg.Factions))
	for i, f := range cfg.Factions {
		roster[i] = f.ID
	}

	engine := &Engine{
		matchID:      cfg.MatchID,
		settings:     cfg.Settings,
		factions:     append([]FactionSetup(nil), cfg.Factions...),
		ledger:       ledger,
		travel:       processor.NewTravelResolver(cfg.Settings.TravelSpeed, cfg.Settings.ArrivalFactor, ei.logger),
		combat:       processor.NewCombatResolver(ei.logger),
		strategist:   ai.NewStrategist(cfg.StrategistParams, cfg.Rng, ei.logger),
		winCondition: rules.NewWinConditionChecker(ei.logger, cfg.Settings.PrimaryFaction, roster),
		bus:          bus,
		logger:       ei.logger,
	}

	matchContext := states.NewMatchContext(cfg.MatchID, ledger.Len(), len(cfg.Factions), ei.logger)
	engine.stateMachine = states.NewStateMachine(matchContext, engine.outbox())
	engine.generation = NewGenerationManager(ledger, cfg.Settings.GenerationEvents, ei.logger)
	engine.tickProcessor = NewTickProcessor(engine)
	return engine
}

// applyGenerationRates scales the base rate by each automated faction's
// difficulty. Human seats always generate at the base rate.
func (ei *EngineInitializer) applyGenerationRates(engine *Engine) {
	base := ei.config.Settings.BaseGenerationRate
	for _, f := range ei.config.Factions {
		rate := base
		if f.Automated {
			rate = base * f.Difficulty.GenerationMultiplier
		}
		engine.generation.SetRate(f.ID, rate)
	}
}

func (ei *EngineInitializer) registerAutomatedFactions(engine *Engine) {
	for _, f := range ei.config.Factions {
		if f.Automated {
			engine.strategist.AddFaction(f.ID, f.Difficulty, ei.config.Settings.BaseThinkInterval)
		}
	}
}
