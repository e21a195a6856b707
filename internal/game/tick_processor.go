package game

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
	"github.com/mitchelldurbincs/conquest/internal/game/rules"
)

// TickProcessor runs the fixed-order pipeline of a single tick:
// generation, travel, combat, termination, strategist.
type TickProcessor struct {
	engine *Engine
	logger zerolog.Logger
}

// NewTickProcessor creates a new tick processor
func NewTickProcessor(engine *Engine) *TickProcessor {
	return &TickProcessor{
		engine: engine,
		logger: engine.logger,
	}
}

// ProcessTick executes one complete tick. Cancellation is only observed
// before any state is touched.
func (tp *TickProcessor) ProcessTick(ctx context.Context) error {
	if err := tp.checkContext(ctx); err != nil {
		return core.WrapTickError(tp.engine.tick+1, "start", fmt.Errorf("context cancelled: %w", err))
	}

	e := tp.engine
	dt := e.settings.Dt()
	e.tick++
	e.elapsed += dt
	e.stateMachine.Context().Tick = e.tick

	tickLogger := tp.logger.With().Int64("tick", e.tick).Logger()
	tickLogger.Debug().Msg("Starting tick")

	tp.processGeneration(dt)
	arrived := tp.processTravel(dt)
	tp.processCombat(arrived)
	ended := tp.processTermination(tickLogger)
	if !ended {
		tp.processStrategist(dt)
	}

	e.emit(events.NewTickCompletedEvent(e.matchID, e.tick, e.elapsed, e.FactionStats()))
	e.flush()

	tickLogger.Debug().
		Int("in_flight", e.travel.Len()).
		Msg("Tick finished")
	return nil
}

func (tp *TickProcessor) checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		tp.logger.Warn().
			Err(ctx.Err()).
			Int64("tick", tp.engine.tick).
			Msg("Tick cancelled or timed out")
		return ctx.Err()
	default:
		return nil
	}
}

func (tp *TickProcessor) processGeneration(dt float64) {
	e := tp.engine
	for _, ev := range e.generation.ProcessGeneration(e.matchID, e.tick, dt) {
		e.emit(ev)
	}
}

func (tp *TickProcessor) processTravel(dt float64) []core.Troop {
	return tp.engine.travel.Advance(dt, tp.engine.ledger)
}

func (tp *TickProcessor) processCombat(arrived []core.Troop) {
	e := tp.engine
	if len(arrived) == 0 {
		return
	}
	for _, a := range e.combat.Resolve(e.ledger, arrived) {
		e.emit(events.NewUnitsArrivedEvent(e.matchID, e.tick, a))
	}
}

// processTermination reports whether the match ended this tick
func (tp *TickProcessor) processTermination(tickLogger zerolog.Logger) bool {
	e := tp.engine
	switch e.winCondition.Check(e.ledger) {
	case rules.Won:
		tickLogger.Info().Float64("elapsed", e.elapsed).Msg("Primary faction conquered every territory")
		e.finish(true, ReasonConquest)
		return true
	case rules.Lost:
		tickLogger.Info().Float64("elapsed", e.elapsed).Msg("Primary faction eliminated")
		e.finish(false, ReasonEliminated)
		return true
	default:
		return false
	}
}

func (tp *TickProcessor) processStrategist(dt float64) {
	e := tp.engine
	e.strategist.Step(dt, e.ledger, strategistDispatcher{e})
}
