package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/ai"
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
	"github.com/mitchelldurbincs/conquest/internal/game/processor"
	"github.com/mitchelldurbincs/conquest/internal/game/rules"
	"github.com/mitchelldurbincs/conquest/internal/game/states"
)

// Reasons a match finishes
const (
	ReasonConquest   = "conquest"
	ReasonEliminated = "eliminated"
	ReasonSurrender  = "surrender"
)

// MatchResult is the final outcome from the primary faction's point of view
type MatchResult struct {
	MatchID          string  `json:"match_id"`
	Won              bool    `json:"won"`
	TerritoriesOwned int     `json:"territories_owned"`
	TotalTerritories int     `json:"total_territories"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	Reason           string  `json:"reason"`
	Tick             int64   `json:"tick"`
}

// Engine is the authoritative simulation of one match. It is not safe for
// concurrent use; callers serialize every call onto one goroutine.
type Engine struct {
	matchID  string
	settings Settings
	factions []FactionSetup

	ledger       *core.Ledger
	travel       *processor.TravelResolver
	combat       *processor.CombatResolver
	strategist   *ai.Strategist
	winCondition *rules.WinConditionChecker
	generation   *GenerationManager
	stateMachine *states.StateMachine

	tickProcessor *TickProcessor

	bus     *events.EventBus
	pending []events.Event

	tick    int64
	elapsed float64
	result  *MatchResult
	logger  zerolog.Logger
}

// NewEngine validates cfg and creates an engine in the Setup phase.
// Setup errors wrap core.ErrInvalidSetup.
func NewEngine(ctx context.Context, cfg MatchConfig) (*Engine, error) {
	return NewEngineInitializer(cfg).Initialize(ctx)
}

// outbox buffers events until the current tick completes
type outbox struct{ e *Engine }

func (o outbox) Publish(ev events.Event) { o.e.emit(ev) }

func (e *Engine) outbox() events.Publisher { return outbox{e} }

func (e *Engine) emit(ev events.Event) {
	e.pending = append(e.pending, ev)
}

// flush hands the buffered events to the bus in order. Observers only ever
// see the output of whole ticks.
func (e *Engine) flush() {
	if len(e.pending) == 0 {
		return
	}
	batch := e.pending
	e.pending = nil
	e.bus.PublishAll(batch)
}

// Start moves the match from Setup to Running
func (e *Engine) Start() error {
	if err := e.stateMachine.TransitionTo(states.PhaseRunning, "start"); err != nil {
		return err
	}
	roster := make([]core.FactionID, len(e.factions))
	for i, f := range e.factions {
		roster[i] = f.ID
	}
	e.emit(events.NewMatchStartedEvent(e.matchID, e.ledger.Len(), roster, e.settings.PrimaryFaction))
	e.flush()
	return nil
}

// Pause freezes the clock
func (e *Engine) Pause() error {
	err := e.stateMachine.TransitionTo(states.PhasePaused, "pause")
	e.flush()
	return err
}

// Resume restarts a paused clock
func (e *Engine) Resume() error {
	if e.Phase() != states.PhasePaused {
		return fmt.Errorf("%w: cannot resume from %s", states.ErrInvalidTransition, e.Phase())
	}
	err := e.stateMachine.TransitionTo(states.PhaseRunning, "resume")
	e.flush()
	return err
}

// Tick advances the match by one fixed step. Ticks outside the Running
// phase are no-ops, so ticking a finished match never mutates it.
func (e *Engine) Tick(ctx context.Context) error {
	if !e.Phase().CanTick() {
		return nil
	}
	return e.tickProcessor.ProcessTick(ctx)
}

// Dispatch validates cmd and launches a new in-flight group. Player commands
// arrive between ticks, so the resulting event is published right away and
// stamped with the last completed tick.
func (e *Engine) Dispatch(cmd core.DispatchCommand) (core.Troop, error) {
	phase := e.Phase()
	if !phase.CanReceiveCommands() {
		err := core.ErrMatchNotRunning
		if phase.IsTerminal() {
			err = core.ErrMatchOver
		}
		return core.Troop{}, core.WrapDispatchError(cmd, err)
	}
	troop, err := e.dispatch(cmd)
	e.flush()
	return troop, err
}

func (e *Engine) dispatch(cmd core.DispatchCommand) (core.Troop, error) {
	source, target, err := rules.ValidateDispatch(e.ledger, cmd)
	if err != nil {
		return core.Troop{}, e.reject(cmd, err)
	}
	count, err := rules.DispatchCount(source, cmd)
	if err != nil {
		return core.Troop{}, e.reject(cmd, err)
	}

	if err := e.ledger.Dispatch(source.ID, count); err != nil {
		if errors.Is(err, core.ErrNegativeGarrison) {
			e.logger.Error().
				Err(err).
				Int("source", int(source.ID)).
				Int("garrison", source.Garrison).
				Int("requested", count).
				Int64("tick", e.tick).
				Msg("Negative garrison invariant violated")
		}
		return core.Troop{}, e.reject(cmd, core.WrapDispatchError(cmd, err))
	}

	troop := e.travel.Launch(cmd.Faction, source, target, count)
	e.emit(events.NewUnitsDispatchedEvent(e.matchID, e.tick, troop, source.Garrison-count, e.travel.Rate(troop)))
	return troop, nil
}

func (e *Engine) reject(cmd core.DispatchCommand, err error) error {
	e.logger.Debug().Err(err).Int64("tick", e.tick).Msg("Dispatch rejected")
	e.emit(events.NewDispatchRejectedEvent(e.matchID, e.tick, cmd, err))
	return err
}

// strategistDispatcher routes strategist decisions through the same
// validation as player commands.
type strategistDispatcher struct{ e *Engine }

func (d strategistDispatcher) Dispatch(cmd core.DispatchCommand) error {
	_, err := d.e.dispatch(cmd)
	return err
}

// Surrender ends the match as a loss for the primary faction
func (e *Engine) Surrender() error {
	if e.Phase().IsTerminal() {
		return core.ErrMatchOver
	}
	if e.Phase() == states.PhaseSetup {
		return core.ErrMatchNotRunning
	}
	e.finish(false, ReasonSurrender)
	e.flush()
	return nil
}

// Abort tears the match down without a result. No MatchEnded is published.
func (e *Engine) Abort(reason string) error {
	if e.Phase().IsTerminal() {
		return core.ErrMatchOver
	}
	if err := e.stateMachine.TransitionTo(states.PhaseAborted, reason); err != nil {
		return err
	}
	e.travel.Clear()
	e.emit(events.NewMatchAbortedEvent(e.matchID, e.tick, reason, e.elapsed))
	e.flush()
	return nil
}

// finish records the result, enters Ended and queues the single MatchEnded.
func (e *Engine) finish(won bool, reason string) {
	owned := e.ledger.CountOwned(e.settings.PrimaryFaction)
	e.result = &MatchResult{
		MatchID:          e.matchID,
		Won:              won,
		TerritoriesOwned: owned,
		TotalTerritories: e.ledger.Len(),
		ElapsedSeconds:   e.elapsed,
		Reason:           reason,
		Tick:             e.tick,
	}
	if err := e.stateMachine.TransitionTo(states.PhaseEnded, reason); err != nil {
		e.logger.Error().Err(err).Msg("Failed to enter Ended phase")
	}
	e.emit(events.NewMatchEndedEvent(e.matchID, e.tick, won, owned, e.ledger.Len(), e.elapsed, reason))
}

// MatchID returns the match id
func (e *Engine) MatchID() string { return e.matchID }

// Phase returns the current phase
func (e *Engine) Phase() states.MatchPhase { return e.stateMachine.CurrentPhase() }

// CurrentTick returns the number of ticks processed
func (e *Engine) CurrentTick() int64 { return e.tick }

// Elapsed returns simulated seconds
func (e *Engine) Elapsed() float64 { return e.elapsed }

// Settings returns the match settings
func (e *Engine) Settings() Settings { return e.settings }

// Factions returns the declared seats
func (e *Engine) Factions() []FactionSetup {
	return append([]FactionSetup(nil), e.factions...)
}

// Bus returns the bus receiving flushed events
func (e *Engine) Bus() *events.EventBus { return e.bus }

// Result returns the final result once the match has ended
func (e *Engine) Result() (MatchResult, bool) {
	if e.result == nil {
		return MatchResult{}, false
	}
	return *e.result, true
}

// Territory returns a copy of one territory
func (e *Engine) Territory(id core.TerritoryID) (core.Territory, bool) {
	return e.ledger.Get(id)
}

// Territories returns a copy of every territory
func (e *Engine) Territories() []core.Territory { return e.ledger.Territories() }

// LegalDispatches lists every source/target pair faction could dispatch on now
func (e *Engine) LegalDispatches(f core.FactionID) []rules.DispatchPair {
	return rules.LegalDispatches(e.ledger, f)
}

// Troops returns a copy of the in-flight groups
func (e *Engine) Troops() []core.Troop { return e.travel.Live() }

// TroopRate returns the progress per simulated second of a group
func (e *Engine) TroopRate(t core.Troop) float64 { return e.travel.Rate(t) }

// StrategistPhase reports the strategist phase of an automated faction
func (e *Engine) StrategistPhase(f core.FactionID) (ai.Phase, bool) {
	return e.strategist.Phase(f)
}

// History returns the phase transitions so far
func (e *Engine) History() []states.Transition { return e.stateMachine.History() }
