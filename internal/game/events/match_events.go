package events

import (
	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

// Event type constants
const (
	TypeMatchStarted       = "match.started"
	TypeMatchEnded         = "match.ended"
	TypeMatchAborted       = "match.aborted"
	TypeTerritoryGenerated = "territory.generated"
	TypeUnitsDispatched    = "units.dispatched"
	TypeUnitsArrived       = "units.arrived"
	TypeDispatchRejected   = "dispatch.rejected"
	TypeTickCompleted      = "tick.completed"
	TypeStateTransition    = "state.transition"
)

// MatchStartedEvent is published when the clock first starts
type MatchStartedEvent struct {
	BaseEvent
	Territories int              `json:"territories"`
	Factions    []core.FactionID `json:"factions"`
	Primary     core.FactionID   `json:"primary"`
}

// NewMatchStartedEvent creates a new MatchStartedEvent
func NewMatchStartedEvent(matchID string, territories int, factions []core.FactionID, primary core.FactionID) *MatchStartedEvent {
	return &MatchStartedEvent{
		BaseEvent:   newBase(TypeMatchStarted, matchID, 0),
		Territories: territories,
		Factions:    factions,
		Primary:     primary,
	}
}

// TerritoryGeneratedEvent is published when generation adds whole units
type TerritoryGeneratedEvent struct {
	BaseEvent
	Territory core.TerritoryID `json:"territory"`
	Owner     core.FactionID   `json:"owner"`
	Added     int              `json:"added"`
	Garrison  int              `json:"garrison"`
}

// NewTerritoryGeneratedEvent creates a new TerritoryGeneratedEvent
func NewTerritoryGeneratedEvent(matchID string, tick int64, g core.Generated) *TerritoryGeneratedEvent {
	return &TerritoryGeneratedEvent{
		BaseEvent: newBase(TypeTerritoryGenerated, matchID, tick),
		Territory: g.Territory,
		Owner:     g.Owner,
		Added:     g.Added,
		Garrison:  g.Garrison,
	}
}

// UnitsDispatchedEvent is published when a group leaves its source
type UnitsDispatchedEvent struct {
	BaseEvent
	TroopID        uint64           `json:"troop_id"`
	Owner          core.FactionID   `json:"owner"`
	Source         core.TerritoryID `json:"source"`
	Target         core.TerritoryID `json:"target"`
	Count          int              `json:"count"`
	SourceGarrison int              `json:"source_garrison"`
	// Rate is progress per simulated second
	Rate float64 `json:"rate"`
}

// NewUnitsDispatchedEvent creates a new UnitsDispatchedEvent
func NewUnitsDispatchedEvent(matchID string, tick int64, troop core.Troop, sourceGarrison int, rate float64) *UnitsDispatchedEvent {
	return &UnitsDispatchedEvent{
		BaseEvent:      newBase(TypeUnitsDispatched, matchID, tick),
		TroopID:        troop.ID,
		Owner:          troop.Owner,
		Source:         troop.Source,
		Target:         troop.Target,
		Count:          troop.Count,
		SourceGarrison: sourceGarrison,
		Rate:           rate,
	}
}

// UnitsArrivedEvent is published for every resolved arrival
type UnitsArrivedEvent struct {
	BaseEvent
	core.Arrival
}

// NewUnitsArrivedEvent creates a new UnitsArrivedEvent
func NewUnitsArrivedEvent(matchID string, tick int64, a core.Arrival) *UnitsArrivedEvent {
	return &UnitsArrivedEvent{
		BaseEvent: newBase(TypeUnitsArrived, matchID, tick),
		Arrival:   a,
	}
}

// DispatchRejectedEvent is published when a command fails validation
type DispatchRejectedEvent struct {
	BaseEvent
	Faction core.FactionID   `json:"faction"`
	Source  core.TerritoryID `json:"source"`
	Target  core.TerritoryID `json:"target"`
	Reason  string           `json:"reason"`
}

// NewDispatchRejectedEvent creates a new DispatchRejectedEvent
func NewDispatchRejectedEvent(matchID string, tick int64, cmd core.DispatchCommand, err error) *DispatchRejectedEvent {
	return &DispatchRejectedEvent{
		BaseEvent: newBase(TypeDispatchRejected, matchID, tick),
		Faction:   cmd.Faction,
		Source:    cmd.Source,
		Target:    cmd.Target,
		Reason:    err.Error(),
	}
}

// FactionStat is a per tick summary of one faction
type FactionStat struct {
	Faction     core.FactionID `json:"faction"`
	Territories int            `json:"territories"`
	Garrison    int            `json:"garrison"`
	InFlight    int            `json:"in_flight"`
}

// TickCompletedEvent closes every tick. Observers treat it as the flush point.
type TickCompletedEvent struct {
	BaseEvent
	Elapsed float64       `json:"elapsed"`
	Stats   []FactionStat `json:"stats"`
}

// NewTickCompletedEvent creates a new TickCompletedEvent
func NewTickCompletedEvent(matchID string, tick int64, elapsed float64, stats []FactionStat) *TickCompletedEvent {
	return &TickCompletedEvent{
		BaseEvent: newBase(TypeTickCompleted, matchID, tick),
		Elapsed:   elapsed,
		Stats:     stats,
	}
}

// MatchEndedEvent is published exactly once when a match finishes
type MatchEndedEvent struct {
	BaseEvent
	Won              bool    `json:"won"`
	TerritoriesOwned int     `json:"territories_owned"`
	TotalTerritories int     `json:"total_territories"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	Reason           string  `json:"reason"`
}

// NewMatchEndedEvent creates a new MatchEndedEvent
func NewMatchEndedEvent(matchID string, tick int64, won bool, owned, total int, elapsed float64, reason string) *MatchEndedEvent {
	return &MatchEndedEvent{
		BaseEvent:        newBase(TypeMatchEnded, matchID, tick),
		Won:              won,
		TerritoriesOwned: owned,
		TotalTerritories: total,
		ElapsedSeconds:   elapsed,
		Reason:           reason,
	}
}

// MatchAbortedEvent is published when a match is torn down without a result
type MatchAbortedEvent struct {
	BaseEvent
	Reason         string  `json:"reason"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// NewMatchAbortedEvent creates a new MatchAbortedEvent
func NewMatchAbortedEvent(matchID string, tick int64, reason string, elapsed float64) *MatchAbortedEvent {
	return &MatchAbortedEvent{
		BaseEvent:      newBase(TypeMatchAborted, matchID, tick),
		Reason:         reason,
		ElapsedSeconds: elapsed,
	}
}

// StateTransitionEvent is published when the match phase changes
type StateTransitionEvent struct {
	BaseEvent
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Reason    string `json:"reason"`
}

// NewStateTransitionEvent creates a new StateTransitionEvent
func NewStateTransitionEvent(matchID string, tick int64, from, to, reason string) *StateTransitionEvent {
	return &StateTransitionEvent{
		BaseEvent: newBase(TypeStateTransition, matchID, tick),
		FromState: from,
		ToState:   to,
		Reason:    reason,
	}
}
