package game

import (
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
)

// FactionStats returns territories, stationed and in-flight units for every
// declared faction, in declaration order.
func (e *Engine) FactionStats() []events.FactionStat {
	stats := make([]events.FactionStat, 0, len(e.factions))
	for _, f := range e.factions {
		stats = append(stats, e.statFor(f.ID))
	}
	return stats
}

func (e *Engine) statFor(f core.FactionID) events.FactionStat {
	return events.FactionStat{
		Faction:     f,
		Territories: e.ledger.CountOwned(f),
		Garrison:    e.ledger.GarrisonOf(f),
		InFlight:    e.travel.UnitsInFlight(f),
	}
}

// Progress returns the share of territories held by the primary faction
func (e *Engine) Progress() float64 {
	if e.ledger.Len() == 0 {
		return 0
	}
	return float64(e.ledger.CountOwned(e.settings.PrimaryFaction)) / float64(e.ledger.Len())
}
