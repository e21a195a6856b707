package processor

import (
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

// CombatResolver applies arrived groups to the ledger.
type CombatResolver struct {
	logger zerolog.Logger
}

// NewCombatResolver creates a new combat resolver
func NewCombatResolver(logger zerolog.Logger) *CombatResolver {
	return &CombatResolver{
		logger: logger.With().Str("component", "CombatResolver").Logger(),
	}
}

// Resolve applies every arrived group in ascending group id order so that a
// replay of the same inputs produces the same outcomes. Arrivals that
// reference an unknown territory are stale and skipped.
func (cr *CombatResolver) Resolve(ledger *core.Ledger, arrived []core.Troop) []core.Arrival {
	if len(arrived) == 0 {
		return nil
	}

	ordered := make([]core.Troop, len(arrived))
	copy(ordered, arrived)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ID < ordered[j].ID
	})

	results := make([]core.Arrival, 0, len(ordered))
	for _, t := range ordered {
		res, err := ledger.ResolveArrival(t.Target, t.Owner, t.Count)
		if err != nil {
			if errors.Is(err, core.ErrUnknownTerritory) {
				cr.logger.Debug().Err(err).Uint64("troop_id", t.ID).Msg("Ignoring stale arrival")
			} else {
				cr.logger.Error().Err(err).Uint64("troop_id", t.ID).Msg("Failed to resolve arrival")
			}
			continue
		}

		arrival := core.Arrival{
			GroupID:    t.ID,
			Territory:  t.Target,
			Attacker:   t.Owner,
			Count:      t.Count,
			Resolution: res,
		}
		results = append(results, arrival)

		cr.logger.Debug().
			Uint64("troop_id", t.ID).
			Int("territory", int(t.Target)).
			Str("outcome", res.Outcome.String()).
			Int("previous_owner", int(res.PreviousOwner)).
			Int("new_owner", int(res.NewOwner)).
			Int("garrison", res.Garrison).
			Msg("Arrival resolved")
	}
	return results
}
