package processor

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

// TravelResolver owns the live in-flight groups of one match and advances
// them toward their destinations.
type TravelResolver struct {
	speed         float64
	arrivalFactor float64
	nextID        uint64
	live          []core.Troop // ascending ID
	logger        zerolog.Logger
}

// NewTravelResolver creates a resolver moving groups at speed distance units
// per simulated second. A group arrives once it is closer to the destination
// center than radius*arrivalFactor.
func NewTravelResolver(speed, arrivalFactor float64, logger zerolog.Logger) *TravelResolver {
	return &TravelResolver{
		speed:         speed,
		arrivalFactor: arrivalFactor,
		logger:        logger.With().Str("component", "TravelResolver").Logger(),
	}
}

// Launch creates a new in-flight group. Ids are unique and increasing per match.
func (tr *TravelResolver) Launch(owner core.FactionID, source, target core.Territory, count int) core.Troop {
	tr.nextID++
	troop := core.Troop{
		ID:     tr.nextID,
		Owner:  owner,
		Source: source.ID,
		Target: target.ID,
		Count:  count,
		From:   source.Position,
		To:     target.Position,
	}
	tr.live = append(tr.live, troop)

	tr.logger.Debug().
		Uint64("troop_id", troop.ID).
		Int("owner", int(owner)).
		Int("source", int(source.ID)).
		Int("target", int(target.ID)).
		Int("count", count).
		Msg("Troop launched")
	return troop
}

// Advance moves every live group by speed*dt along its path and returns the
// groups that arrived this step in ascending id order. Arrived groups leave
// the live set immediately.
func (tr *TravelResolver) Advance(dt float64, ledger *core.Ledger) []core.Troop {
	if len(tr.live) == 0 {
		return nil
	}

	var arrived []core.Troop
	kept := tr.live[:0]
	for _, t := range tr.live {
		dest, ok := ledger.Get(t.Target)
		if !ok {
			tr.logger.Warn().
				Uint64("troop_id", t.ID).
				Int("target", int(t.Target)).
				Msg("Dropping troop with unknown destination")
			continue
		}

		if length := t.Length(); length > 0 {
			t.Progress += tr.speed * dt / length
		} else {
			t.Progress = 1
		}

		if t.Progress >= 1 || t.RemainingDistance() < dest.Radius*tr.arrivalFactor {
			t.Progress = math.Min(t.Progress, 1)
			t.Arrived = true
			arrived = append(arrived, t)
			continue
		}
		kept = append(kept, t)
	}

	// clear the tail so dropped troops are not retained by the backing array
	for i := len(kept); i < len(tr.live); i++ {
		tr.live[i] = core.Troop{}
	}
	tr.live = kept
	return arrived
}

// Live returns a copy of the in-flight groups in ascending id order.
func (tr *TravelResolver) Live() []core.Troop {
	out := make([]core.Troop, len(tr.live))
	copy(out, tr.live)
	return out
}

// Len returns the number of in-flight groups
func (tr *TravelResolver) Len() int { return len(tr.live) }

// UnitsInFlight sums the units faction f currently has traveling.
func (tr *TravelResolver) UnitsInFlight(f core.FactionID) int {
	n := 0
	for i := range tr.live {
		if tr.live[i].Owner == f {
			n += tr.live[i].Count
		}
	}
	return n
}

// Rate returns the progress per simulated second of a group. Observers use
// it to extrapolate between progress updates.
func (tr *TravelResolver) Rate(t core.Troop) float64 {
	length := t.Length()
	if length <= 0 {
		return 0
	}
	return tr.speed / length
}

// Clear drops every in-flight group
func (tr *TravelResolver) Clear() {
	tr.live = nil
}
