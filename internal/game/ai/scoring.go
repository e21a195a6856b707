package ai

import (
	"math"
	"sort"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

// Candidate is a scored (source, target) pair
type Candidate struct {
	Source core.Territory
	Target core.Territory
	Score  float64
}

// scorer evaluates every source x target pair for one faction against a
// single view of the territories.
type scorer struct {
	params     Params
	difficulty Difficulty
	faction    core.FactionID
	all        []core.Territory
	hostiles   []core.Territory
	neutrals   []core.Territory
	gateways   map[core.TerritoryID]int
}

func newScorer(p Params, d Difficulty, f core.FactionID, all []core.Territory) *scorer {
	s := &scorer{
		params:     p,
		difficulty: d,
		faction:    f,
		all:        all,
		gateways:   make(map[core.TerritoryID]int),
	}
	for _, t := range all {
		switch {
		case t.IsNeutral():
			s.neutrals = append(s.neutrals, t)
		case !t.OwnedBy(f):
			s.hostiles = append(s.hostiles, t)
		}
	}
	return s
}

// ScoreCandidates scores every legal pair for faction and returns them sorted
// best first. Ties keep (source, target) order.
func ScoreCandidates(p Params, d Difficulty, faction core.FactionID, ledger *core.Ledger) []Candidate {
	return newScorer(p, d, faction, ledger.Territories()).candidates()
}

func (s *scorer) candidates() []Candidate {
	var out []Candidate
	for _, src := range s.all {
		if !src.OwnedBy(s.faction) || src.Garrison <= s.params.MinSourceGarrison {
			continue
		}
		threat := s.threatAround(src)
		for _, dst := range s.all {
			if dst.OwnedBy(s.faction) {
				continue
			}
			out = append(out, Candidate{
				Source: src,
				Target: dst,
				Score:  s.score(src, dst, threat),
			})
		}
	}

	// territories are already id ordered so a stable sort keeps ties by (source, target)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// threatAround sums hostile garrisons within the threat radius of src.
func (s *scorer) threatAround(src core.Territory) int {
	sum := 0
	for _, h := range s.hostiles {
		if src.Position.DistanceTo(h.Position) <= s.params.ThreatRadius {
			sum += h.Garrison
		}
	}
	return sum
}

func (s *scorer) gatewayCount(dst core.Territory) int {
	if n, ok := s.gateways[dst.ID]; ok {
		return n
	}
	n := 0
	for _, nt := range s.neutrals {
		if nt.ID == dst.ID {
			continue
		}
		if dst.Position.DistanceTo(nt.Position) <= s.params.GatewayRadius {
			n++
		}
	}
	s.gateways[dst.ID] = n
	return n
}

func (s *scorer) score(src, dst core.Territory, threat int) float64 {
	p := s.params
	available := src.Dispatchable()
	score := 0.0

	if available > dst.Garrison {
		score += p.CaptureBonus
		score += float64(available-dst.Garrison) * p.SurplusWeight
	}
	if float64(available) > p.AttritionRatio*float64(dst.Garrison) {
		score += p.AttritionBonus
	}
	if dst.IsNeutral() {
		score += p.NeutralBonus
	}

	if d := src.Position.DistanceTo(dst.Position); d < p.ProximityRange {
		score += p.ProximityBonus * (1 - d/p.ProximityRange)
	}
	score += dst.Radius * p.RadiusWeight

	// the target itself is being attacked, not threatening the source
	if !dst.IsNeutral() && src.Position.DistanceTo(dst.Position) <= p.ThreatRadius {
		threat -= dst.Garrison
	}
	// after dispatching the source holds a single unit
	if float64(threat)*s.difficulty.DefenseWeight > 1 {
		score -= p.ThreatPenalty
	}

	score += float64(s.gatewayCount(dst)) * p.GatewayBonus
	return score
}

// DispatchCount decides how many units to send from src toward dst. A
// reserve is kept when a fraction of the force still captures; otherwise
// everything dispatchable is committed.
func DispatchCount(p Params, src, dst core.Territory) int {
	available := src.Dispatchable()
	if available <= 0 {
		return 0
	}
	partial := int(math.Floor(float64(available) * p.SendFraction))
	if partial > dst.Garrison {
		return partial
	}
	return available
}
