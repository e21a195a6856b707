package core

import (
	"fmt"
	"math"
	"sort"
)

// Ledger owns every territory of a match. Ownership only changes through
// ResolveArrival.
type Ledger struct {
	territories []Territory // sorted by ID
	index       map[TerritoryID]int
	rates       map[FactionID]float64
}

// NewLedger builds a ledger from the setup territories. Duplicate ids,
// negative garrisons and non-positive radii are setup errors.
func NewLedger(territories []Territory) (*Ledger, error) {
	if len(territories) == 0 {
		return nil, fmt.Errorf("%w: no territories", ErrInvalidSetup)
	}

	l := &Ledger{
		territories: make([]Territory, len(territories)),
		index:       make(map[TerritoryID]int, len(territories)),
		rates:       make(map[FactionID]float64),
	}
	copy(l.territories, territories)
	sort.Slice(l.territories, func(i, j int) bool {
		return l.territories[i].ID < l.territories[j].ID
	})

	for i := range l.territories {
		t := &l.territories[i]
		if _, dup := l.index[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate territory id %d", ErrInvalidSetup, t.ID)
		}
		if t.Garrison < 0 {
			return nil, fmt.Errorf("%w: territory %d has negative garrison %d", ErrInvalidSetup, t.ID, t.Garrison)
		}
		if t.Radius <= 0 {
			return nil, fmt.Errorf("%w: territory %d has non-positive radius", ErrInvalidSetup, t.ID)
		}
		t.carry = 0
		l.index[t.ID] = i
	}
	return l, nil
}

// Len returns the number of territories
func (l *Ledger) Len() int { return len(l.territories) }

// Get returns a copy of the territory with the given id.
func (l *Ledger) Get(id TerritoryID) (Territory, bool) {
	i, ok := l.index[id]
	if !ok {
		return Territory{}, false
	}
	return l.territories[i], true
}

// Territories returns a copy of every territory in ascending id order.
func (l *Ledger) Territories() []Territory {
	out := make([]Territory, len(l.territories))
	copy(out, l.territories)
	return out
}

// Distance returns the center-to-center distance between two territories.
func (l *Ledger) Distance(a, b TerritoryID) (float64, error) {
	ta, ok := l.Get(a)
	if !ok {
		return 0, fmt.Errorf("territory %d: %w", a, ErrUnknownTerritory)
	}
	tb, ok := l.Get(b)
	if !ok {
		return 0, fmt.Errorf("territory %d: %w", b, ErrUnknownTerritory)
	}
	return ta.Position.DistanceTo(tb.Position), nil
}

// SetGenerationRate sets the units per simulated second a faction's
// territories gain. Rates for the neutral sentinel are ignored.
func (l *Ledger) SetGenerationRate(f FactionID, rate float64) {
	if f.IsNeutral() {
		return
	}
	if rate < 0 {
		rate = 0
	}
	l.rates[f] = rate
}

// GenerationRate returns the per-second rate for a faction. Neutral is always zero.
func (l *Ledger) GenerationRate(f FactionID) float64 {
	if f.IsNeutral() {
		return 0
	}
	return l.rates[f]
}

// Generate adds rate(owner)*dt to every owned territory. Whole units are
// applied, the fractional remainder is carried to the next call.
func (l *Ledger) Generate(dt float64) []Generated {
	if dt <= 0 {
		return nil
	}

	var produced []Generated
	for i := range l.territories {
		t := &l.territories[i]
		if t.IsNeutral() {
			continue
		}
		gain := l.rates[t.Owner]*dt + t.carry
		whole := math.Floor(gain)
		t.carry = gain - whole
		if whole < 1 {
			continue
		}
		t.Garrison += int(whole)
		produced = append(produced, Generated{
			Territory: t.ID,
			Owner:     t.Owner,
			Added:     int(whole),
			Garrison:  t.Garrison,
		})
	}
	return produced
}

// Dispatch removes count units from a territory. The ledger does not enforce
// the leave-one-behind rule; it only refuses to go below zero.
func (l *Ledger) Dispatch(id TerritoryID, count int) error {
	i, ok := l.index[id]
	if !ok {
		return fmt.Errorf("territory %d: %w", id, ErrUnknownTerritory)
	}
	if count <= 0 {
		return fmt.Errorf("territory %d: count %d: %w", id, count, ErrInvalidDispatch)
	}
	t := &l.territories[i]
	if t.Garrison-count < 0 {
		return fmt.Errorf("territory %d: garrison %d, requested %d: %w", id, t.Garrison, count, ErrNegativeGarrison)
	}
	t.Garrison -= count
	return nil
}

// ResolveArrival applies count units of owner arriving at a territory.
//
// Same owner reinforces. Otherwise remaining = garrison - count; when
// remaining <= 0 the attacker takes the territory with |remaining| units,
// else the defenders keep it with remaining units.
func (l *Ledger) ResolveArrival(id TerritoryID, owner FactionID, count int) (Resolution, error) {
	i, ok := l.index[id]
	if !ok {
		return Resolution{}, fmt.Errorf("territory %d: %w", id, ErrUnknownTerritory)
	}
	if count <= 0 {
		return Resolution{}, fmt.Errorf("territory %d: arriving count %d: %w", id, count, ErrInvalidDispatch)
	}

	t := &l.territories[i]
	res := Resolution{PreviousOwner: t.Owner}

	if owner == t.Owner {
		t.Garrison += count
		res.Outcome = OutcomeReinforced
		res.NewOwner = t.Owner
		res.Garrison = t.Garrison
		return res, nil
	}

	remaining := t.Garrison - count
	if remaining <= 0 {
		t.Owner = owner
		t.Garrison = -remaining
		t.carry = 0
		res.Outcome = OutcomeCaptured
	} else {
		t.Garrison = remaining
		res.Outcome = OutcomeDefended
	}
	res.NewOwner = t.Owner
	res.Garrison = t.Garrison
	return res, nil
}

// CountOwned returns how many territories faction f holds
func (l *Ledger) CountOwned(f FactionID) int {
	n := 0
	for i := range l.territories {
		if l.territories[i].Owner == f {
			n++
		}
	}
	return n
}

// OwnedBy returns copies of the territories held by f in ascending id order.
func (l *Ledger) OwnedBy(f FactionID) []Territory {
	var out []Territory
	for i := range l.territories {
		if l.territories[i].Owner == f {
			out = append(out, l.territories[i])
		}
	}
	return out
}

// GarrisonOf sums the garrison of every territory held by f
func (l *Ledger) GarrisonOf(f FactionID) int {
	total := 0
	for i := range l.territories {
		if l.territories[i].Owner == f {
			total += l.territories[i].Garrison
		}
	}
	return total
}
