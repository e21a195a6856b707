package rules

import (
	"math"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

// ValidateDispatch checks that cmd may be executed against the current
// ledger and returns the source and target territories. Errors are wrapped
// in a core.DispatchError.
func ValidateDispatch(ledger *core.Ledger, cmd core.DispatchCommand) (core.Territory, core.Territory, error) {
	if cmd.Faction.IsNeutral() {
		return core.Territory{}, core.Territory{}, core.WrapDispatchError(cmd, core.ErrInvalidDispatch)
	}
	if cmd.Source == cmd.Target {
		return core.Territory{}, core.Territory{}, core.WrapDispatchError(cmd, core.ErrSameTerritory)
	}

	source, ok := ledger.Get(cmd.Source)
	if !ok {
		return core.Territory{}, core.Territory{}, core.WrapDispatchError(cmd, core.ErrUnknownTerritory)
	}
	target, ok := ledger.Get(cmd.Target)
	if !ok {
		return core.Territory{}, core.Territory{}, core.WrapDispatchError(cmd, core.ErrUnknownTerritory)
	}
	if !source.OwnedBy(cmd.Faction) {
		return core.Territory{}, core.Territory{}, core.WrapDispatchError(cmd, core.ErrNotOwned)
	}
	if source.Dispatchable() <= 0 {
		return core.Territory{}, core.Territory{}, core.WrapDispatchError(cmd, core.ErrInsufficientGarrison)
	}
	return source, target, nil
}

// DispatchCount returns how many units cmd sends from source. At least one
// unit always stays behind.
func DispatchCount(source core.Territory, cmd core.DispatchCommand) (int, error) {
	available := source.Dispatchable()
	if available <= 0 {
		return 0, core.WrapDispatchError(cmd, core.ErrInsufficientGarrison)
	}

	switch {
	case cmd.Count > 0:
		if cmd.Count > available {
			return 0, core.WrapDispatchError(cmd, core.ErrInsufficientGarrison)
		}
		return cmd.Count, nil
	case cmd.All:
		return available, nil
	}

	if math.IsNaN(cmd.Fraction) || cmd.Fraction <= 0 || cmd.Fraction > 1 {
		return 0, core.WrapDispatchError(cmd, core.ErrInvalidDispatch)
	}
	n := int(math.Floor(float64(available) * cmd.Fraction))
	if n < 1 {
		n = 1
	}
	if n > available {
		n = available
	}
	return n, nil
}

// DispatchPair is one legal source/target combination for a faction.
type DispatchPair struct {
	Source core.Territory
	Target core.Territory
}

// LegalDispatches enumerates every owned territory that can spare units
// paired with every other territory, ordered by (source, target).
func LegalDispatches(ledger *core.Ledger, faction core.FactionID) []DispatchPair {
	all := ledger.Territories()

	var pairs []DispatchPair
	for _, src := range all {
		if !src.OwnedBy(faction) || src.Dispatchable() <= 0 {
			continue
		}
		for _, dst := range all {
			if dst.ID == src.ID {
				continue
			}
			pairs = append(pairs, DispatchPair{Source: src, Target: dst})
		}
	}
	return pairs
}
