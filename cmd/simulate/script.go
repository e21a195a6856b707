package main

import (
	"github.com/mitchelldurbincs/conquest/internal/game"
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/rules"
)

// script plays one faction by sending everything from its strongest
// territory to the nearest territory it can take, once per interval.
type script struct {
	faction  core.FactionID
	interval int64
}

func newScript(faction core.FactionID, interval int64) *script {
	if interval < 1 {
		interval = 1
	}
	return &script{faction: faction, interval: interval}
}

func (s *script) step(engine *game.Engine) {
	if engine.CurrentTick()%s.interval != 0 || !engine.Phase().CanReceiveCommands() {
		return
	}
	cmd, ok := s.plan(engine.LegalDispatches(s.faction))
	if !ok {
		return
	}
	// A rejected command just waits for the next interval
	_, _ = engine.Dispatch(cmd)
}

// plan picks the move among the legal pairs. Only pairs that capture are
// considered; the strongest source wins, then the shortest trip.
func (s *script) plan(pairs []rules.DispatchPair) (core.DispatchCommand, bool) {
	best := -1
	bestDist := 0.0
	for i, p := range pairs {
		if p.Target.OwnedBy(s.faction) || p.Target.Garrison >= p.Source.Dispatchable() {
			continue
		}
		d := p.Source.Position.DistanceTo(p.Target.Position)
		if best >= 0 {
			cur := pairs[best]
			if p.Source.Garrison < cur.Source.Garrison ||
				(p.Source.Garrison == cur.Source.Garrison && d >= bestDist) {
				continue
			}
		}
		best, bestDist = i, d
	}
	if best < 0 {
		return core.DispatchCommand{}, false
	}
	return core.DispatchAll(s.faction, pairs[best].Source.ID, pairs[best].Target.ID), true
}
