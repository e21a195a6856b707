package netsync

import (
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/states"
)

// Source is the read side of a running match
type Source interface {
	MatchID() string
	CurrentTick() int64
	Elapsed() float64
	Phase() states.MatchPhase
	Territories() []core.Territory
	Troops() []core.Troop
	TroopRate(core.Troop) float64
}

// TerritoryState is a full territory as observers see it
type TerritoryState struct {
	ID       core.TerritoryID `json:"id"`
	Position core.Vec2        `json:"position"`
	Radius   float64          `json:"radius"`
	Owner    core.FactionID   `json:"owner"`
	Garrison int              `json:"garrison"`
}

// TroopState is an in-flight group as observers see it. Rate is progress
// per simulated second, used to extrapolate between progress updates.
type TroopState struct {
	ID             uint64           `json:"id"`
	Owner          core.FactionID   `json:"owner"`
	Source         core.TerritoryID `json:"source"`
	Target         core.TerritoryID `json:"target"`
	Count          int              `json:"count"`
	From           core.Vec2        `json:"from"`
	To             core.Vec2        `json:"to"`
	Progress       float64          `json:"progress"`
	Rate           float64          `json:"rate"`
	SourceGarrison int              `json:"source_garrison,omitempty"`
}

// Snapshot is the full state sent once when an observer joins. Seq is the
// sequence number of the last delta already folded into it.
type Snapshot struct {
	MatchID     string           `json:"match_id"`
	Seq         uint64           `json:"seq"`
	Tick        int64            `json:"tick"`
	Elapsed     float64          `json:"elapsed"`
	Phase       string           `json:"phase"`
	Territories []TerritoryState `json:"territories"`
	Troops      []TroopState     `json:"troops"`
}

// TakeSnapshot copies the current state of src
func TakeSnapshot(src Source, seq uint64) *Snapshot {
	territories := src.Territories()
	troops := src.Troops()

	snap := &Snapshot{
		MatchID:     src.MatchID(),
		Seq:         seq,
		Tick:        src.CurrentTick(),
		Elapsed:     src.Elapsed(),
		Phase:       src.Phase().String(),
		Territories: make([]TerritoryState, 0, len(territories)),
		Troops:      make([]TroopState, 0, len(troops)),
	}
	for _, t := range territories {
		snap.Territories = append(snap.Territories, TerritoryState{
			ID:       t.ID,
			Position: t.Position,
			Radius:   t.Radius,
			Owner:    t.Owner,
			Garrison: t.Garrison,
		})
	}
	for _, t := range troops {
		snap.Troops = append(snap.Troops, TroopState{
			ID:       t.ID,
			Owner:    t.Owner,
			Source:   t.Source,
			Target:   t.Target,
			Count:    t.Count,
			From:     t.From,
			To:       t.To,
			Progress: t.Progress,
			Rate:     src.TroopRate(t),
		})
	}
	return snap
}

// Message wraps the snapshot for the wire. Deltas with a seq up to s.Seq are
// already folded in.
func (s *Snapshot) Message() Message {
	return Message{
		Seq:      s.Seq,
		Kind:     KindSnapshot,
		MatchID:  s.MatchID,
		Tick:     s.Tick,
		Snapshot: s,
	}
}
