package netsync

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

// Replica is an observer's copy of a match rebuilt from a snapshot and the
// deltas that follow it. It never runs combat arithmetic; territory values
// come from the authoritative deltas.
type Replica struct {
	matchID     string
	seq         uint64
	tick        int64
	phase       string
	territories map[core.TerritoryID]*TerritoryState
	troops      map[uint64]*TroopState
	result      *MatchSummary
	logger      zerolog.Logger
}

// NewReplica starts a replica from a join snapshot
func NewReplica(snap *Snapshot, logger zerolog.Logger) *Replica {
	r := &Replica{logger: logger.With().Str("component", "Replica").Logger()}
	r.reset(snap)
	return r
}

func (r *Replica) reset(snap *Snapshot) {
	r.matchID = snap.MatchID
	r.seq = snap.Seq
	r.tick = snap.Tick
	r.phase = snap.Phase
	r.territories = make(map[core.TerritoryID]*TerritoryState, len(snap.Territories))
	for i := range snap.Territories {
		t := snap.Territories[i]
		r.territories[t.ID] = &t
	}
	r.troops = make(map[uint64]*TroopState, len(snap.Troops))
	for i := range snap.Troops {
		t := snap.Troops[i]
		r.troops[t.ID] = &t
	}
}

// Apply folds one delta into the replica. Messages already covered by the
// snapshot are skipped. Unknown group or territory references are stale
// and ignored.
func (r *Replica) Apply(msg Message) error {
	if msg.Kind == KindSnapshot {
		if msg.Snapshot == nil {
			return fmt.Errorf("snapshot message %d has no payload", msg.Seq)
		}
		r.reset(msg.Snapshot)
		return nil
	}
	if msg.Seq != 0 && msg.Seq <= r.seq {
		return nil
	}
	if msg.Seq > r.seq {
		r.seq = msg.Seq
	}
	if msg.Tick > r.tick {
		r.tick = msg.Tick
	}

	switch msg.Kind {
	case KindStarted:
		return nil

	case KindDispatch:
		if msg.Dispatch == nil {
			return fmt.Errorf("dispatch message %d has no payload", msg.Seq)
		}
		troop := *msg.Dispatch
		r.troops[troop.ID] = &troop
		if src, ok := r.territories[troop.Source]; ok {
			src.Garrison = troop.SourceGarrison
		}

	case KindArrival:
		a := msg.Arrival
		if a == nil {
			return fmt.Errorf("arrival message %d has no payload", msg.Seq)
		}
		if _, ok := r.troops[a.GroupID]; !ok {
			r.logger.Debug().Uint64("group_id", a.GroupID).Msg("Arrival for unseen group")
		}
		delete(r.troops, a.GroupID)
		r.setTerritory(a.Territory, a.NewOwner, a.Garrison)

	case KindGenerated:
		for _, d := range msg.Generated {
			r.setTerritory(d.ID, d.Owner, d.Garrison)
		}

	case KindProgress:
		for _, p := range msg.Progress {
			if t, ok := r.troops[p.ID]; ok {
				t.Progress = p.Progress
			}
		}

	case KindPhase:
		if msg.Phase != nil {
			r.phase = msg.Phase.To
		}

	case KindEnded:
		r.result = msg.Ended

	case KindAborted:
		r.troops = make(map[uint64]*TroopState)

	default:
		return fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	return nil
}

func (r *Replica) setTerritory(id core.TerritoryID, owner core.FactionID, garrison int) {
	t, ok := r.territories[id]
	if !ok {
		r.logger.Debug().Int("territory", int(id)).Msg("Delta for unknown territory")
		return
	}
	t.Owner = owner
	t.Garrison = garrison
}

// Advance extrapolates every group's progress by dt seconds of local time
// using the rate it was dispatched with.
func (r *Replica) Advance(dt float64) {
	if dt <= 0 {
		return
	}
	for _, t := range r.troops {
		t.Progress = math.Min(1, t.Progress+t.Rate*dt)
	}
}

// TroopPosition interpolates between the group's endpoints at its current progress
func (r *Replica) TroopPosition(id uint64) (core.Vec2, bool) {
	t, ok := r.troops[id]
	if !ok {
		return core.Vec2{}, false
	}
	return t.From.Lerp(t.To, t.Progress), true
}

// Territory returns the replica's view of one territory
func (r *Replica) Territory(id core.TerritoryID) (TerritoryState, bool) {
	t, ok := r.territories[id]
	if !ok {
		return TerritoryState{}, false
	}
	return *t, true
}

// Territories returns every territory in ascending id order
func (r *Replica) Territories() []TerritoryState {
	out := make([]TerritoryState, 0, len(r.territories))
	for _, t := range r.territories {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Troops returns every known in-flight group in ascending id order
func (r *Replica) Troops() []TroopState {
	out := make([]TroopState, 0, len(r.troops))
	for _, t := range r.troops {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Seq returns the last applied sequence number
func (r *Replica) Seq() uint64 { return r.seq }

// Tick returns the last tick seen
func (r *Replica) Tick() int64 { return r.tick }

// Phase returns the last known phase name
func (r *Replica) Phase() string { return r.phase }

// Result returns the final summary once the match has ended
func (r *Replica) Result() (MatchSummary, bool) {
	if r.result == nil {
		return MatchSummary{}, false
	}
	return *r.result, true
}
