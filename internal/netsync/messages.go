// Package netsync turns a match's event stream into the snapshot and delta
// messages remote observers consume, and rebuilds match state from them.
package netsync

import (
	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

// Kind names the payload a Message carries
type Kind string

const (
	KindSnapshot  Kind = "snapshot"
	KindStarted   Kind = "started"
	KindDispatch  Kind = "dispatch"
	KindArrival   Kind = "arrival"
	KindGenerated Kind = "generated"
	KindProgress  Kind = "progress"
	KindPhase     Kind = "phase"
	KindEnded     Kind = "ended"
	KindAborted   Kind = "aborted"
)

// Message is one delta on the wire. Exactly one payload field is set,
// matching Kind.
type Message struct {
	Seq     uint64 `json:"seq"`
	Kind    Kind   `json:"kind"`
	MatchID string `json:"match_id"`
	Tick    int64  `json:"tick"`

	Snapshot  *Snapshot        `json:"snapshot,omitempty"`
	Started   *StartNotice     `json:"started,omitempty"`
	Dispatch  *TroopState      `json:"dispatch,omitempty"`
	Arrival   *core.Arrival    `json:"arrival,omitempty"`
	Generated []TerritoryDelta `json:"generated,omitempty"`
	Progress  []ProgressUpdate `json:"progress,omitempty"`
	Phase     *PhaseChange     `json:"phase,omitempty"`
	Ended     *MatchSummary    `json:"ended,omitempty"`
	Aborted   *AbortNotice     `json:"aborted,omitempty"`
}

// TerritoryDelta is the mutable part of a territory
type TerritoryDelta struct {
	ID       core.TerritoryID `json:"id"`
	Owner    core.FactionID   `json:"owner"`
	Garrison int              `json:"garrison"`
}

// ProgressUpdate is the authoritative progress of one in-flight group
type ProgressUpdate struct {
	ID       uint64  `json:"id"`
	Progress float64 `json:"progress"`
}

// PhaseChange reports a match phase transition
type PhaseChange struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// MatchSummary is the final result as observers see it
type MatchSummary struct {
	Won              bool    `json:"won"`
	TerritoriesOwned int     `json:"territories_owned"`
	TotalTerritories int     `json:"total_territories"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	Reason           string  `json:"reason"`
}

// AbortNotice reports a match torn down without a result
type AbortNotice struct {
	Reason string `json:"reason"`
}

// StartNotice reports the clock starting
type StartNotice struct {
	Factions []core.FactionID `json:"factions"`
	Primary  core.FactionID   `json:"primary"`
}
