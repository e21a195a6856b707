package core

// FactionID identifies an owner. NeutralID marks unclaimed territory and is
// never a playable faction.
type FactionID int

// TerritoryID is stable for the lifetime of a match.
type TerritoryID int

const NeutralID FactionID = -1

// IsNeutral reports whether f is the neutral sentinel
func (f FactionID) IsNeutral() bool { return f == NeutralID }

// Territory is a capturable region.
// Position and Radius only matter for distance checks; the simulation rules
// operate on Owner and Garrison.
type Territory struct {
	ID       TerritoryID `json:"id"`
	Position Vec2        `json:"position"`
	Radius   float64     `json:"radius"`
	Owner    FactionID   `json:"owner"`
	Garrison int         `json:"garrison"`

	// fractional generation carried between ticks
	carry float64
}

func (t *Territory) IsNeutral() bool { return t.Owner.IsNeutral() }

// OwnedBy reports whether the territory belongs to faction f
func (t *Territory) OwnedBy(f FactionID) bool { return t.Owner == f }

// Dispatchable is the number of units that can leave while one stays behind.
func (t *Territory) Dispatchable() int {
	if t.Garrison <= 1 {
		return 0
	}
	return t.Garrison - 1
}
