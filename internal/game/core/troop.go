package core

// Troop is an in-flight unit group. Count is fixed at dispatch. Once Arrived
// is set the group is consumed and never mutated again.
type Troop struct {
	ID       uint64      `json:"id"`
	Owner    FactionID   `json:"owner"`
	Source   TerritoryID `json:"source"`
	Target   TerritoryID `json:"target"`
	Count    int         `json:"count"`
	From     Vec2        `json:"from"`
	To       Vec2        `json:"to"`
	Progress float64     `json:"progress"`
	Arrived  bool        `json:"arrived"`
}

// Length is the straight-line distance between the endpoints
func (t *Troop) Length() float64 { return t.From.DistanceTo(t.To) }

// Position interpolates between the endpoints at the current progress.
func (t *Troop) Position() Vec2 { return t.From.Lerp(t.To, t.Progress) }

// RemainingDistance is the distance from the current position to the
// destination center.
func (t *Troop) RemainingDistance() float64 { return t.Position().DistanceTo(t.To) }
