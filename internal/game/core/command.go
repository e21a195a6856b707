package core

// DispatchCommand asks to move units from Source toward Target.
// All sends every unit but one. A positive Count sends exactly that many.
// Otherwise Fraction of the dispatchable units is sent.
type DispatchCommand struct {
	Faction  FactionID   `json:"faction"`
	Source   TerritoryID `json:"source"`
	Target   TerritoryID `json:"target"`
	Fraction float64     `json:"fraction,omitempty"`
	Count    int         `json:"count,omitempty"`
	All      bool        `json:"all,omitempty"`
}

// DispatchAll builds a command that commits all but one unit.
func DispatchAll(faction FactionID, source, target TerritoryID) DispatchCommand {
	return DispatchCommand{Faction: faction, Source: source, Target: target, All: true}
}
