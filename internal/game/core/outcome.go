package core

import "fmt"

// Outcome classifies how an arriving group changed its destination.
type Outcome int

const (
	OutcomeReinforced Outcome = iota
	OutcomeDefended
	OutcomeCaptured
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReinforced:
		return "reinforced"
	case OutcomeDefended:
		return "defended"
	case OutcomeCaptured:
		return "captured"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// MarshalText keeps the wire format readable for observers.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "reinforced":
		*o = OutcomeReinforced
	case "defended":
		*o = OutcomeDefended
	case "captured":
		*o = OutcomeCaptured
	default:
		return fmt.Errorf("unknown outcome %q", string(b))
	}
	return nil
}

// Resolution is the ledger-level result of one arrival.
type Resolution struct {
	Outcome       Outcome   `json:"outcome"`
	PreviousOwner FactionID `json:"previous_owner"`
	NewOwner      FactionID `json:"new_owner"`
	Garrison      int       `json:"garrison"`
}

// OwnerChanged reports whether the arrival flipped ownership
func (r Resolution) OwnerChanged() bool { return r.PreviousOwner != r.NewOwner }

// Arrival is a resolved in-flight group: the unit of information observers
// and the termination check consume.
type Arrival struct {
	GroupID   uint64      `json:"group_id"`
	Territory TerritoryID `json:"territory_id"`
	Attacker  FactionID   `json:"attacker"`
	Count     int         `json:"count"`
	Resolution
}

// Generated records the units a territory gained in one generation step.
type Generated struct {
	Territory TerritoryID `json:"territory_id"`
	Owner     FactionID   `json:"owner"`
	Added     int         `json:"added"`
	Garrison  int         `json:"garrison"`
}
