package states

import "fmt"

// MatchPhase represents the current phase of a match
type MatchPhase int

const (
	// PhaseSetup - Ledger built, clock not started
	PhaseSetup MatchPhase = iota

	// PhaseRunning - Clock advancing, commands accepted
	PhaseRunning

	// PhasePaused - Clock frozen
	PhasePaused

	// PhaseEnded - A faction won or lost
	PhaseEnded

	// PhaseAborted - Torn down without a result
	PhaseAborted
)

// String returns the string representation of a MatchPhase
func (p MatchPhase) String() string {
	switch p {
	case PhaseSetup:
		return "Setup"
	case PhaseRunning:
		return "Running"
	case PhasePaused:
		return "Paused"
	case PhaseEnded:
		return "Ended"
	case PhaseAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// IsTerminal returns true if no further transition is possible
func (p MatchPhase) IsTerminal() bool {
	return p == PhaseEnded || p == PhaseAborted
}

// CanTick returns true if the clock advances in this phase
func (p MatchPhase) CanTick() bool {
	return p == PhaseRunning
}

// CanReceiveCommands returns true if dispatch commands are applied in this phase
func (p MatchPhase) CanReceiveCommands() bool {
	return p == PhaseRunning
}

// AllowedTransitions returns the valid phases this phase can transition to
func (p MatchPhase) AllowedTransitions() []MatchPhase {
	switch p {
	case PhaseSetup:
		return []MatchPhase{PhaseRunning, PhaseAborted}
	case PhaseRunning:
		return []MatchPhase{PhasePaused, PhaseEnded, PhaseAborted}
	case PhasePaused:
		return []MatchPhase{PhaseRunning, PhaseEnded, PhaseAborted}
	default:
		return []MatchPhase{}
	}
}

// CanTransitionTo checks if a transition from this phase to the target phase is allowed
func (p MatchPhase) CanTransitionTo(target MatchPhase) bool {
	for _, phase := range p.AllowedTransitions() {
		if phase == target {
			return true
		}
	}
	return false
}

// ParsePhase converts a string to a MatchPhase
func ParsePhase(s string) (MatchPhase, bool) {
	switch s {
	case "Setup":
		return PhaseSetup, true
	case "Running":
		return PhaseRunning, true
	case "Paused":
		return PhasePaused, true
	case "Ended":
		return PhaseEnded, true
	case "Aborted":
		return PhaseAborted, true
	default:
		return PhaseSetup, false
	}
}
