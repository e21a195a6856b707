package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDispatch = errors.New("invalid dispatch")

	// Specific dispatch rejections also match ErrInvalidDispatch.
	ErrNotOwned             = fmt.Errorf("%w: territory not owned by faction", ErrInvalidDispatch)
	ErrInsufficientGarrison = fmt.Errorf("%w: insufficient garrison to dispatch", ErrInvalidDispatch)

	ErrSameTerritory        = errors.New("source and target are the same territory")
	ErrUnknownTerritory     = errors.New("unknown territory reference")
	ErrNegativeGarrison     = errors.New("garrison would become negative")
	ErrMatchOver            = errors.New("match is over")
	ErrMatchNotRunning      = errors.New("match is not running")
	ErrInvalidSetup         = errors.New("invalid match setup")
)

// DispatchError carries the command context of a rejected dispatch.
type DispatchError struct {
	Faction FactionID
	Source  TerritoryID
	Target  TerritoryID
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("faction %d: dispatch %d -> %d: %v", e.Faction, e.Source, e.Target, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// WrapDispatchError adds command context to err. A nil err stays nil.
func WrapDispatchError(cmd DispatchCommand, err error) error {
	if err == nil {
		return nil
	}
	return &DispatchError{
		Faction: cmd.Faction,
		Source:  cmd.Source,
		Target:  cmd.Target,
		Err:     err,
	}
}

// WrapTickError adds tick and phase context to err.
func WrapTickError(tick int64, phase string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("tick %d: %s: %w", tick, phase, err)
}
