package states

import (
	"fmt"
	"time"
)

// SetupState represents a match that has not started
type SetupState struct{}

func NewSetupState() State { return &SetupState{} }

func (s *SetupState) Phase() MatchPhase { return PhaseSetup }

func (s *SetupState) Enter(ctx *MatchContext) error {
	ctx.Logger.Debug().Msg("Entering Setup state")
	return nil
}

func (s *SetupState) Exit(ctx *MatchContext) error {
	ctx.Logger.Debug().Msg("Exiting Setup state")
	return nil
}

func (s *SetupState) Validate(ctx *MatchContext) error { return nil }

// RunningState represents an advancing match
type RunningState struct{}

func NewRunningState() State { return &RunningState{} }

func (s *RunningState) Phase() MatchPhase { return PhaseRunning }

func (s *RunningState) Enter(ctx *MatchContext) error {
	if ctx.StartTime.IsZero() {
		ctx.StartTime = time.Now()
		ctx.Logger.Info().
			Int("territories", ctx.Territories).
			Int("factions", ctx.Factions).
			Msg("Match started")
	}
	return nil
}

func (s *RunningState) Exit(ctx *MatchContext) error {
	ctx.Logger.Debug().
		Dur("elapsed", ctx.WallElapsed()).
		Msg("Exiting running state")
	return nil
}

func (s *RunningState) Validate(ctx *MatchContext) error {
	if ctx.Territories < 1 {
		return fmt.Errorf("match needs at least one territory, got %d", ctx.Territories)
	}
	if ctx.Factions < 1 {
		return fmt.Errorf("match needs at least one faction, got %d", ctx.Factions)
	}
	return nil
}

// PausedState freezes the clock
type PausedState struct{}

func NewPausedState() State { return &PausedState{} }

func (s *PausedState) Phase() MatchPhase { return PhasePaused }

func (s *PausedState) Enter(ctx *MatchContext) error {
	ctx.PauseTime = time.Now()
	ctx.Logger.Info().Msg("Match paused")
	return nil
}

func (s *PausedState) Exit(ctx *MatchContext) error {
	if !ctx.PauseTime.IsZero() {
		pause := time.Since(ctx.PauseTime)
		ctx.TotalPauseDuration += pause
		ctx.PauseTime = time.Time{}
		ctx.Logger.Info().Dur("pause_duration", pause).Msg("Match resumed")
	}
	return nil
}

func (s *PausedState) Validate(ctx *MatchContext) error { return nil }

// EndedState is reached once a termination condition holds
type EndedState struct{}

func NewEndedState() State { return &EndedState{} }

func (s *EndedState) Phase() MatchPhase { return PhaseEnded }

func (s *EndedState) Enter(ctx *MatchContext) error {
	ctx.Logger.Info().
		Str("reason", ctx.Reason).
		Dur("wall_elapsed", ctx.WallElapsed()).
		Msg("Match ended")
	return nil
}

func (s *EndedState) Exit(ctx *MatchContext) error {
	return fmt.Errorf("cannot exit Ended state")
}

func (s *EndedState) Validate(ctx *MatchContext) error {
	if ctx.Reason == "" {
		return fmt.Errorf("ended match needs a reason")
	}
	return nil
}

// AbortedState is reached when a match is torn down early
type AbortedState struct{}

func NewAbortedState() State { return &AbortedState{} }

func (s *AbortedState) Phase() MatchPhase { return PhaseAborted }

func (s *AbortedState) Enter(ctx *MatchContext) error {
	ctx.Logger.Warn().Str("reason", ctx.Reason).Msg("Match aborted")
	return nil
}

func (s *AbortedState) Exit(ctx *MatchContext) error {
	return fmt.Errorf("cannot exit Aborted state")
}

func (s *AbortedState) Validate(ctx *MatchContext) error { return nil }
