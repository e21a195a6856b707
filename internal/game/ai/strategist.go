package ai

import (
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

// Phase is the state of one automated faction
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseEvaluating
	// PhaseDormant is permanent. The faction owns nothing and never acts again.
	PhaseDormant
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseDormant:
		return "dormant"
	default:
		return "unknown"
	}
}

// Dispatcher executes a dispatch decision against the match
type Dispatcher interface {
	Dispatch(cmd core.DispatchCommand) error
}

type brain struct {
	faction     core.FactionID
	difficulty  Difficulty
	interval    float64
	timer       float64
	phase       Phase
	evaluations int
}

// Strategist drives every automated faction of a match. It runs inline on
// the simulation goroutine and owns no locks.
type Strategist struct {
	params Params
	rng    *rand.Rand
	brains []*brain // in registration order
	logger zerolog.Logger
}

// NewStrategist creates a strategist. rng is the only source of randomness,
// so the same seed yields the same decisions.
func NewStrategist(params Params, rng *rand.Rand, logger zerolog.Logger) *Strategist {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Strategist{
		params: params,
		rng:    rng,
		logger: logger.With().Str("component", "Strategist").Logger(),
	}
}

// AddFaction registers an automated faction. baseInterval is the think
// interval in simulated seconds before the difficulty multiplier.
func (s *Strategist) AddFaction(f core.FactionID, d Difficulty, baseInterval float64) {
	s.brains = append(s.brains, &brain{
		faction:    f,
		difficulty: d,
		interval:   baseInterval * d.ThinkIntervalMultiplier,
	})
	s.logger.Debug().
		Int("faction", int(f)).
		Str("difficulty", d.Name).
		Float64("interval", baseInterval*d.ThinkIntervalMultiplier).
		Msg("Automated faction registered")
}

// Phase reports the current phase of faction f
func (s *Strategist) Phase(f core.FactionID) (Phase, bool) {
	for _, b := range s.brains {
		if b.faction == f {
			return b.phase, true
		}
	}
	return PhaseIdle, false
}

// Evaluations reports how many evaluations faction f has run
func (s *Strategist) Evaluations(f core.FactionID) int {
	for _, b := range s.brains {
		if b.faction == f {
			return b.evaluations
		}
	}
	return 0
}

// Step advances every faction's think timer by dt and evaluates the ones
// whose timer elapsed. Decisions are handed to d one at a time so each
// faction sees the effects of earlier ones. It returns the commands d accepted.
func (s *Strategist) Step(dt float64, ledger *core.Ledger, d Dispatcher) []core.DispatchCommand {
	var issued []core.DispatchCommand
	for _, b := range s.brains {
		if b.phase == PhaseDormant {
			continue
		}
		if ledger.CountOwned(b.faction) == 0 {
			b.phase = PhaseDormant
			s.logger.Info().Int("faction", int(b.faction)).Msg("Faction eliminated, strategist dormant")
			continue
		}

		b.timer += dt
		if b.timer < b.interval {
			continue
		}
		b.timer = 0

		b.phase = PhaseEvaluating
		cmd, ok := s.evaluate(b, ledger)
		b.phase = PhaseIdle
		if !ok {
			continue
		}

		if err := d.Dispatch(cmd); err != nil {
			s.logger.Warn().Err(err).Int("faction", int(b.faction)).Msg("Strategist dispatch rejected")
			continue
		}
		issued = append(issued, cmd)
	}
	return issued
}

// Decide runs a single evaluation for faction f immediately, ignoring its timer.
func (s *Strategist) Decide(f core.FactionID, ledger *core.Ledger) (core.DispatchCommand, bool) {
	for _, b := range s.brains {
		if b.faction == f && b.phase != PhaseDormant {
			return s.evaluate(b, ledger)
		}
	}
	return core.DispatchCommand{}, false
}

func (s *Strategist) evaluate(b *brain, ledger *core.Ledger) (core.DispatchCommand, bool) {
	b.evaluations++

	if s.rng.Float64() >= b.difficulty.AttackProbability {
		s.logger.Debug().Int("faction", int(b.faction)).Msg("Evaluation skipped")
		return core.DispatchCommand{}, false
	}

	candidates := ScoreCandidates(s.params, b.difficulty, b.faction, ledger)
	positive := 0
	for positive < len(candidates) && candidates[positive].Score > 0 {
		positive++
	}
	if positive == 0 {
		s.logger.Debug().Int("faction", int(b.faction)).Int("candidates", len(candidates)).Msg("No worthwhile target")
		return core.DispatchCommand{}, false
	}

	window := s.params.TopN
	if window > positive {
		window = positive
	}
	choice := candidates[s.rng.Intn(window)]
	count := DispatchCount(s.params, choice.Source, choice.Target)

	s.logger.Debug().
		Int("faction", int(b.faction)).
		Int("candidates", len(candidates)).
		Int("source", int(choice.Source.ID)).
		Int("target", int(choice.Target.ID)).
		Float64("score", choice.Score).
		Int("count", count).
		Msg("Strategist decision")

	return core.DispatchCommand{
		Faction: b.faction,
		Source:  choice.Source.ID,
		Target:  choice.Target.ID,
		Count:   count,
	}, true
}
