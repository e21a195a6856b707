package ai

import (
	"fmt"
	"strings"
)

// Difficulty scales how often and how boldly an automated faction acts.
type Difficulty struct {
	Name string `mapstructure:"name"`
	// ThinkIntervalMultiplier scales the base think interval. Lower is faster.
	ThinkIntervalMultiplier float64 `mapstructure:"think_interval_multiplier"`
	// AttackProbability is the chance an evaluation is not skipped.
	AttackProbability float64 `mapstructure:"attack_probability"`
	// DefenseWeight scales nearby hostile garrisons when judging overextension.
	DefenseWeight float64 `mapstructure:"defense_weight"`
	// GenerationMultiplier scales the faction's generation rate.
	GenerationMultiplier float64 `mapstructure:"generation_multiplier"`
}

var (
	Easy = Difficulty{
		Name:                    "easy",
		ThinkIntervalMultiplier: 1.5,
		AttackProbability:       0.6,
		DefenseWeight:           0.5,
		GenerationMultiplier:    0.8,
	}
	Normal = Difficulty{
		Name:                    "normal",
		ThinkIntervalMultiplier: 1.0,
		AttackProbability:       0.8,
		DefenseWeight:           1.0,
		GenerationMultiplier:    1.0,
	}
	Hard = Difficulty{
		Name:                    "hard",
		ThinkIntervalMultiplier: 0.6,
		AttackProbability:       0.95,
		DefenseWeight:           1.5,
		GenerationMultiplier:    1.2,
	}
)

// DifficultyByName returns one of the built in presets
func DifficultyByName(name string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "easy":
		return Easy, nil
	case "", "normal":
		return Normal, nil
	case "hard":
		return Hard, nil
	default:
		return Difficulty{}, fmt.Errorf("unknown difficulty %q", name)
	}
}

// Validate checks that the multipliers are usable
func (d Difficulty) Validate() error {
	if d.ThinkIntervalMultiplier <= 0 {
		return fmt.Errorf("difficulty %s: think_interval_multiplier must be positive", d.Name)
	}
	if d.AttackProbability < 0 || d.AttackProbability > 1 {
		return fmt.Errorf("difficulty %s: attack_probability must be in [0,1]", d.Name)
	}
	if d.DefenseWeight < 0 || d.GenerationMultiplier < 0 {
		return fmt.Errorf("difficulty %s: weights must not be negative", d.Name)
	}
	return nil
}
