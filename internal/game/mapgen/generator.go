package mapgen

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

// MapConfig holds configuration for level generation
type MapConfig struct {
	Width       float64 `mapstructure:"width"`
	Height      float64 `mapstructure:"height"`
	Territories int     `mapstructure:"territories"`
	// Gap is the minimum empty space between two territory edges
	Gap                float64 `mapstructure:"gap"`
	MinRadius          float64 `mapstructure:"min_radius"`
	MaxRadius          float64 `mapstructure:"max_radius"`
	NeutralGarrisonMin int     `mapstructure:"neutral_garrison_min"`
	NeutralGarrisonMax int     `mapstructure:"neutral_garrison_max"`
	StartGarrison      int     `mapstructure:"start_garrison"`
	MaxAttempts        int     `mapstructure:"max_attempts"`
}

// DefaultMapConfig returns a sensible default configuration
func DefaultMapConfig(territories int) MapConfig {
	return MapConfig{
		Width:              1200,
		Height:             800,
		Territories:        territories,
		Gap:                40,
		MinRadius:          20,
		MaxRadius:          45,
		NeutralGarrisonMin: 3,
		NeutralGarrisonMax: 15,
		StartGarrison:      20,
		MaxAttempts:        territories * 200,
	}
}

// Validate checks the config before any randomness is consumed
func (c MapConfig) Validate(factions int) error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: field %vx%v", core.ErrInvalidSetup, c.Width, c.Height)
	case c.Territories < factions:
		return fmt.Errorf("%w: %d territories cannot seat %d factions", core.ErrInvalidSetup, c.Territories, factions)
	case c.MinRadius <= 0 || c.MaxRadius < c.MinRadius:
		return fmt.Errorf("%w: radius range [%v,%v]", core.ErrInvalidSetup, c.MinRadius, c.MaxRadius)
	case 2*c.MaxRadius >= c.Width || 2*c.MaxRadius >= c.Height:
		return fmt.Errorf("%w: max radius %v does not fit the field", core.ErrInvalidSetup, c.MaxRadius)
	case c.NeutralGarrisonMin < 0 || c.NeutralGarrisonMax < c.NeutralGarrisonMin:
		return fmt.Errorf("%w: neutral garrison range [%d,%d]", core.ErrInvalidSetup, c.NeutralGarrisonMin, c.NeutralGarrisonMax)
	case c.StartGarrison < 1:
		return fmt.Errorf("%w: start garrison %d", core.ErrInvalidSetup, c.StartGarrison)
	}
	return nil
}

// Generator handles level generation with deterministic RNG
type Generator struct {
	config MapConfig
	rng    *rand.Rand
}

// NewGenerator creates a new level generator
func NewGenerator(config MapConfig, rng *rand.Rand) *Generator {
	return &Generator{
		config: config,
		rng:    rng,
	}
}

// Generate scatters the territories and seats one start territory per
// faction. The same seed always produces the same level.
func (g *Generator) Generate(factions []core.FactionID) ([]core.Territory, error) {
	if err := g.config.Validate(len(factions)); err != nil {
		return nil, err
	}

	territories := g.scatter()
	if len(territories) < len(factions) || len(territories) == 0 {
		return nil, fmt.Errorf("%w: placed %d of %d territories", core.ErrInvalidSetup, len(territories), g.config.Territories)
	}

	for i := range territories {
		territories[i].Owner = core.NeutralID
		territories[i].Garrison = g.config.NeutralGarrisonMin +
			g.rng.Intn(g.config.NeutralGarrisonMax-g.config.NeutralGarrisonMin+1)
	}

	for i, idx := range g.pickStarts(territories, len(factions)) {
		territories[idx].Owner = factions[i]
		territories[idx].Garrison = g.config.StartGarrison
	}
	return territories, nil
}

// scatter places up to Territories circles by rejection sampling. It may
// place fewer when the field is too crowded.
func (g *Generator) scatter() []core.Territory {
	c := g.config
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = c.Territories * 200
	}

	out := make([]core.Territory, 0, c.Territories)
	for tries := 0; len(out) < c.Territories && tries < attempts; tries++ {
		r := c.MinRadius + g.rng.Float64()*(c.MaxRadius-c.MinRadius)
		pos := core.NewVec2(
			r+g.rng.Float64()*(c.Width-2*r),
			r+g.rng.Float64()*(c.Height-2*r),
		)

		if g.overlaps(out, pos, r) {
			continue
		}
		out = append(out, core.Territory{
			ID:       core.TerritoryID(len(out)),
			Position: pos,
			Radius:   math.Round(r*10) / 10,
		})
	}
	return out
}

func (g *Generator) overlaps(placed []core.Territory, pos core.Vec2, r float64) bool {
	for _, t := range placed {
		if pos.DistanceTo(t.Position) < r+t.Radius+g.config.Gap {
			return true
		}
	}
	return false
}

// pickStarts chooses n territory indices spread as far apart as possible.
// The first is random, each next one maximizes its distance to the closest
// start already chosen.
func (g *Generator) pickStarts(territories []core.Territory, n int) []int {
	if n == 0 {
		return nil
	}
	starts := []int{g.rng.Intn(len(territories))}
	taken := map[int]bool{starts[0]: true}

	for len(starts) < n {
		best, bestDist := -1, -1.0
		for i, t := range territories {
			if taken[i] {
				continue
			}
			nearest := math.Inf(1)
			for _, s := range starts {
				nearest = math.Min(nearest, t.Position.DistanceTo(territories[s].Position))
			}
			if nearest > bestDist {
				best, bestDist = i, nearest
			}
		}
		starts = append(starts, best)
		taken[best] = true
	}
	return starts
}
