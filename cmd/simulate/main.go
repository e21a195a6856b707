package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/common"
	"github.com/mitchelldurbincs/conquest/internal/config"
	"github.com/mitchelldurbincs/conquest/internal/game"
	"github.com/mitchelldurbincs/conquest/internal/game/ai"
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/mapgen"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	seed := flag.Int64("seed", 0, "Match seed (0 picks one from the clock)")
	territories := flag.Int("territories", 0, "Territories to generate (0 uses the config)")
	opponents := flag.Int("opponents", 1, "Automated opponents")
	difficulty := flag.String("difficulty", "", "Opponent difficulty (empty uses the config default)")
	maxTicks := flag.Int64("ticks", 20000, "Stop after this many ticks")
	scripted := flag.Bool("scripted", false, "Drive the primary faction with a simple script instead of a strategist")
	verbose := flag.Bool("verbose", false, "Log engine events")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := common.SetupLogging(level, "console")

	if err := config.Init(*configPath); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize config")
	}
	cfg := config.Get()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	fmt.Printf("Match seed: %d\n", *seed)

	d, err := resolveDifficulty(cfg, *difficulty)
	if err != nil {
		logger.Fatal().Err(err).Msg("Bad difficulty")
	}

	mapCfg := cfg.Map
	if *territories > 0 {
		mapCfg = mapgen.DefaultMapConfig(*territories)
	}

	matchCfg, err := buildMatch(cfg.Game, cfg.Strategist, mapCfg, d, *opponents, *seed, !*scripted, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build match")
	}

	ctx := context.Background()
	engine, err := game.NewEngine(ctx, matchCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create engine")
	}
	if err := engine.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start match")
	}

	var driver *script
	if *scripted {
		driver = newScript(cfg.Game.PrimaryFaction, int64(cfg.Game.TickRate))
	}

	for engine.CurrentTick() < *maxTicks && !engine.Phase().IsTerminal() {
		if driver != nil {
			driver.step(engine)
		}
		if err := engine.Tick(ctx); err != nil {
			logger.Fatal().Err(err).Int64("tick", engine.CurrentTick()).Msg("Tick failed")
		}
	}

	printSummary(engine)
	if _, ok := engine.Result(); !ok {
		os.Exit(1)
	}
}

func resolveDifficulty(cfg *config.Config, name string) (ai.Difficulty, error) {
	if name == "" {
		return cfg.DefaultDifficulty()
	}
	if d, ok := cfg.DifficultyPresets()[name]; ok {
		return d, nil
	}
	return ai.DifficultyByName(name)
}

// buildMatch seats the primary faction and the opponents on a generated map
func buildMatch(settings game.Settings, params ai.Params, mapCfg mapgen.MapConfig, d ai.Difficulty, opponents int, seed int64, automatePrimary bool, logger zerolog.Logger) (game.MatchConfig, error) {
	if opponents < 1 {
		opponents = 1
	}

	primary := settings.PrimaryFaction
	factions := []game.FactionSetup{{ID: primary, Automated: automatePrimary, Difficulty: d}}
	ids := []core.FactionID{primary}
	for next := core.FactionID(0); len(factions) < opponents+1; next++ {
		if next == primary {
			continue
		}
		factions = append(factions, game.FactionSetup{ID: next, Automated: true, Difficulty: d})
		ids = append(ids, next)
	}

	territories, err := mapgen.NewGenerator(mapCfg, rand.New(rand.NewSource(seed))).Generate(ids)
	if err != nil {
		return game.MatchConfig{}, err
	}

	return game.MatchConfig{
		MatchID:          fmt.Sprintf("sim-%d", seed),
		Territories:      territories,
		Factions:         factions,
		Settings:         settings,
		StrategistParams: params,
		Rng:              rand.New(rand.NewSource(seed + 1)),
		Logger:           logger,
	}, nil
}

func printSummary(engine *game.Engine) {
	fmt.Printf("Phase: %s after %d ticks (%.1fs simulated)\n", engine.Phase(), engine.CurrentTick(), engine.Elapsed())
	if result, ok := engine.Result(); ok {
		outcome := "lost"
		if result.Won {
			outcome = "won"
		}
		fmt.Printf("Primary faction %s by %s holding %d/%d territories\n",
			outcome, result.Reason, result.TerritoriesOwned, result.TotalTerritories)
	} else {
		fmt.Println("Match did not finish within the tick limit")
	}

	fmt.Println("Faction  Territories  Garrison  InFlight")
	for _, s := range engine.FactionStats() {
		fmt.Printf("%7d  %11d  %8d  %8d\n", s.Faction, s.Territories, s.Garrison, s.InFlight)
	}
}
