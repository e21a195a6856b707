package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/conquest/internal/game/ai"
)

func reset() {
	cfg = nil
	v = nil
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestInit_FromFile_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
game:
  tick_rate: 30
  arrival_factor: 0.4
strategist:
  top_n: 5
map:
  territories: 24
server:
  grpc:
    port: 6000
  rooms:
    max_rooms: 7
    idle_timeout: 90s
`)
	reset()
	require.NoError(t, Init(path))

	c := Get()
	assert.Equal(t, 30.0, c.Game.TickRate)
	assert.Equal(t, 0.4, c.Game.ArrivalFactor)
	assert.Equal(t, 120.0, c.Game.TravelSpeed)
	assert.Equal(t, 5, c.Strategist.TopN)
	assert.Equal(t, 24, c.Map.Territories)
	assert.Equal(t, 6000, c.Server.GRPC.Port)
	assert.Equal(t, 7, c.Server.Rooms.MaxRooms)
	assert.Equal(t, 90*time.Second, c.Server.Rooms.IdleTimeout)
}

func TestInit_MissingFile_UsesDefaults(t *testing.T) {
	reset()
	require.NoError(t, Init("/non/existent/path/config.yaml"))

	c := Get()
	assert.Equal(t, 20.0, c.Game.TickRate)
	assert.Equal(t, 0.5, c.Game.ArrivalFactor)
	assert.Equal(t, ai.DefaultParams(), c.Strategist)
	assert.Equal(t, 50051, c.Server.GRPC.Port)
	assert.Equal(t, 8080, c.Server.HTTP.Port)
	assert.Equal(t, 10, c.Server.Rooms.ProgressInterval)
	assert.Equal(t, time.Hour, c.Storage.SnapshotTTL)
	assert.False(t, c.Telemetry.Enabled)
}

func TestInit_EnvironmentVariables_Override(t *testing.T) {
	t.Setenv("CONQUEST_GAME_TICK_RATE", "40")
	t.Setenv("CONQUEST_SERVER_GRPC_PORT", "9090")
	t.Setenv("CONQUEST_SERVER_ROOMS_FINISHED_TTL", "30s")

	reset()
	require.NoError(t, Init("/non/existent/config.yaml"))

	c := Get()
	assert.Equal(t, 40.0, c.Game.TickRate)
	assert.Equal(t, 9090, c.Server.GRPC.Port)
	assert.Equal(t, 30*time.Second, c.Server.Rooms.FinishedTTL)
}

func TestInit_Invalid_ReturnsError(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "zero tick rate",
			content: "game:\n  tick_rate: 0\n",
			wantErr: "tick rate",
		},
		{
			name:    "arrival factor above one",
			content: "game:\n  arrival_factor: 1.5\n",
			wantErr: "arrival factor",
		},
		{
			name:    "top n zero",
			content: "strategist:\n  top_n: 0\n",
			wantErr: "top_n",
		},
		{
			name:    "bad grpc port",
			content: "server:\n  grpc:\n    port: 70000\n",
			wantErr: "server.grpc.port",
		},
		{
			name:    "unknown default difficulty",
			content: "server:\n  rooms:\n    default_difficulty: brutal\n",
			wantErr: "default_difficulty",
		},
		{
			name:    "broken difficulty preset",
			content: "difficulties:\n  hard:\n    attack_probability: 2\n",
			wantErr: "difficulties.hard",
		},
		{
			name:    "telemetry without endpoint",
			content: "telemetry:\n  enabled: true\n",
			wantErr: "telemetry.endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", tt.content)
			reset()
			err := Init(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDifficultyPresets_CustomPreset(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
difficulties:
  brutal:
    think_interval_multiplier: 0.3
    attack_probability: 1
    defense_weight: 2
    generation_multiplier: 1.5
server:
  rooms:
    default_difficulty: brutal
`)
	reset()
	require.NoError(t, Init(path))

	presets := Get().DifficultyPresets()
	assert.Contains(t, presets, "easy")
	assert.Contains(t, presets, "normal")
	assert.Contains(t, presets, "hard")

	d, err := Get().DefaultDifficulty()
	require.NoError(t, err)
	assert.Equal(t, "brutal", d.Name)
	assert.Equal(t, 0.3, d.ThinkIntervalMultiplier)
}

func TestLoadEnvironmentConfig_MergesOverlay(t *testing.T) {
	dir := t.TempDir()
	base := writeConfig(t, dir, "config.yaml", `
game:
  tick_rate: 20
server:
  grpc:
    port: 50051
`)
	writeConfig(t, dir, "config.prod.yaml", `
game:
  tick_rate: 60
server:
  log_level: error
`)

	reset()
	require.NoError(t, Init(base))
	require.NoError(t, LoadEnvironmentConfig("prod"))

	c := Get()
	assert.Equal(t, 60.0, c.Game.TickRate)
	assert.Equal(t, "error", c.Server.LogLevel)
	assert.Equal(t, 50051, c.Server.GRPC.Port)
}

func TestLoadEnvironmentConfig_MissingOverlay_NoOp(t *testing.T) {
	base := writeConfig(t, t.TempDir(), "config.yaml", "game:\n  tick_rate: 25\n")

	reset()
	require.NoError(t, Init(base))
	require.NoError(t, LoadEnvironmentConfig("staging"))
	assert.Equal(t, 25.0, Get().Game.TickRate)
}

func TestAddrs(t *testing.T) {
	reset()
	require.NoError(t, Init("/non/existent/config.yaml"))

	assert.Equal(t, "0.0.0.0:50051", Get().GRPCAddr())
	assert.Equal(t, "0.0.0.0:8080", Get().HTTPAddr())
}
