package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/mitchelldurbincs/conquest/internal/game"
	"github.com/mitchelldurbincs/conquest/internal/game/ai"
	"github.com/mitchelldurbincs/conquest/internal/game/mapgen"
	"github.com/mitchelldurbincs/conquest/internal/monitoring"
	"github.com/mitchelldurbincs/conquest/internal/telemetry"
)

// Config holds all configuration for the application
type Config struct {
	Game         game.Settings            `mapstructure:"game"`
	Strategist   ai.Params                `mapstructure:"strategist"`
	Difficulties map[string]ai.Difficulty `mapstructure:"difficulties"`
	Map          mapgen.MapConfig         `mapstructure:"map"`
	Server       ServerConfig             `mapstructure:"server"`
	Storage      StorageConfig            `mapstructure:"storage"`
	Telemetry    telemetry.Config         `mapstructure:"telemetry"`
	Monitoring   monitoring.Config        `mapstructure:"monitoring"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	LogLevel  string           `mapstructure:"log_level"`
	LogFormat string           `mapstructure:"log_format"`
	GRPC      GRPCServerConfig `mapstructure:"grpc"`
	HTTP      HTTPServerConfig `mapstructure:"http"`
	Rooms     RoomsConfig      `mapstructure:"rooms"`
}

// GRPCServerConfig holds gRPC listener configuration
type GRPCServerConfig struct {
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	EnableReflection      bool          `mapstructure:"enable_reflection"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

// HTTPServerConfig holds the HTTP/WebSocket listener configuration
type HTTPServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// RoomsConfig holds room hosting limits and publishing settings
type RoomsConfig struct {
	MaxRooms          int           `mapstructure:"max_rooms"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	FinishedTTL       time.Duration `mapstructure:"finished_ttl"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	ProgressInterval  int           `mapstructure:"progress_interval_ticks"`
	SnapshotInterval  int64         `mapstructure:"snapshot_interval_ticks"`
	ObserverBuffer    int           `mapstructure:"observer_buffer"`
	IdempotencyTTL    time.Duration `mapstructure:"idempotency_ttl"`
	DefaultDifficulty string        `mapstructure:"default_difficulty"`
	LogEvents         bool          `mapstructure:"log_events"`
}

// StorageConfig holds the snapshot cache and results database settings
type StorageConfig struct {
	RedisURL     string        `mapstructure:"redis_url"`
	SnapshotTTL  time.Duration `mapstructure:"snapshot_ttl"`
	ResultsPath  string        `mapstructure:"results_path"`
	ResultsQueue int           `mapstructure:"results_queue"`
}

var (
	// Global config instance
	cfg *Config
	v   *viper.Viper
)

// setViperDefaults sets all default values using Viper's SetDefault
func setViperDefaults(v *viper.Viper) {
	// Simulation defaults
	settings := game.DefaultSettings()
	v.SetDefault("game.tick_rate", settings.TickRate)
	v.SetDefault("game.travel_speed", settings.TravelSpeed)
	v.SetDefault("game.arrival_factor", settings.ArrivalFactor)
	v.SetDefault("game.base_generation_rate", settings.BaseGenerationRate)
	v.SetDefault("game.base_think_interval", settings.BaseThinkInterval)
	v.SetDefault("game.generation_events", false)
	v.SetDefault("game.primary_faction", int(settings.PrimaryFaction))

	// Strategist defaults
	params := ai.DefaultParams()
	v.SetDefault("strategist.top_n", params.TopN)
	v.SetDefault("strategist.min_source_garrison", params.MinSourceGarrison)
	v.SetDefault("strategist.capture_bonus", params.CaptureBonus)
	v.SetDefault("strategist.surplus_weight", params.SurplusWeight)
	v.SetDefault("strategist.attrition_ratio", params.AttritionRatio)
	v.SetDefault("strategist.attrition_bonus", params.AttritionBonus)
	v.SetDefault("strategist.neutral_bonus", params.NeutralBonus)
	v.SetDefault("strategist.proximity_range", params.ProximityRange)
	v.SetDefault("strategist.proximity_bonus", params.ProximityBonus)
	v.SetDefault("strategist.radius_weight", params.RadiusWeight)
	v.SetDefault("strategist.threat_radius", params.ThreatRadius)
	v.SetDefault("strategist.threat_penalty", params.ThreatPenalty)
	v.SetDefault("strategist.gateway_radius", params.GatewayRadius)
	v.SetDefault("strategist.gateway_bonus", params.GatewayBonus)
	v.SetDefault("strategist.send_fraction", params.SendFraction)

	// Difficulty presets
	for _, d := range []ai.Difficulty{ai.Easy, ai.Normal, ai.Hard} {
		prefix := "difficulties." + d.Name + "."
		v.SetDefault(prefix+"name", d.Name)
		v.SetDefault(prefix+"think_interval_multiplier", d.ThinkIntervalMultiplier)
		v.SetDefault(prefix+"attack_probability", d.AttackProbability)
		v.SetDefault(prefix+"defense_weight", d.DefenseWeight)
		v.SetDefault(prefix+"generation_multiplier", d.GenerationMultiplier)
	}

	// Level generation defaults
	m := mapgen.DefaultMapConfig(16)
	v.SetDefault("map.width", m.Width)
	v.SetDefault("map.height", m.Height)
	v.SetDefault("map.territories", m.Territories)
	v.SetDefault("map.gap", m.Gap)
	v.SetDefault("map.min_radius", m.MinRadius)
	v.SetDefault("map.max_radius", m.MaxRadius)
	v.SetDefault("map.neutral_garrison_min", m.NeutralGarrisonMin)
	v.SetDefault("map.neutral_garrison_max", m.NeutralGarrisonMax)
	v.SetDefault("map.start_garrison", m.StartGarrison)
	v.SetDefault("map.max_attempts", m.MaxAttempts)

	// Server defaults
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "console")
	v.SetDefault("server.grpc.host", "0.0.0.0")
	v.SetDefault("server.grpc.port", 50051)
	v.SetDefault("server.grpc.enable_reflection", true)
	v.SetDefault("server.grpc.graceful_shutdown_delay", 5*time.Second)
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)

	// Room defaults
	v.SetDefault("server.rooms.max_rooms", 100)
	v.SetDefault("server.rooms.idle_timeout", 5*time.Minute)
	v.SetDefault("server.rooms.finished_ttl", 10*time.Minute)
	v.SetDefault("server.rooms.cleanup_interval", time.Minute)
	v.SetDefault("server.rooms.progress_interval_ticks", 10)
	v.SetDefault("server.rooms.snapshot_interval_ticks", 100)
	v.SetDefault("server.rooms.observer_buffer", 64)
	v.SetDefault("server.rooms.idempotency_ttl", 10*time.Minute)
	v.SetDefault("server.rooms.default_difficulty", "normal")
	v.SetDefault("server.rooms.log_events", false)

	// Storage defaults
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.snapshot_ttl", time.Hour)
	v.SetDefault("storage.results_path", "conquest_results.db")
	v.SetDefault("storage.results_queue", 256)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "conquest")

	// Monitoring defaults
	mon := monitoring.DefaultConfig()
	v.SetDefault("monitoring.check_interval", mon.CheckInterval)
	v.SetDefault("monitoring.alert_threshold", mon.AlertThreshold)
	v.SetDefault("monitoring.alert_cooldown", mon.AlertCooldown)
}

// Init initializes the configuration
func Init(configPath string) error {
	v = viper.New()

	// Set defaults before loading any config
	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/conquest")
	}

	v.SetEnvPrefix("CONQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing explicit file falls back to defaults like a missing default file
		if configPath == "" && !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := Validate(loaded); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	cfg = loaded
	return nil
}

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		if err := Init(""); err != nil {
			panic("failed to initialize config with defaults: " + err.Error())
		}
	}
	return cfg
}

// GetViper returns the viper instance for advanced usage
func GetViper() *viper.Viper {
	if v == nil {
		panic("config not initialized - call Init() first")
	}
	return v
}

// LoadEnvironmentConfig merges config.<env>.yaml from the directory of the
// loaded config file (or the working directory) over the current config.
func LoadEnvironmentConfig(env string) error {
	if env == "" {
		return nil
	}

	envFile := fmt.Sprintf("config.%s.yaml", env)
	if used := v.ConfigFileUsed(); used != "" {
		envFile = filepath.Join(filepath.Dir(used), envFile)
	}

	v.SetConfigFile(envFile)
	if err := v.MergeInConfig(); err != nil {
		if _, statErr := os.Stat(envFile); !os.IsNotExist(statErr) {
			return fmt.Errorf("error merging environment config %s: %w", envFile, err)
		}
		return nil
	}

	merged := &Config{}
	if err := v.Unmarshal(merged); err != nil {
		return fmt.Errorf("unable to decode merged config into struct: %w", err)
	}
	if err := Validate(merged); err != nil {
		return fmt.Errorf("merged config validation failed: %w", err)
	}
	cfg = merged
	return nil
}

// ConfigFilePath returns the path of the loaded config file
func ConfigFilePath() string {
	return v.ConfigFileUsed()
}

// WatchConfig reloads the config when the file changes. A reload that fails
// validation keeps the previous config and is reported through onChange.
func WatchConfig(onChange func(*Config, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		reloaded := &Config{}
		err := v.Unmarshal(reloaded)
		if err == nil {
			err = Validate(reloaded)
		}
		if err == nil {
			cfg = reloaded
		}
		if onChange != nil {
			onChange(cfg, err)
		}
	})
	v.WatchConfig()
}

// DifficultyPresets returns the configured presets keyed by name
func (c *Config) DifficultyPresets() map[string]ai.Difficulty {
	out := make(map[string]ai.Difficulty, len(c.Difficulties))
	for name, d := range c.Difficulties {
		if d.Name == "" {
			d.Name = name
		}
		out[name] = d
	}
	return out
}

// DefaultDifficulty resolves server.rooms.default_difficulty
func (c *Config) DefaultDifficulty() (ai.Difficulty, error) {
	name := strings.ToLower(c.Server.Rooms.DefaultDifficulty)
	if d, ok := c.DifficultyPresets()[name]; ok {
		return d, nil
	}
	return ai.DifficultyByName(name)
}

// GRPCAddr is the gRPC listen address
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.GRPC.Host, c.Server.GRPC.Port)
}

// HTTPAddr is the HTTP listen address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.HTTP.Host, c.Server.HTTP.Port)
}

// Validate validates the configuration values
func Validate(c *Config) error {
	if err := c.Game.Validate(); err != nil {
		return fmt.Errorf("game: %w", err)
	}
	if err := c.Strategist.Validate(); err != nil {
		return fmt.Errorf("strategist: %w", err)
	}
	for name, d := range c.DifficultyPresets() {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("difficulties.%s: %w", name, err)
		}
	}
	if _, err := c.DefaultDifficulty(); err != nil {
		return fmt.Errorf("server.rooms.default_difficulty: %w", err)
	}
	if err := c.Map.Validate(2); err != nil {
		return fmt.Errorf("map: %w", err)
	}

	if c.Server.GRPC.Port <= 0 || c.Server.GRPC.Port > 65535 {
		return fmt.Errorf("server.grpc.port must be between 1 and 65535")
	}
	if c.Server.HTTP.Port <= 0 || c.Server.HTTP.Port > 65535 {
		return fmt.Errorf("server.http.port must be between 1 and 65535")
	}
	if c.Server.GRPC.GracefulShutdownDelay < 0 {
		return fmt.Errorf("server.grpc.graceful_shutdown_delay must be non-negative")
	}

	rooms := c.Server.Rooms
	if rooms.MaxRooms <= 0 {
		return fmt.Errorf("server.rooms.max_rooms must be positive")
	}
	if rooms.ProgressInterval <= 0 {
		return fmt.Errorf("server.rooms.progress_interval_ticks must be positive")
	}
	if rooms.SnapshotInterval < 0 {
		return fmt.Errorf("server.rooms.snapshot_interval_ticks must be non-negative")
	}
	if rooms.ObserverBuffer <= 0 {
		return fmt.Errorf("server.rooms.observer_buffer must be positive")
	}
	if rooms.IdleTimeout < 0 || rooms.FinishedTTL < 0 {
		return fmt.Errorf("server.rooms timeouts must be non-negative")
	}

	if c.Storage.ResultsQueue <= 0 {
		return fmt.Errorf("storage.results_queue must be positive")
	}
	if c.Storage.SnapshotTTL < 0 {
		return fmt.Errorf("storage.snapshot_ttl must be non-negative")
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	return nil
}
