package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Loop      LoopConfig      `toml:"loop" envPrefix:"LOOP_"`
	Logging   LoggingConfig   `toml:"logging" envPrefix:"LOG_"`
	Assets    AssetsConfig    `toml:"assets" envPrefix:"ASSETS_"`
	Scripting ScriptingConfig `toml:"scripting" envPrefix:"SCRIPTING_"`
}

type LoopConfig struct {
	TickRate      time.Duration `toml:"tick_rate" env:"TICK_RATE"`
	FixedTimestep float64       `toml:"fixed_timestep" env:"FIXED_TIMESTEP"` // seconds per fixedUpdate step
	MaxFixedSteps int           `toml:"max_fixed_steps" env:"MAX_FIXED_STEPS"`
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"` // "json" or "console"
}

type AssetsConfig struct {
	Dir string `toml:"dir" env:"DIR"`
}

type ScriptingConfig struct {
	Enabled bool   `toml:"enabled" env:"ENABLED"`
	Dir     string `toml:"dir" env:"DIR"`
}

// Load reads the TOML file at path (skipped when path is empty), then applies
// VELDT_-prefixed environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "VELDT_"}); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Loop: LoopConfig{
			TickRate:      16 * time.Millisecond,
			FixedTimestep: 1.0 / 50.0,
			MaxFixedSteps: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Assets: AssetsConfig{
			Dir: "assets",
		},
		Scripting: ScriptingConfig{
			Enabled: true,
			Dir:     "scripts",
		},
	}
}
