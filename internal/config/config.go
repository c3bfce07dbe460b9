// Package config loads daemon settings from an optional YAML file with
// environment-variable overrides on top. Secrets (tokens, API keys) only
// ever come from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts "30s"/"5m" strings in YAML
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the stdlib type
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full daemon configuration
type Config struct {
	StatePath string `yaml:"state_path"`
	ReflexDir string `yaml:"reflex_dir"`
	Identity  string `yaml:"identity"` // persona block injected into the system prompt

	Discord DiscordConfig `yaml:"discord"`
	Backend BackendConfig `yaml:"backend"`
	Tick    TickConfig    `yaml:"tick"`
}

// DiscordConfig holds the chat transport settings. Token comes from the
// DISCORD_TOKEN environment variable only.
type DiscordConfig struct {
	Token     string `yaml:"-"`
	ChannelID string `yaml:"channel_id"`
	OwnerID   string `yaml:"owner_id"`
}

// BackendConfig names the two reasoning tiers
type BackendConfig struct {
	APIKey           string        `yaml:"-"` // OPENAI_API_KEY
	BaseURL          string        `yaml:"base_url"`
	StandardModel    string        `yaml:"standard_model"`
	EscalatedModel   string        `yaml:"escalated_model"`
	StandardTimeout  Duration      `yaml:"standard_timeout"`
	EscalatedTimeout Duration      `yaml:"escalated_timeout"`
}

// TickConfig controls the scheduler cadence
type TickConfig struct {
	Interval      Duration `yaml:"interval"`
	PruneInterval Duration `yaml:"prune_interval"`
	InboxInterval Duration `yaml:"inbox_interval"`
}

// Default returns the configuration used when no file is present
func Default() Config {
	return Config{
		StatePath: "state",
		ReflexDir: "reflexes",
		Backend: BackendConfig{
			StandardModel:    "gpt-5-mini",
			EscalatedModel:   "gpt-5",
			StandardTimeout:  Duration(60 * time.Second),
			EscalatedTimeout: Duration(180 * time.Second),
		},
		Tick: TickConfig{
			Interval:      Duration(30 * time.Second),
			PruneInterval: Duration(5 * time.Minute),
			InboxInterval: Duration(5 * time.Second),
		},
	}
}

// Load reads path (missing file is fine), overlays the environment, and
// validates the result
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STATE_PATH"); v != "" {
		c.StatePath = v
	}
	if v := os.Getenv("REFLEX_DIR"); v != "" {
		c.ReflexDir = v
	}
	if v := os.Getenv("WISP_IDENTITY"); v != "" {
		c.Identity = v
	}
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("DISCORD_CHANNEL_ID"); v != "" {
		c.Discord.ChannelID = v
	}
	if v := os.Getenv("DISCORD_OWNER_ID"); v != "" {
		c.Discord.OwnerID = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Backend.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("WISP_STANDARD_MODEL"); v != "" {
		c.Backend.StandardModel = v
	}
	if v := os.Getenv("WISP_ESCALATED_MODEL"); v != "" {
		c.Backend.EscalatedModel = v
	}
	if v := os.Getenv("WISP_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Tick.Interval = Duration(d)
		}
	}
}

// Validate checks the settings a running daemon cannot do without
func (c *Config) Validate() error {
	if c.StatePath == "" {
		return fmt.Errorf("state_path must not be empty")
	}
	if c.Backend.StandardModel == "" || c.Backend.EscalatedModel == "" {
		return fmt.Errorf("both backend models must be set")
	}
	if c.Tick.Interval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.Tick.Interval.Std() < time.Second {
		return fmt.Errorf("tick interval below 1s would spin")
	}
	return nil
}
