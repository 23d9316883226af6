// Package config handles configuration loading for Colloquy. It
// supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Colloquy.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// DefaultsConfig holds default values for panel sessions.
type DefaultsConfig struct {
	// Team is the team file used when --team is not given.
	Team string `mapstructure:"team"`
	// Streaming enables live token streaming in the terminal.
	Streaming bool `mapstructure:"streaming"`
	// HistoryEpisodes is how many prior episodes the historian loads.
	HistoryEpisodes int `mapstructure:"history_episodes"`
}

// PathsConfig holds filesystem locations for definitions and data.
type PathsConfig struct {
	// ExpertsDir holds expert definition YAML files.
	ExpertsDir string `mapstructure:"experts_dir"`
	// TeamsDir holds team roster YAML files.
	TeamsDir string `mapstructure:"teams_dir"`
	// Library is the document library SQLite database.
	Library string `mapstructure:"library"`
	// Database is the episode persistence SQLite database.
	Database string `mapstructure:"database"`
}

// TimeoutsConfig bounds panel execution.
type TimeoutsConfig struct {
	// Node bounds each graph node execution.
	Node time.Duration `mapstructure:"node"`
	// Episode bounds a whole question-answering run.
	Episode time.Duration `mapstructure:"episode"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.colloquy.yaml in current directory or parent)
// 3. User config (~/.config/colloquy/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "COLLOQUY_MODEL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("defaults.team", cfg.Defaults.Team)
	v.Set("defaults.streaming", cfg.Defaults.Streaming)
	v.Set("defaults.history_episodes", cfg.Defaults.HistoryEpisodes)
	v.Set("paths.experts_dir", cfg.Paths.ExpertsDir)
	v.Set("paths.teams_dir", cfg.Paths.TeamsDir)
	v.Set("paths.library", cfg.Paths.Library)
	v.Set("paths.database", cfg.Paths.Database)
	v.Set("timeouts.node", cfg.Timeouts.Node.String())
	v.Set("timeouts.episode", cfg.Timeouts.Episode.String())
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if
// it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("defaults.team", "default")
	v.SetDefault("defaults.streaming", true)
	v.SetDefault("defaults.history_episodes", 3)

	dataDir := getUserDataDir()
	v.SetDefault("paths.experts_dir", filepath.Join(getUserConfigDir(), "experts"))
	v.SetDefault("paths.teams_dir", filepath.Join(getUserConfigDir(), "teams"))
	v.SetDefault("paths.library", filepath.Join(dataDir, "library.db"))
	v.SetDefault("paths.database", filepath.Join(dataDir, "colloquy.db"))

	v.SetDefault("timeouts.node", "3m")
	v.SetDefault("timeouts.episode", "20m")

	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for Colloquy.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "colloquy")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "colloquy")
	}
	return filepath.Join(home, ".config", "colloquy")
}

// getUserDataDir returns the XDG data directory for Colloquy.
func getUserDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "colloquy")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "colloquy")
	}
	return filepath.Join(home, ".local", "share", "colloquy")
}

// findProjectConfig searches for .colloquy.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".colloquy.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Team:            "default",
			Streaming:       true,
			HistoryEpisodes: 3,
		},
		Paths: PathsConfig{
			ExpertsDir: filepath.Join(getUserConfigDir(), "experts"),
			TeamsDir:   filepath.Join(getUserConfigDir(), "teams"),
			Library:    filepath.Join(getUserDataDir(), "library.db"),
			Database:   filepath.Join(getUserDataDir(), "colloquy.db"),
		},
		Timeouts: TimeoutsConfig{
			Node:    3 * time.Minute,
			Episode: 20 * time.Minute,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
