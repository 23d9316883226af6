package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/colloquyhq/colloquy/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Colloquy configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/colloquy/config.yaml
Project-specific overrides can be placed in .colloquy.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s (%s)\n", config.MaskAPIKey(cfg.Anthropic.APIKey), config.GetAPIKeySource(cfg))
	fmt.Printf("anthropic.model: %s\n", orUnset(cfg.Anthropic.Model))
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", orUnset(cfg.Anthropic.AWSRegion))
	fmt.Printf("anthropic.aws_profile: %s\n", orUnset(cfg.Anthropic.AWSProfile))
	fmt.Printf("defaults.team: %s\n", cfg.Defaults.Team)
	fmt.Printf("defaults.streaming: %t\n", cfg.Defaults.Streaming)
	fmt.Printf("defaults.history_episodes: %d\n", cfg.Defaults.HistoryEpisodes)
	fmt.Printf("paths.experts_dir: %s\n", cfg.Paths.ExpertsDir)
	fmt.Printf("paths.teams_dir: %s\n", cfg.Paths.TeamsDir)
	fmt.Printf("paths.library: %s\n", cfg.Paths.Library)
	fmt.Printf("paths.database: %s\n", cfg.Paths.Database)
	fmt.Printf("timeouts.node: %s\n", cfg.Timeouts.Node)
	fmt.Printf("timeouts.episode: %s\n", cfg.Timeouts.Episode)
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return orUnset(cfg.Anthropic.Model), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return orUnset(cfg.Anthropic.AWSRegion), nil
	case "anthropic.aws_profile":
		return orUnset(cfg.Anthropic.AWSProfile), nil
	case "defaults.team":
		return cfg.Defaults.Team, nil
	case "defaults.streaming":
		return strconv.FormatBool(cfg.Defaults.Streaming), nil
	case "defaults.history_episodes":
		return strconv.Itoa(cfg.Defaults.HistoryEpisodes), nil
	case "paths.experts_dir":
		return cfg.Paths.ExpertsDir, nil
	case "paths.teams_dir":
		return cfg.Paths.TeamsDir, nil
	case "paths.library":
		return cfg.Paths.Library, nil
	case "paths.database":
		return cfg.Paths.Database, nil
	case "timeouts.node":
		return cfg.Timeouts.Node.String(), nil
	case "timeouts.episode":
		return cfg.Timeouts.Episode.String(), nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "defaults.team":
		cfg.Defaults.Team = value
	case "defaults.streaming":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		cfg.Defaults.Streaming = b
	case "defaults.history_episodes":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid count %q", value)
		}
		cfg.Defaults.HistoryEpisodes = n
	case "paths.experts_dir":
		cfg.Paths.ExpertsDir = value
	case "paths.teams_dir":
		cfg.Paths.TeamsDir = value
	case "paths.library":
		cfg.Paths.Library = value
	case "paths.database":
		cfg.Paths.Database = value
	case "timeouts.node":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q", value)
		}
		cfg.Timeouts.Node = d
	case "timeouts.episode":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q", value)
		}
		cfg.Timeouts.Episode = d
	case "tui.refresh_rate":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q", value)
		}
		cfg.TUI.RefreshRate = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
