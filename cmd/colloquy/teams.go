package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/colloquyhq/colloquy/internal/config"
	"github.com/colloquyhq/colloquy/pkg/models"
)

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List team rosters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		entries, err := os.ReadDir(cfg.Paths.TeamsDir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Printf("No team files found. Add YAML files under %s\n", cfg.Paths.TeamsDir)
				return nil
			}
			return fmt.Errorf("read teams directory: %w", err)
		}

		found := 0
		for _, entry := range entries {
			ext := filepath.Ext(entry.Name())
			if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			team, err := models.LoadTeam(filepath.Join(cfg.Paths.TeamsDir, entry.Name()))
			if err != nil {
				color.Red("%s: %v", entry.Name(), err)
				continue
			}
			found++
			color.New(color.Bold, color.FgCyan).Printf("%s", team.Name)
			if team.Description != "" {
				fmt.Printf("  %s", team.Description)
			}
			fmt.Println()
			color.New(color.Faint).Printf("    experts: %s\n", strings.Join(team.Experts(), ", "))
		}
		if found == 0 {
			fmt.Printf("No team files found under %s\n", cfg.Paths.TeamsDir)
		}
		return nil
	},
}
