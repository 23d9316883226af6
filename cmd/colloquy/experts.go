package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/colloquyhq/colloquy/internal/config"
	"github.com/colloquyhq/colloquy/internal/panel"
)

var expertsCmd = &cobra.Command{
	Use:   "experts",
	Short: "List registered expert definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		registry := panel.NewRegistry()
		n, err := registry.LoadDir(cfg.Paths.ExpertsDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Printf("No expert definitions found. Add YAML files under %s\n", cfg.Paths.ExpertsDir)
				return nil
			}
			return err
		}
		if n == 0 {
			fmt.Printf("No expert definitions found under %s\n", cfg.Paths.ExpertsDir)
			return nil
		}

		for _, id := range registry.IDs() {
			e, _ := registry.Get(id)
			color.New(color.Bold, color.FgCyan).Printf("%s", e.ID)
			fmt.Printf("  %s — %s\n", e.Name, e.Role)
			if len(e.Focus) > 0 {
				color.New(color.Faint).Printf("    focus: %s\n", strings.Join(e.Focus, ", "))
			}
		}
		return nil
	},
}
