package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "colloquy",
	Short: "Expert panel engine for question answering",
	Long: `Colloquy convenes a panel of fixed-role experts to answer a question.

A moderator selects the experts a question needs, each expert researches
via a shared librarian, drafts an analysis, critiques its own work, and
may pull in fellow experts before revising. A synthesis step combines
the final analyses into one answer.

Expert definitions and team rosters are YAML files under the config
directory; documents are ingested into a local library the librarian
searches.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(expertsCmd)
	rootCmd.AddCommand(teamsCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
