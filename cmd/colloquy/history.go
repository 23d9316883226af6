package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/colloquyhq/colloquy/internal/config"
	"github.com/colloquyhq/colloquy/internal/state"
)

var historyLimit int
var historyTranscript bool

var historyCmd = &cobra.Command{
	Use:   "history [episode-id]",
	Short: "Show past episodes",
	Long: `Without arguments, lists recent episodes. With an episode ID, shows
that episode's answer and per-expert analyses.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		db, err := state.Open(cfg.Paths.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		if len(args) == 1 {
			return showEpisode(db, args[0])
		}
		return listEpisodes(db)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of episodes to list")
	historyCmd.Flags().BoolVar(&historyTranscript, "transcript", false, "include the full transcript when showing an episode")
}

func listEpisodes(db *state.DB) error {
	episodes, err := db.ListEpisodes(historyLimit)
	if err != nil {
		return err
	}
	if len(episodes) == 0 {
		fmt.Println("No episodes recorded yet.")
		return nil
	}
	for _, ep := range episodes {
		color.New(color.Bold).Printf("%s", ep.ID)
		color.New(color.Faint).Printf("  %s  %s\n", ep.StartedAt.Format("2006-01-02 15:04"), ep.Team)
		fmt.Printf("  Q: %s\n", ep.Question)
	}
	return nil
}

func showEpisode(db *state.DB, id string) error {
	ep, err := db.GetEpisode(id)
	if err != nil {
		return err
	}

	color.New(color.Bold).Printf("%s\n", ep.Question)
	color.New(color.Faint).Printf("team %s · %d in / %d out tokens\n\n", ep.Team, ep.TokensIn, ep.TokensOut)
	fmt.Println(ep.Answer)

	analyses, err := db.GetAnalyses(id)
	if err != nil {
		return err
	}
	for expert, analysis := range analyses {
		fmt.Println()
		color.New(color.Bold, color.FgCyan).Printf("— %s —\n", expert)
		fmt.Println(analysis)
	}

	if historyTranscript {
		transcript, err := db.GetTranscript(id)
		if err != nil {
			return err
		}
		fmt.Println()
		color.New(color.Bold).Println("Transcript")
		for _, entry := range transcript {
			color.New(color.Faint).Printf("[%d] %s\n", entry.Iteration, entry.Expert)
			fmt.Println(entry.Text)
		}
	}
	return nil
}
