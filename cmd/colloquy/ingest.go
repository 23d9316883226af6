package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/colloquyhq/colloquy/internal/config"
	"github.com/colloquyhq/colloquy/internal/librarian"
	"github.com/colloquyhq/colloquy/pkg/models"
)

var ingestSource string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Add documents to the librarian's library",
	Long: `Ingest reads text files into the local document library. The
librarian searches this library when experts request documents during
an episode.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := librarian.OpenStore(cfg.Paths.Library)
		if err != nil {
			return err
		}
		defer store.Close()

		added := 0
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				color.Red("%s: %v", path, err)
				continue
			}
			source := ingestSource
			if source == "" {
				source = filepath.Base(path)
			}
			doc := models.Document{
				Source:      source,
				Title:       filepath.Base(path),
				PageContent: string(data),
			}
			if _, err := store.Add(doc); err != nil {
				return fmt.Errorf("add %s: %w", path, err)
			}
			added++
		}

		total, err := store.Count()
		if err != nil {
			return err
		}
		color.Green("Ingested %d document(s); library holds %d", added, total)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source label for the ingested documents (default: file name)")
}
