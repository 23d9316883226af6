package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/colloquyhq/colloquy/internal/api"
	"github.com/colloquyhq/colloquy/internal/config"
	"github.com/colloquyhq/colloquy/internal/librarian"
	"github.com/colloquyhq/colloquy/internal/panel"
	"github.com/colloquyhq/colloquy/internal/state"
	"github.com/colloquyhq/colloquy/internal/tui"
	"github.com/colloquyhq/colloquy/pkg/models"
)

var (
	askTeam   string
	askNoTUI  bool
	askModel  string
	askDebug  string
	askNoHist bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Convene the expert panel on a question",
	Long: `Ask runs one full panel episode: the moderator selects the experts
the question needs, each selected expert researches, drafts, critiques
itself, optionally collaborates, and revises. The synthesized answer is
printed when the panel finishes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := ""
		for i, a := range args {
			if i > 0 {
				question += " "
			}
			question += a
		}
		return runAsk(cmd.Context(), question)
	},
}

func init() {
	askCmd.Flags().StringVarP(&askTeam, "team", "t", "", "team roster to convene (default from config)")
	askCmd.Flags().BoolVar(&askNoTUI, "no-tui", false, "plain output instead of the live TUI")
	askCmd.Flags().StringVar(&askModel, "model", "", "override the configured model")
	askCmd.Flags().StringVar(&askDebug, "debug-log", "", "write a debug log to this file")
	askCmd.Flags().BoolVar(&askNoHist, "no-history", false, "skip prior-episode context")
}

func runAsk(ctx context.Context, question string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if askDebug != "" {
		logger, err := panel.NewDebugLogger(askDebug)
		if err != nil {
			return err
		}
		defer logger.Close()
		panel.SetDebugLogger(logger)
	}

	runner, cleanup, err := buildRunner(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Timeouts.Episode > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeouts.Episode)
		defer cancel()
	}

	// Pick up expert definition edits made while the panel runs.
	watcher, err := panel.NewWatcher(runner.Builder.Registry, cfg.Paths.ExpertsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: expert definitions will not hot-reload: %v\n", err)
	} else {
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	if askNoTUI {
		return askPlain(ctx, runner, question)
	}
	return askWithTUI(ctx, runner, question, cfg.TUI.RefreshRate)
}

// buildRunner wires config into a ready episode runner. The returned
// cleanup closes the stores.
func buildRunner(cfg *config.Config) (*panel.Runner, func(), error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	gen := api.NewRunner(client)

	registry := panel.NewRegistry()
	if _, err := registry.LoadDir(cfg.Paths.ExpertsDir); err != nil {
		return nil, nil, fmt.Errorf("load expert definitions: %w", err)
	}

	teamName := askTeam
	if teamName == "" {
		teamName = cfg.Defaults.Team
	}
	team, err := models.LoadTeam(filepath.Join(cfg.Paths.TeamsDir, teamName+".yaml"))
	if err != nil {
		return nil, nil, fmt.Errorf("load team %q: %w", teamName, err)
	}

	store, err := librarian.OpenStore(cfg.Paths.Library)
	if err != nil {
		return nil, nil, err
	}

	db, err := state.Open(cfg.Paths.Database)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		store.Close()
		db.Close()
		return nil, nil, err
	}

	builder := &panel.Builder{
		Registry:    registry,
		Gen:         gen,
		StreamGen:   gen,
		Librarian:   librarian.NewRetriever(store, gen),
		Decider:     panel.NewLLMCollabDecider(gen),
		Events:      panel.NewEventEmitter(256),
		NodeTimeout: cfg.Timeouts.Node,
	}
	if !cfg.Defaults.Streaming {
		builder.StreamGen = nil
	}
	if !askNoHist {
		builder.History = &panel.EpisodeHistory{DB: db, Limit: cfg.Defaults.HistoryEpisodes}
	}

	runner := &panel.Runner{
		Builder: builder,
		Team:    team,
		DB:      db,
		Tracker: client.Tracker(),
	}
	cleanup := func() {
		store.Close()
		db.Close()
	}
	return runner, cleanup, nil
}

func newClient(cfg *config.Config) (*api.Client, error) {
	clientCfg := api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if askModel != "" {
		clientCfg.Model = anthropic.Model(askModel)
	}
	if !clientCfg.UseAWSBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		clientCfg.APIKey = key
	}
	return api.NewClient(clientCfg)
}

// askPlain runs the episode with line-based progress output.
func askPlain(ctx context.Context, runner *panel.Runner, question string) error {
	events := runner.Builder.Events
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events.Events() {
			printEvent(ev)
		}
	}()

	result, err := runner.Ask(ctx, question)
	events.Close()
	<-done
	if err != nil {
		return err
	}

	fmt.Println()
	color.New(color.Bold).Println("Answer")
	fmt.Println(result.Answer)
	printUsage(runner)
	return nil
}

func printEvent(ev panel.Event) {
	switch ev.Type {
	case panel.EventModeratorDecided:
		color.Cyan("panel convened: %s", ev.Message)
	case panel.EventLibrarianFetched:
		color.Blue("librarian -> %s (%s)", ev.Expert, ev.Message)
	case panel.EventExpertDrafted:
		color.Yellow("%s drafted", ev.Expert)
	case panel.EventCollabStarted:
		color.Magenta("%s requested %s", ev.Expert, ev.Message)
	case panel.EventCollabReport:
		color.Magenta("%s contributed to %s", ev.Expert, ev.Target)
	case panel.EventExpertCompleted:
		color.Green("%s completed", ev.Expert)
	case panel.EventExpertFailed:
		color.Red("%s failed: %v", ev.Expert, ev.Err)
	}
}

// askWithTUI runs the episode behind the live terminal view.
func askWithTUI(ctx context.Context, runner *panel.Runner, question string, refresh time.Duration) error {
	roster, err := runner.Builder.Registry.Resolve(runner.Team.Slots)
	if err != nil {
		return err
	}
	ids := make([]string, len(roster))
	for i, e := range roster {
		ids[i] = e.ID
	}

	events := runner.Builder.Events
	var result *panel.Result
	var askErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, askErr = runner.Ask(ctx, question)
		events.Close()
	}()

	if err := tui.Run(question, runner.Team.Name, ids, events.Events(), refresh); err != nil {
		return err
	}

	// The user may quit the TUI before the episode finishes; only read
	// the result once the episode goroutine is done with it.
	select {
	case <-done:
	default:
		return nil
	}
	if askErr != nil {
		return askErr
	}
	fmt.Println(result.Answer)
	printUsage(runner)
	return nil
}

func printUsage(runner *panel.Runner) {
	if runner.Tracker == nil {
		return
	}
	in, out := runner.Tracker.Total()
	color.New(color.Faint).Printf("\n%d calls · %d in / %d out tokens · ~$%.4f\n",
		runner.Tracker.Calls(), in, out, runner.Tracker.Cost())
}
