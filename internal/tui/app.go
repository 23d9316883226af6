// Package tui provides the live terminal view of a running panel
// episode: per-expert status, the streaming synthesis output, and a
// short event log.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/colloquyhq/colloquy/internal/panel"
	"github.com/colloquyhq/colloquy/pkg/models"
)

// EventMsg wraps a panel event for the bubbletea update loop.
type EventMsg struct {
	Event panel.Event
	// Closed is set when the event channel has been closed.
	Closed bool
}

// DoneMsg signals that the episode finished outside the event stream.
type DoneMsg struct {
	Err error
}

type expertRow struct {
	id     string
	status models.ExpertStatus
}

// App is the bubbletea model for a panel episode.
type App struct {
	question string
	team     string

	spinner  spinner.Model
	viewport viewport.Model

	events <-chan panel.Event

	experts  []*expertRow
	selected []string
	answer   strings.Builder
	logs     []string

	width  int
	height int

	done     bool
	quitting bool
	err      error
}

// New creates an App subscribed to a panel event stream. The roster
// lists the experts eligible for the episode, shown idle until the
// moderator picks them. A positive refresh sets the redraw cadence of
// the animated elements.
func New(question, team string, roster []string, events <-chan panel.Event, refresh time.Duration) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	if refresh > 0 {
		sp.Spinner.FPS = refresh
	}

	experts := make([]*expertRow, 0, len(roster))
	for _, id := range roster {
		experts = append(experts, &expertRow{id: id, status: models.ExpertStatusIdle})
	}

	return &App{
		question: question,
		team:     team,
		spinner:  sp,
		viewport: viewport.New(80, 12),
		events:   events,
		experts:  experts,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.waitForEvent())
}

// waitForEvent blocks on the panel event stream.
func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-a.events
		if !ok {
			return EventMsg{Closed: true}
		}
		return EventMsg{Event: ev}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.viewport.Width = msg.Width - 4
		a.viewport.Height = max(msg.Height-len(a.experts)-8, 4)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		if msg.Closed {
			a.done = true
			return a, nil
		}
		a.apply(msg.Event)
		return a, a.waitForEvent()

	case DoneMsg:
		a.done = true
		a.err = msg.Err
		return a, nil
	}

	return a, nil
}

// apply folds one panel event into the display state.
func (a *App) apply(ev panel.Event) {
	switch ev.Type {
	case panel.EventModeratorDecided:
		a.selected = strings.Split(ev.Message, ", ")
		for _, id := range a.selected {
			a.setStatus(id, models.ExpertStatusResearching)
		}
		a.logf("moderator convened: %s", ev.Message)

	case panel.EventLibrarianFetched:
		a.setStatus(ev.Expert, models.ExpertStatusDrafting)
		a.logf("librarian served %s (%s)", ev.Expert, ev.Message)

	case panel.EventExpertDrafted:
		a.logf("%s drafted its analysis", ev.Expert)

	case panel.EventExpertReflected:
		a.setStatus(ev.Expert, models.ExpertStatusRevising)
		a.logf("%s critiqued its draft", ev.Expert)

	case panel.EventCollabStarted:
		a.setStatus(ev.Expert, models.ExpertStatusCollaborating)
		a.logf("%s requested %s", ev.Expert, ev.Message)

	case panel.EventCollabReport:
		a.logf("%s contributed to %s", ev.Expert, ev.Target)

	case panel.EventExpertCompleted:
		a.setStatus(ev.Expert, models.ExpertStatusDone)
		a.logf("%s completed", ev.Expert)

	case panel.EventExpertFailed:
		a.setStatus(ev.Expert, models.ExpertStatusFailed)
		a.logf("%s failed: %v", ev.Expert, ev.Err)

	case panel.EventStreamDelta:
		if ev.Expert == panel.NodeSynthesis {
			a.answer.WriteString(ev.Message)
			a.viewport.SetContent(a.answer.String())
			a.viewport.GotoBottom()
		}

	case panel.EventSynthesisCompleted:
		a.logf("synthesis complete")

	case panel.EventEpisodeDone:
		a.done = true
	}
}

func (a *App) setStatus(id string, status models.ExpertStatus) {
	for _, row := range a.experts {
		if row.id == id {
			// Done and failed are terminal for the episode.
			if row.status == models.ExpertStatusDone || row.status == models.ExpertStatusFailed {
				return
			}
			row.status = status
			return
		}
	}
}

func (a *App) logf(format string, args ...interface{}) {
	a.logs = append(a.logs, fmt.Sprintf(format, args...))
	if len(a.logs) > 50 {
		a.logs = a.logs[len(a.logs)-50:]
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("colloquy · %s", a.team)))
	b.WriteString("\n")
	b.WriteString(a.question)
	b.WriteString("\n\n")

	for _, row := range a.experts {
		marker := "  "
		if !a.done && row.status != models.ExpertStatusIdle &&
			row.status != models.ExpertStatusDone && row.status != models.ExpertStatusFailed {
			marker = a.spinner.View()
		}
		fmt.Fprintf(&b, "%s %s %s\n", marker, expertNameStyle.Render(row.id), renderStatus(row.status))
	}

	b.WriteString("\n")
	b.WriteString(answerStyle.Render(a.viewport.View()))
	b.WriteString("\n")

	if n := len(a.logs); n > 0 {
		start := n - min(n, 3)
		for _, line := range a.logs[start:] {
			b.WriteString(footerStyle.Render("· " + line))
			b.WriteString("\n")
		}
	}

	if a.err != nil {
		b.WriteString(errStyle.Render(fmt.Sprintf("error: %v", a.err)))
		b.WriteString("\n")
	}
	if a.done {
		b.WriteString(footerStyle.Render("done · press q to exit"))
	} else {
		b.WriteString(footerStyle.Render("q to quit"))
	}
	return b.String()
}

// Answer returns the synthesis text accumulated so far.
func (a *App) Answer() string {
	return a.answer.String()
}

// Done reports whether the episode has finished.
func (a *App) Done() bool {
	return a.done
}

// Run drives the TUI until the episode finishes or the user quits.
func Run(question, team string, roster []string, events <-chan panel.Event, refresh time.Duration) error {
	app := New(question, team, roster, events, refresh)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
