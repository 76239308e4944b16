// Package model is the Bubble Tea model of the cmdhub dashboard.
package model

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/cmdhub/pkg/core"
)

// Querier is the part of the hub client the dashboard uses.
type Querier interface {
	CommandCounts(ctx context.Context) (map[core.InstanceID]int, error)
	All(ctx context.Context) ([]string, error)
	AllByInstance(ctx context.Context, id core.InstanceID) ([]string, error)
	Reset(ctx context.Context) error
}

// Pane identifies which pane is focused.
type Pane int

const (
	PaneInstances Pane = iota
	PaneCommands
)

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeConfirmReset
)

// maxCommands is how many commands the dashboard keeps per refresh.
const maxCommands = 500

// Instance is one row of the instance pane.
type Instance struct {
	ID    core.InstanceID
	Count int
}

// App is the root Bubble Tea model.
type App struct {
	hub      Querier
	interval time.Duration
	copy     func(string) error

	// State
	instances   []Instance
	total       int
	selectedIdx int // 0 is the "all instances" row
	commands    []string
	paused      bool

	// UI
	activePane Pane
	mode       Mode
	search     textinput.Model
	width      int
	height     int

	statusMsg string
}

// New creates the dashboard model.
func New(hub Querier) App {
	si := textinput.New()
	si.Placeholder = "filter commands..."
	si.CharLimit = 64

	return App{
		hub:        hub,
		interval:   time.Second,
		copy:       clipboard.WriteAll,
		search:     si,
		activePane: PaneInstances,
		mode:       ModeNormal,
	}
}

// WithInterval sets the refresh interval.
func (a App) WithInterval(d time.Duration) App {
	a.interval = d
	return a
}

// WithClipboard replaces the clipboard writer.
func (a App) WithClipboard(fn func(string) error) App {
	a.copy = fn
	return a
}

// Init fetches the first snapshot.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.fetchCmd(),
		tickCmd(a.interval),
		tea.SetWindowTitle("cmdhub"),
	)
}

// tickMsg triggers periodic refresh.
type tickMsg time.Time

// snapshotMsg carries the hub state for the current selection.
type snapshotMsg struct {
	instances []Instance
	commands  []string
}

// errorMsg carries an error to display.
type errorMsg struct{ err error }

// noticeMsg replaces the status line.
type noticeMsg string

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) fetchCmd() tea.Cmd {
	hub := a.hub
	selected := a.selectedInstance()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		counts, err := hub.CommandCounts(ctx)
		if err != nil {
			return errorMsg{err}
		}
		instances := make([]Instance, 0, len(counts))
		for id, n := range counts {
			instances = append(instances, Instance{ID: id, Count: n})
		}
		sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })

		var commands []string
		if selected == "" {
			commands, err = hub.All(ctx)
		} else {
			commands, err = hub.AllByInstance(ctx, selected)
		}
		if err != nil {
			return errorMsg{err}
		}
		if len(commands) > maxCommands {
			commands = commands[len(commands)-maxCommands:]
		}
		return snapshotMsg{instances: instances, commands: commands}
	}
}

func (a App) resetCmd() tea.Cmd {
	hub := a.hub
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := hub.Reset(ctx); err != nil {
			return errorMsg{err}
		}
		return noticeMsg("hub reset")
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tickMsg:
		if a.paused {
			return a, tickCmd(a.interval)
		}
		return a, tea.Batch(tickCmd(a.interval), a.fetchCmd())

	case snapshotMsg:
		a.instances = msg.instances
		a.total = 0
		for _, inst := range a.instances {
			a.total += inst.Count
		}
		if a.selectedIdx > len(a.instances) {
			a.selectedIdx = len(a.instances)
		}
		if !a.paused {
			a.commands = msg.commands
		}
		return a, nil

	case noticeMsg:
		a.statusMsg = string(msg)
		return a, a.fetchCmd()

	case errorMsg:
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.mode == ModeSearch {
		switch msg.String() {
		case "esc":
			a.mode = ModeNormal
			a.search.SetValue("")
			a.search.Blur()
			return a, nil
		case "enter":
			a.mode = ModeNormal
			a.search.Blur()
			return a, nil
		default:
			var cmd tea.Cmd
			a.search, cmd = a.search.Update(msg)
			return a, cmd
		}
	}

	if a.mode == ModeConfirmReset {
		a.mode = ModeNormal
		switch msg.String() {
		case "y", "Y":
			a.statusMsg = "resetting..."
			return a, a.resetCmd()
		default:
			a.statusMsg = "reset cancelled"
			return a, nil
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "j", "down":
		if a.activePane == PaneInstances && a.selectedIdx < len(a.instances) {
			a.selectedIdx++
			return a, a.fetchCmd()
		}
	case "k", "up":
		if a.activePane == PaneInstances && a.selectedIdx > 0 {
			a.selectedIdx--
			return a, a.fetchCmd()
		}

	case "tab":
		a.activePane = (a.activePane + 1) % 2

	case "/":
		a.mode = ModeSearch
		a.search.Focus()
		return a, textinput.Blink

	case " ":
		a.paused = !a.paused

	case "c":
		cmds := a.filteredCommands()
		if len(cmds) == 0 {
			a.statusMsg = "nothing to copy"
			return a, nil
		}
		last := cmds[len(cmds)-1]
		if err := a.copy(last); err != nil {
			a.statusMsg = "error: " + err.Error()
		} else {
			a.statusMsg = "copied: " + truncate(last, 40)
		}

	case "x":
		a.mode = ModeConfirmReset
		a.statusMsg = "Reset all recorded commands? (y/n)"
	}

	return a, nil
}

// selectedInstance is "" when the all-instances row is selected.
func (a App) selectedInstance() core.InstanceID {
	if a.selectedIdx == 0 || a.selectedIdx > len(a.instances) {
		return ""
	}
	return a.instances[a.selectedIdx-1].ID
}

func (a App) filteredCommands() []string {
	q := strings.ToLower(a.search.Value())
	if q == "" {
		return a.commands
	}
	var filtered []string
	for _, c := range a.commands {
		if strings.Contains(strings.ToLower(c), q) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
