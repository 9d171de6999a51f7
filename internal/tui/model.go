// Package tui is the interactive watch screen: live countdowns for every
// task, a log of fired reminders and a slash-command palette.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/notify"
	"github.com/sandeepkv93/timelock/internal/reconcile"
	"github.com/sandeepkv93/timelock/internal/tasks"
	"github.com/sandeepkv93/timelock/internal/views"
	"github.com/sandeepkv93/timelock/internal/watch"
)

const maxFired = 20

// Backend is the task surface the screen drives. *tasks.Service satisfies
// it.
type Backend interface {
	Get(ctx context.Context, id int64) (model.Task, error)
	List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	Create(ctx context.Context, draft model.Draft) (tasks.Mutation, error)
	Update(ctx context.Context, id int64, patch model.Patch) (tasks.Mutation, error)
	ToggleCompletion(ctx context.Context, id int64) (tasks.Mutation, error)
	Delete(ctx context.Context, id int64) (tasks.Mutation, error)
	Sweep(ctx context.Context) reconcile.SweepReport
}

type Options struct {
	// Deliveries carries every fired reminder after the notify handler has
	// dealt with it.
	Deliveries <-chan notify.Delivery
	// Reloads signals that the database changed underneath us.
	Reloads <-chan watch.Event
	// SweepEvery runs a reconciliation sweep periodically; zero disables it.
	SweepEvery time.Duration
	// Badge reports the pending badge count; ClearBadge resets it.
	Badge      func() int
	ClearBadge func()
	Now        func() time.Time
	Location   *time.Location
}

type StatusBar struct {
	Text    string
	IsError bool
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Delete  key.Binding
	Sweep   key.Binding
	Refresh key.Binding
	Badge   key.Binding
	Palette key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Palette, k.Toggle, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.Delete},
		{k.Sweep, k.Refresh, k.Badge},
		{k.Palette, k.Help, k.Quit},
	}
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Toggle:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "toggle done")),
		Delete:  key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "delete")),
		Sweep:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sweep")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Badge:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear badge")),
		Palette: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "command")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type Model struct {
	Tasks         []model.Task
	SelectedID    int64
	Fired         []views.FiredItem
	Status        StatusBar
	PaletteActive bool
	HelpVisible   bool
	LastSweep     *reconcile.SweepReport
	LastError     error
	Quitting      bool
	Width         int

	ctx          context.Context
	backend      Backend
	opts         Options
	keys         keyMap
	helpModel    help.Model
	commandInput textinput.Model
	now          time.Time
}

func NewModel(ctx context.Context, backend Backend, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	input := textinput.New()
	input.Prompt = "/"
	input.Placeholder = "add title in 2h | done 3 | snooze 3 1h"
	input.CharLimit = 200

	return Model{
		ctx:          ctx,
		backend:      backend,
		opts:         opts,
		keys:         defaultKeys(),
		helpModel:    help.New(),
		commandInput: input,
		now:          opts.Now(),
	}
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) selectedIndex() int {
	for i, t := range m.Tasks {
		if t.ID == m.SelectedID {
			return i
		}
	}
	return -1
}

func (m *Model) moveSelection(delta int) {
	if len(m.Tasks) == 0 {
		m.SelectedID = 0
		return
	}
	i := m.selectedIndex() + delta
	i = min(max(i, 0), len(m.Tasks)-1)
	m.SelectedID = m.Tasks[i].ID
}

func (m *Model) setTasks(list []model.Task) {
	m.Tasks = list
	if m.selectedIndex() < 0 {
		m.SelectedID = 0
		if len(list) > 0 {
			m.SelectedID = list[0].ID
		}
	}
}

func (m *Model) pushFired(item views.FiredItem) {
	m.Fired = append(m.Fired, item)
	if len(m.Fired) > maxFired {
		m.Fired = m.Fired[len(m.Fired)-maxFired:]
	}
}
