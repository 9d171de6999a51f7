package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/timelock/internal/commands"
	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/reconcile"
	"github.com/sandeepkv93/timelock/internal/tasks"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		raw := m.commandInput.Value()
		m.closePalette()
		return m.runCommand(raw)
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	return m, cmd
}

func (m *Model) closePalette() {
	m.PaletteActive = false
	m.commandInput.SetValue("")
	m.commandInput.Blur()
}

// runCommand parses and executes one palette line against the backend. The
// task list is reloaded after every successful mutation.
func (m Model) runCommand(raw string) (tea.Model, tea.Cmd) {
	cmd, err := commands.Parse(strings.TrimSpace(raw))
	if err != nil {
		m.Status = StatusBar{Text: commands.Describe(err), IsError: true}
		return m, nil
	}

	var sweep bool
	now := m.opts.Now()
	res, err := commands.Execute(cmd, commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			due, err := commands.ParseWhen(a.When, now.In(m.opts.Location))
			if err != nil {
				return commands.Result{}, err
			}
			mut, err := m.backend.Create(m.ctx, model.Draft{
				Title:           a.Title,
				Priority:        a.Priority,
				Deadline:        due,
				ReminderOffsets: a.Offsets,
			})
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: describe("added", mut)}, nil
		},
		Done: func(a commands.TargetArgs) (commands.Result, error) {
			mut, err := m.backend.ToggleCompletion(m.ctx, a.ID)
			if err != nil {
				return commands.Result{}, err
			}
			verb := "reopened"
			if mut.Task.Completed {
				verb = "completed"
			}
			return commands.Result{Message: describe(verb, mut)}, nil
		},
		Delete: func(a commands.TargetArgs) (commands.Result, error) {
			mut, err := m.backend.Delete(m.ctx, a.ID)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: describe("deleted", mut)}, nil
		},
		Snooze: func(a commands.SnoozeArgs) (commands.Result, error) {
			d, err := commands.ParseDuration(a.For)
			if err != nil {
				return commands.Result{}, err
			}
			current, err := m.backend.Get(m.ctx, a.ID)
			if err != nil {
				return commands.Result{}, err
			}
			base := current.Deadline
			if base.Before(now) {
				base = now
			}
			due := base.Add(d).Truncate(time.Minute)
			mut, err := m.backend.Update(m.ctx, a.ID, model.Patch{Deadline: &due})
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: describe("snoozed", mut)}, nil
		},
		Reschedule: func(a commands.RescheduleArgs) (commands.Result, error) {
			due, err := commands.ParseWhen(a.When, now.In(m.opts.Location))
			if err != nil {
				return commands.Result{}, err
			}
			mut, err := m.backend.Update(m.ctx, a.ID, model.Patch{Deadline: &due})
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{Message: describe("rescheduled", mut)}, nil
		},
		Sweep: func() (commands.Result, error) {
			sweep = true
			return commands.Result{Message: "sweeping..."}, nil
		},
	})
	if err != nil {
		m.LastError = err
		m.Status = StatusBar{Text: commands.Describe(err), IsError: true}
		return m, nil
	}
	m.Status = StatusBar{Text: res.Message}
	if sweep {
		return m, m.sweepCmd()
	}
	return m, m.loadTasksCmd()
}

// describe summarises a mutation for the status line, including any
// reminder that could not be scheduled.
func describe(verb string, mut tasks.Mutation) string {
	msg := fmt.Sprintf("%s #%d %q", verb, mut.Task.ID, mut.Task.Title)
	switch mut.Outcome.Action {
	case reconcile.ActionSchedule, reconcile.ActionReschedule:
		msg += fmt.Sprintf(", %d reminder(s) set", len(mut.Outcome.Reminders))
	case reconcile.ActionCancel:
		msg += fmt.Sprintf(", %d reminder(s) cancelled", len(mut.Outcome.Cancelled))
	}
	if failed := len(mut.Outcome.Failed()); failed > 0 {
		msg += fmt.Sprintf(", %d failed", failed)
	}
	return msg
}
