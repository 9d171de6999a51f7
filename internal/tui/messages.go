package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/timelock/internal/model"
	"github.com/sandeepkv93/timelock/internal/notify"
	"github.com/sandeepkv93/timelock/internal/reconcile"
	"github.com/sandeepkv93/timelock/internal/watch"
)

type TickMsg time.Time

type TasksLoadedMsg struct {
	Tasks []model.Task
	Err   error
}

type DeliveryMsg struct {
	Delivery notify.Delivery
}

type ReloadMsg struct {
	Paths []string
}

type SweepDoneMsg struct {
	Report reconcile.SweepReport
}

type sweepTickMsg struct{}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) loadTasksCmd() tea.Cmd {
	return func() tea.Msg {
		list, err := m.backend.List(m.ctx, model.TaskFilter{})
		return TasksLoadedMsg{Tasks: list, Err: err}
	}
}

func (m Model) sweepCmd() tea.Cmd {
	return func() tea.Msg {
		return SweepDoneMsg{Report: m.backend.Sweep(m.ctx)}
	}
}

func sweepTickCmd(every time.Duration) tea.Cmd {
	if every <= 0 {
		return nil
	}
	return tea.Tick(every, func(time.Time) tea.Msg { return sweepTickMsg{} })
}

func waitForDeliveryCmd(ch <-chan notify.Delivery) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		d, ok := <-ch
		if !ok {
			return nil
		}
		return DeliveryMsg{Delivery: d}
	}
}

func waitForReloadCmd(ch <-chan watch.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ReloadMsg{Paths: ev.Paths}
	}
}
